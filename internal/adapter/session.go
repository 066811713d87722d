package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	errReadTimeout   = errors.New("read timed out")
	errSessionClosed = errors.New("session closed")
)

// processSession is a Session over a child process's standard streams.
type processSession struct {
	mu     sync.Mutex
	sm     *stateMachine
	proc   process
	cfg    ProcessConfig
	logger *slog.Logger

	chunks  <-chan []byte
	stop    chan struct{}
	readErr error // set before chunks is closed
	pending strings.Builder
	banner  string

	// owed counts prompts for timed-out commands that have not arrived
	// yet. The interpreter answers in order, so the next owed prompts
	// belong to those commands, not to the one being sent.
	owed int
}

func newProcessSession(proc process, out io.Reader, cfg ProcessConfig, logger *slog.Logger) *processSession {
	chunks := make(chan []byte, 16)
	s := &processSession{
		sm:     newStateMachine(),
		proc:   proc,
		cfg:    cfg,
		logger: logger,
		chunks: chunks,
		stop:   make(chan struct{}),
	}
	go s.pump(out, chunks)
	return s
}

// pump copies the output stream into chunks until it fails or the session
// stops.
func (s *processSession) pump(out io.Reader, chunks chan<- []byte) {
	defer close(chunks)
	buf := make([]byte, 4096)
	for {
		n, err := out.Read(buf)
		if n > 0 {
			select {
			case chunks <- append([]byte(nil), buf[:n]...):
			case <-s.stop:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.readErr = err
			}
			return
		}
	}
}

// State returns the session's lifecycle state.
func (s *processSession) State() State { return s.sm.current() }

// Banner returns the text printed before the first prompt.
func (s *processSession) Banner() string { return s.banner }

func (s *processSession) awaitFirstPrompt(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sm.transition(StateAwaitingPrompt); err != nil {
		return err
	}
	out, err := s.readUntilPrompt(ctx, s.cfg.StartupTimeout)
	if err != nil {
		if errors.Is(err, errReadTimeout) {
			err = fmt.Errorf("no prompt within %s", s.cfg.StartupTimeout)
		}
		if serr := s.shutdown(context.WithoutCancel(ctx)); serr != nil {
			s.logger.Warn("shutdown after failed start", "error", serr)
		}
		return s.withExitStatus(err)
	}
	s.banner = out
	return s.sm.transition(StateReady)
}

// Send writes command and waits for the next prompt.
func (s *processSession) Send(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.sm.current(); st != StateReady {
		if st >= StateTerminating {
			return "", terminatedError(command, "", errSessionClosed)
		}
		return "", fmt.Errorf("session not ready (state %s)", st)
	}
	if err := s.settle(ctx); err != nil {
		return "", err
	}

	if err := s.sm.transition(StateSendingCommand); err != nil {
		return "", err
	}
	if err := s.proc.WriteLine(command); err != nil {
		return "", s.fail(ctx, command, "", err)
	}
	if err := s.sm.transition(StateAwaitingResponse); err != nil {
		return "", err
	}

	out, err := s.readUntilPrompt(ctx, s.cfg.CommandTimeout)
	switch {
	case err == nil:
		return out, s.sm.transition(StateReady)
	case errors.Is(err, errReadTimeout):
		s.owed++
		s.logger.Warn("command timed out", "command", command, "timeout", s.cfg.CommandTimeout, "owed", s.owed)
		if terr := s.sm.transition(StateReady); terr != nil {
			return out, terr
		}
		return out, timeoutError(command, out, s.cfg.CommandTimeout)
	case ctx.Err() != nil:
		if serr := s.shutdown(context.WithoutCancel(ctx)); serr != nil {
			s.logger.Warn("shutdown after cancellation failed", "error", serr)
		}
		return out, ctx.Err()
	default:
		return out, s.fail(ctx, command, out, err)
	}
}

// Close shuts the interpreter down and reaps it. Safe to call repeatedly.
func (s *processSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown(ctx)
}

// fail handles an unexpected exit: the process is reaped and the error
// reports its exit status.
func (s *processSession) fail(ctx context.Context, command, partial string, cause error) error {
	if err := s.shutdown(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("shutdown after exit failed", "error", err)
	}
	err := terminatedError(command, partial, s.withExitStatus(cause))
	s.logger.Error("interpreter terminated", "command", command, "error", err)
	return err
}

// shutdown runs the escalation. Callers hold s.mu.
func (s *processSession) shutdown(ctx context.Context) error {
	switch s.sm.current() {
	case StateTerminated:
		return nil
	case StateTerminating:
	default:
		if err := s.sm.transition(StateTerminating); err != nil {
			return err
		}
	}

	stage, err := terminate(ctx, s.proc, s.cfg.Shutdown, s.logger)
	close(s.stop)
	if r, ok := s.proc.(interface{ release() }); ok {
		r.release()
	}
	s.logger.Debug("interpreter stopped", "stage", stage)
	if terr := s.sm.transition(StateTerminated); terr != nil {
		return terr
	}
	return err
}

func (s *processSession) withExitStatus(err error) error {
	if p, ok := s.proc.(interface{ exitErr() error }); ok {
		if exit := p.exitErr(); exit != nil {
			return fmt.Errorf("%w (%v)", err, exit)
		}
	}
	return err
}

// readUntilPrompt accumulates output until it ends in a prompt line. Late
// replies to timed-out commands are skipped first, each one restarting the
// timeout. On timeout or cancellation it returns what was read so far.
func (s *processSession) readUntilPrompt(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if s.skipLate() {
			timer.Reset(timeout)
			continue
		}
		if s.owed == 0 {
			if out, ok := cutPrompt(s.pending.String(), s.cfg.Prompt); ok {
				s.pending.Reset()
				return out, nil
			}
		}
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				partial := s.takePending()
				if s.readErr != nil {
					return partial, fmt.Errorf("%w: %v", errPromptNotSeen, s.readErr)
				}
				return partial, errPromptNotSeen
			}
			s.pending.Write(chunk)
		case <-timer.C:
			return s.takePending(), errReadTimeout
		case <-ctx.Done():
			return s.takePending(), ctx.Err()
		}
	}
}

// skipLate drops one owed reply from pending when its prompt has arrived.
func (s *processSession) skipLate() bool {
	if s.owed == 0 {
		return false
	}
	late, rest, ok := cutFirstPrompt(s.pending.String(), s.cfg.Prompt)
	if !ok {
		return false
	}
	s.owed--
	s.pending.Reset()
	s.pending.WriteString(rest)
	s.logger.Debug("discarded late reply", "bytes", len(late), "owed", s.owed)
	return true
}

// settle waits up to one command timeout for owed replies before the next
// command is written. Replies still missing afterwards are skipped while
// reading that command's response.
func (s *processSession) settle(ctx context.Context) error {
	if s.owed == 0 {
		return nil
	}
	timer := time.NewTimer(s.cfg.CommandTimeout)
	defer timer.Stop()

	for {
		if s.skipLate() {
			if s.owed == 0 {
				return nil
			}
			timer.Reset(s.cfg.CommandTimeout)
			continue
		}
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				// The exit surfaces when the command is written or read.
				return nil
			}
			s.pending.Write(chunk)
		case <-timer.C:
			s.logger.Debug("late replies still outstanding", "owed", s.owed)
			return nil
		case <-ctx.Done():
			if serr := s.shutdown(context.WithoutCancel(ctx)); serr != nil {
				s.logger.Warn("shutdown after cancellation failed", "error", serr)
			}
			return ctx.Err()
		}
	}
}

func (s *processSession) takePending() string {
	out := strings.TrimRight(s.pending.String(), "\r\n")
	s.pending.Reset()
	return out
}

// cutFirstPrompt splits buf at its first prompt line: the output before it
// and whatever followed the prompt.
func cutFirstPrompt(buf, prompt string) (before, rest string, ok bool) {
	var i int
	switch {
	case strings.HasPrefix(buf, prompt):
		i = 0
	default:
		i = strings.Index(buf, "\n"+prompt)
		if i < 0 {
			return "", "", false
		}
		i++
	}
	before = strings.TrimRight(buf[:i], "\r\n")
	rest = strings.TrimLeft(buf[i+len(prompt):], " \t")
	return before, rest, true
}

// cutPrompt reports whether buf ends with a prompt line and returns the
// output before it.
func cutPrompt(buf, prompt string) (string, bool) {
	trimmed := strings.TrimRight(buf, " \t\r")
	if trimmed == prompt {
		return "", true
	}
	if !strings.HasSuffix(trimmed, "\n"+prompt) {
		return "", false
	}
	out := trimmed[:len(trimmed)-len(prompt)-1]
	return strings.TrimRight(out, "\r\n"), true
}
