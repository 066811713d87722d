package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/roach88/parity/internal/transcript"
)

// Default protocol settings.
const (
	DefaultPrompt         = ">"
	DefaultCommandTimeout = 5 * time.Second
	DefaultStartupTimeout = 10 * time.Second
)

// ProcessConfig describes how to spawn an interpreter.
//
// Args may contain the placeholders {seed} and {story}. When no argument
// mentions {story} and Story is set, the story path is appended last.
type ProcessConfig struct {
	Binary         string
	Story          string
	Args           []string
	Dir            string
	Env            []string
	Prompt         string
	StartupTimeout time.Duration
	CommandTimeout time.Duration
	Shutdown       ShutdownPolicy
}

// ProcessOption configures a ProcessFactory.
type ProcessOption func(*ProcessFactory)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *slog.Logger) ProcessOption {
	return func(f *ProcessFactory) {
		f.logger = logger
	}
}

// ProcessFactory spawns one interpreter process per session.
type ProcessFactory struct {
	cfg    ProcessConfig
	source transcript.Source
	logger *slog.Logger
}

// NewProcessFactory validates cfg and returns a factory. A missing binary
// setting, a binary path that does not name a file, or an unreadable story
// is a CONFIGURATION_ERROR. Bare binary names are looked up in PATH at
// Start, where failure is INTERPRETER_UNAVAILABLE.
func NewProcessFactory(source transcript.Source, cfg ProcessConfig, opts ...ProcessOption) (*ProcessFactory, error) {
	if strings.TrimSpace(cfg.Binary) == "" {
		return nil, ConfigurationError("%s: interpreter binary is required", source)
	}
	if err := CheckBinary(cfg.Binary); err != nil {
		e := ConfigurationError("%s: %v", source, err)
		e.Err = err
		return nil, e
	}
	if cfg.Story != "" {
		if _, err := os.Stat(cfg.Story); err != nil {
			e := ConfigurationError("%s: story file %s is not readable", source, cfg.Story)
			e.Err = err
			return nil, e
		}
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = DefaultStartupTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	cfg.Args = append([]string(nil), cfg.Args...)
	cfg.Env = append([]string(nil), cfg.Env...)

	f := &ProcessFactory{
		cfg:    cfg,
		source: source,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// CheckBinary reports an error when binary is a path, rather than a bare
// name for PATH lookup, and no regular file exists there.
func CheckBinary(binary string) error {
	if !strings.ContainsRune(binary, '/') && !strings.ContainsRune(binary, filepath.Separator) {
		return nil
	}
	info, err := os.Stat(binary)
	if err != nil {
		return fmt.Errorf("interpreter binary %s: %w", binary, err)
	}
	if info.IsDir() {
		return fmt.Errorf("interpreter binary %s is a directory", binary)
	}
	return nil
}

// Source returns the transcript source this factory records as.
func (f *ProcessFactory) Source() transcript.Source { return f.source }

// Args expands the argument template for seed.
func (f *ProcessFactory) Args(seed int64) []string {
	s := strconv.FormatInt(seed, 10)
	out := make([]string, 0, len(f.cfg.Args)+1)
	usedStory := false
	for _, a := range f.cfg.Args {
		if strings.Contains(a, "{story}") {
			usedStory = true
		}
		a = strings.ReplaceAll(a, "{seed}", s)
		a = strings.ReplaceAll(a, "{story}", f.cfg.Story)
		out = append(out, a)
	}
	if !usedStory && f.cfg.Story != "" {
		out = append(out, f.cfg.Story)
	}
	return out
}

// Start spawns the interpreter and waits for its first prompt. Failure to
// locate, spawn or reach the prompt is INTERPRETER_UNAVAILABLE.
func (f *ProcessFactory) Start(ctx context.Context, seed int64) (Session, error) {
	path, err := exec.LookPath(f.cfg.Binary)
	if err != nil {
		return nil, UnavailableError(fmt.Sprintf("cannot locate %s", f.cfg.Binary), err)
	}

	args := f.Args(seed)
	logger := f.logger.With("source", f.source, "seed", seed)
	logger.Debug("spawning interpreter", "path", path, "args", args)

	proc, err := startProcess(path, args, f.cfg.Dir, f.cfg.Env)
	if err != nil {
		return nil, UnavailableError(fmt.Sprintf("cannot spawn %s", path), err)
	}

	s := newProcessSession(proc, proc.stdout, f.cfg, logger)
	if err := s.awaitFirstPrompt(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, UnavailableError("interpreter did not reach its prompt", err)
	}
	logger.Debug("interpreter ready", "banner_bytes", len(s.banner))
	return s, nil
}

// osProcess adapts an exec.Cmd to the process interface.
//
// Stdout is an os.Pipe owned by us rather than cmd.StdoutPipe, so that the
// reaping goroutine's cmd.Wait never races the reader.
type osProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	stderr *lockedBuffer

	done    chan struct{}
	waitErr error
}

func startProcess(path string, args []string, dir string, env []string) (*osProcess, error) {
	cmd := exec.Command(path, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &lockedBuffer{}
	cmd.Stdout = w
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	// The child holds its own copy of the write end; ours must close so the
	// reader sees EOF when the child exits.
	w.Close()

	p := &osProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: r,
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *osProcess) WriteLine(line string) error {
	_, err := io.WriteString(p.stdin, line+"\n")
	return err
}

func (p *osProcess) Signal(sig syscall.Signal) error { return p.cmd.Process.Signal(sig) }

func (p *osProcess) Kill() error { return p.cmd.Process.Kill() }

func (p *osProcess) Done() <-chan struct{} { return p.done }

// exitErr returns the wait error with captured stderr, once reaped.
func (p *osProcess) exitErr() error {
	select {
	case <-p.done:
	default:
		return nil
	}
	if p.waitErr == nil {
		return nil
	}
	if msg := strings.TrimSpace(p.stderr.String()); msg != "" {
		return fmt.Errorf("%w: %s", p.waitErr, msg)
	}
	return p.waitErr
}

func (p *osProcess) release() {
	p.stdin.Close()
	p.stdout.Close()
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Keep stderr bounded; only the tail matters for diagnostics.
	if b.buf.Len() > 64<<10 {
		b.buf.Reset()
	}
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// errPromptNotSeen is returned by readUntilPrompt when the output stream
// ends before a prompt.
var errPromptNotSeen = errors.New("output closed before prompt")
