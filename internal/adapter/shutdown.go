package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"syscall"
	"time"
)

// Default shutdown timings.
const (
	DefaultQuitGrace      = 2 * time.Second
	DefaultTermGrace      = 2 * time.Second
	DefaultShutdownBudget = 10 * time.Second
)

// DefaultQuitCommands are written in order when closing a session. Most
// interpreters confirm a quit request.
var DefaultQuitCommands = []string{"quit", "y"}

// ShutdownPolicy configures the quit -> SIGTERM -> SIGKILL escalation.
type ShutdownPolicy struct {
	QuitCommands []string
	QuitGrace    time.Duration // wait after quit commands
	TermGrace    time.Duration // wait after SIGTERM
	Deadline     time.Duration // hard upper bound on the whole shutdown
}

func (p ShutdownPolicy) withDefaults() ShutdownPolicy {
	if p.QuitCommands == nil {
		p.QuitCommands = DefaultQuitCommands
	}
	if p.QuitGrace <= 0 {
		p.QuitGrace = DefaultQuitGrace
	}
	if p.TermGrace <= 0 {
		p.TermGrace = DefaultTermGrace
	}
	if p.Deadline <= 0 {
		p.Deadline = DefaultShutdownBudget
	}
	return p
}

// ShutdownStage is the escalation step that ended a process.
type ShutdownStage string

const (
	StageAlreadyExited ShutdownStage = "already-exited"
	StageQuit          ShutdownStage = "quit"
	StageTerminate     ShutdownStage = "sigterm"
	StageKill          ShutdownStage = "sigkill"
)

// process is the view of a child process that shutdown needs.
type process interface {
	// WriteLine sends one line to the process's stdin.
	WriteLine(line string) error
	// Signal delivers sig.
	Signal(sig syscall.Signal) error
	// Kill forcefully stops the process.
	Kill() error
	// Done is closed once the process has been reaped.
	Done() <-chan struct{}
}

// terminate stops p, escalating until it exits or the policy's deadline
// passes. Write and signal failures are logged and escalation continues.
func terminate(ctx context.Context, p process, policy ShutdownPolicy, logger *slog.Logger) (ShutdownStage, error) {
	policy = policy.withDefaults()

	select {
	case <-p.Done():
		return StageAlreadyExited, nil
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, policy.Deadline)
	defer cancel()

	wait := func(d time.Duration) bool {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-p.Done():
			return true
		case <-t.C:
			return false
		case <-ctx.Done():
			return false
		}
	}

	for _, q := range policy.QuitCommands {
		if err := p.WriteLine(q); err != nil {
			logger.Debug("quit command not delivered", "command", q, "error", err)
			break
		}
	}
	if wait(policy.QuitGrace) {
		return StageQuit, nil
	}

	logger.Debug("interpreter ignored quit, sending SIGTERM")
	if err := p.Signal(syscall.SIGTERM); err != nil {
		logger.Debug("SIGTERM failed", "error", err)
	}
	if wait(policy.TermGrace) {
		return StageTerminate, nil
	}

	logger.Warn("interpreter ignored SIGTERM, killing")
	if err := p.Kill(); err != nil {
		logger.Debug("kill failed", "error", err)
	}
	select {
	case <-p.Done():
		return StageKill, nil
	case <-ctx.Done():
		return StageKill, fmt.Errorf("process not reaped within %s", policy.Deadline)
	}
}
