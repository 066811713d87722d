// Package adapter drives interactive-fiction interpreters and captures their
// responses as transcripts.
//
// Two adapters are provided. ProcessFactory spawns an interpreter binary and
// speaks its line-oriented prompt protocol: write a command line, read until
// the next input-ready marker, within a timeout. EngineFactory wraps an
// implementation that runs in-process.
//
// Subprocess sessions follow an explicit state machine:
//
//	Starting -> AwaitingPrompt -> Ready -> SendingCommand -> AwaitingResponse -> Ready ...
//	                                                      ... -> Terminating -> Terminated
//
// Shutdown escalates from quit commands to SIGTERM to SIGKILL, bounded by a
// hard deadline. Close and context cancellation both reap the process before
// returning.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/parity/internal/transcript"
)

// Session is one running interpreter.
//
// Send returns the response to one command. On COMMAND_TIMEOUT it returns
// the partial output together with the error, and the session remains usable.
// Close is idempotent.
type Session interface {
	Send(ctx context.Context, command string) (string, error)
	Close(ctx context.Context) error
}

// Factory starts sessions under a given seed.
type Factory interface {
	Start(ctx context.Context, seed int64) (Session, error)
	Source() transcript.Source
}

// Capture drives s through commands and records every response into rec.
//
// A timed-out command is recorded with FormatTimeoutEntry and the run
// continues. Any other error stops the capture; entries recorded so far stay
// in rec.
func Capture(ctx context.Context, s Session, commands []string, rec *transcript.Recorder) error {
	for i, cmd := range commands {
		if err := ctx.Err(); err != nil {
			return err
		}

		out, err := s.Send(ctx, cmd)
		if err != nil {
			var ae *Error
			if errors.As(err, &ae) && ae.Code == CodeTimeout {
				rec.Record(cmd, FormatTimeoutEntry(ae.Partial, ae.Timeout))
				continue
			}
			return fmt.Errorf("command %d (%q): %w", i, cmd, err)
		}
		rec.Record(cmd, out)
	}
	return nil
}

// Record starts a session from f, captures commands and closes the session.
// The returned transcript holds every entry captured before any error.
func Record(ctx context.Context, f Factory, seed int64, commands []string, clock transcript.Clock) (*transcript.Transcript, error) {
	rec := transcript.NewRecorder(f.Source(), clock)
	rec.SetMetadata("seed", strconv.FormatInt(seed, 10))

	s, err := f.Start(ctx, seed)
	if err != nil {
		return rec.Finish(), err
	}

	runErr := Capture(ctx, s, commands, rec)

	// Reap with a fresh context: a cancelled ctx must not skip cleanup.
	closeErr := s.Close(context.WithoutCancel(ctx))

	t := rec.Finish()
	if runErr != nil {
		return t, runErr
	}
	if closeErr != nil {
		return t, fmt.Errorf("close session: %w", closeErr)
	}
	return t, nil
}
