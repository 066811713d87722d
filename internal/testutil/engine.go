package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/parity/internal/adapter"
	"github.com/roach88/parity/internal/transcript"
)

// ErrScriptedFailure is returned by a ScriptedEngine at its FailAt turn.
var ErrScriptedFailure = errors.New("scripted engine failure")

// Script describes a toy game for tests.
//
// Responses maps a command to its fixed reply. Variants maps a command to an
// RNG pool; the reply is chosen by (seed + turn) so two seeds diverge
// deterministically. Unknown commands get Fallback, formatted with the
// command.
type Script struct {
	Responses map[string]string
	Variants  map[string][]string

	// Fallback defaults to `I don't know the word "%s".`
	Fallback string

	// Location, when set, prefixes each reply with a status line.
	Location string

	// FailAt, when positive, makes the turn with that number fail.
	FailAt int
}

// Constructor returns an adapter.EngineConstructor for the script.
func (s Script) Constructor() adapter.EngineConstructor {
	return func(_ context.Context, seed int64) (adapter.Engine, error) {
		return &ScriptedEngine{script: s, seed: seed}, nil
	}
}

// Factory returns an in-process factory for the script.
func (s Script) Factory(source transcript.Source) *adapter.EngineFactory {
	return adapter.NewEngineFactory(source, s.Constructor())
}

// ScriptedEngine plays a Script.
type ScriptedEngine struct {
	mu     sync.Mutex
	script Script
	seed   int64
	turn   int
	closed bool
}

// Execute returns the scripted reply to command.
func (e *ScriptedEngine) Execute(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.turn++
	if e.script.FailAt > 0 && e.turn == e.script.FailAt {
		return "", fmt.Errorf("turn %d: %w", e.turn, ErrScriptedFailure)
	}

	reply, ok := e.script.Responses[command]
	if v := e.script.Variants[command]; len(v) > 0 {
		idx := (e.seed + int64(e.turn)) % int64(len(v))
		if idx < 0 {
			idx += int64(len(v))
		}
		reply, ok = v[idx], true
	}
	if !ok {
		fallback := e.script.Fallback
		if fallback == "" {
			fallback = "I don't know the word \"%s\"."
		}
		reply = fmt.Sprintf(fallback, command)
	}

	if e.script.Location != "" {
		reply = fmt.Sprintf("%s    Score: 0    Moves: %d\n\n%s", e.script.Location, e.turn, reply)
	}
	return reply, nil
}

// Close marks the engine closed.
func (e *ScriptedEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// UnavailableFactory is a factory whose interpreter can never be started.
type UnavailableFactory struct {
	Src transcript.Source
}

// Source returns the configured source.
func (f UnavailableFactory) Source() transcript.Source { return f.Src }

// Start always fails with INTERPRETER_UNAVAILABLE.
func (f UnavailableFactory) Start(context.Context, int64) (adapter.Session, error) {
	return nil, adapter.UnavailableError("interpreter not installed", nil)
}
