package adapter

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/roach88/parity/internal/transcript"
)

// Engine is an interpreter that runs in-process. Execute returns the full
// response to one command. If the engine also implements io.Closer, Close is
// called when the session ends.
type Engine interface {
	Execute(ctx context.Context, command string) (string, error)
}

// EngineConstructor builds a fresh engine seeded with seed.
type EngineConstructor func(ctx context.Context, seed int64) (Engine, error)

// EngineFactory starts in-process sessions.
type EngineFactory struct {
	source    transcript.Source
	construct EngineConstructor
}

// NewEngineFactory returns a factory that calls construct for every session.
func NewEngineFactory(source transcript.Source, construct EngineConstructor) *EngineFactory {
	return &EngineFactory{source: source, construct: construct}
}

// Source returns the transcript source this factory records as.
func (f *EngineFactory) Source() transcript.Source { return f.source }

// Start constructs an engine for seed.
func (f *EngineFactory) Start(ctx context.Context, seed int64) (Session, error) {
	if f.construct == nil {
		return nil, ConfigurationError("%s: no engine constructor", f.source)
	}
	e, err := f.construct(ctx, seed)
	if err != nil {
		return nil, UnavailableError(fmt.Sprintf("cannot construct engine for seed %d", seed), err)
	}
	return &engineSession{engine: e}, nil
}

type engineSession struct {
	mu     sync.Mutex
	engine Engine
	closed bool
}

func (s *engineSession) Send(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", terminatedError(command, "", errSessionClosed)
	}
	return s.engine.Execute(ctx, command)
}

func (s *engineSession) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
