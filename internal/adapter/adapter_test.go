package adapter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parity/internal/adapter"
	"github.com/roach88/parity/internal/testutil"
	"github.com/roach88/parity/internal/transcript"
)

// stubSession answers from a table of per-command results.
type stubSession struct {
	results map[string]func() (string, error)
	closed  int
}

func (s *stubSession) Send(_ context.Context, cmd string) (string, error) {
	if r, ok := s.results[cmd]; ok {
		return r()
	}
	return "ok: " + cmd, nil
}

func (s *stubSession) Close(context.Context) error {
	s.closed++
	return nil
}

func TestCapture_TimeoutIsRecordedAndRunContinues(t *testing.T) {
	s := &stubSession{results: map[string]func() (string, error){
		"wait": func() (string, error) {
			return "Time pa", &adapter.Error{Code: adapter.CodeTimeout, Partial: "Time pa", Timeout: 2 * time.Second}
		},
	}}
	rec := transcript.NewRecorder(transcript.SourceReference, testutil.NewDeterministicClock())

	err := adapter.Capture(context.Background(), s, []string{"look", "wait", "north"}, rec)
	require.NoError(t, err)

	tr := rec.Finish()
	require.Equal(t, 3, tr.Len())
	assert.Equal(t, "ok: look", tr.Entries[0].Output)
	assert.Equal(t, "Time pa\n[error: command timed out after 2s]", tr.Entries[1].Output)
	assert.Equal(t, "ok: north", tr.Entries[2].Output)
}

func TestCapture_TerminationKeepsEarlierEntries(t *testing.T) {
	s := &stubSession{results: map[string]func() (string, error){
		"die": func() (string, error) {
			return "", &adapter.Error{Code: adapter.CodeTerminated, Message: "interpreter exited unexpectedly"}
		},
	}}
	rec := transcript.NewRecorder(transcript.SourceReference, nil)

	err := adapter.Capture(context.Background(), s, []string{"look", "die", "north"}, rec)
	require.Error(t, err)
	assert.True(t, adapter.IsTerminated(err))
	assert.Contains(t, err.Error(), `command 1 ("die")`)
	assert.Equal(t, 1, rec.Len())
}

func TestCapture_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := transcript.NewRecorder(transcript.SourceUnderTest, nil)

	err := adapter.Capture(ctx, &stubSession{}, []string{"look"}, rec)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, rec.Len())
}

func TestRecord_InProcessEngine(t *testing.T) {
	script := testutil.Script{Responses: map[string]string{"look": "West of House", "north": "North of House"}}
	f := script.Factory(transcript.SourceUnderTest)

	tr, err := adapter.Record(context.Background(), f, 9, []string{"look", "north"}, testutil.NewDeterministicClock())
	require.NoError(t, err)
	assert.Equal(t, transcript.SourceUnderTest, tr.Source)
	assert.Equal(t, []string{"look", "north"}, tr.Commands())
	assert.Equal(t, "North of House", tr.Entries[1].Output)
	assert.Equal(t, "9", tr.Metadata["seed"])
}

func TestRecord_EngineFailureReturnsPartialTranscript(t *testing.T) {
	script := testutil.Script{FailAt: 2}
	f := script.Factory(transcript.SourceUnderTest)

	tr, err := adapter.Record(context.Background(), f, 1, []string{"a", "b", "c"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, testutil.ErrScriptedFailure))
	assert.Equal(t, 1, tr.Len())
}

func TestRecord_Unavailable(t *testing.T) {
	f := testutil.UnavailableFactory{Src: transcript.SourceReference}
	tr, err := adapter.Record(context.Background(), f, 1, []string{"look"}, nil)
	assert.True(t, adapter.IsUnavailable(err))
	assert.Equal(t, 0, tr.Len())
}

func TestEngineFactory_ConstructorErrors(t *testing.T) {
	f := adapter.NewEngineFactory(transcript.SourceUnderTest, nil)
	_, err := f.Start(context.Background(), 1)
	assert.True(t, adapter.IsConfiguration(err))

	f = adapter.NewEngineFactory(transcript.SourceUnderTest, func(context.Context, int64) (adapter.Engine, error) {
		return nil, errors.New("story not found")
	})
	_, err = f.Start(context.Background(), 1)
	assert.True(t, adapter.IsUnavailable(err))
	assert.ErrorContains(t, err, "story not found")
}
