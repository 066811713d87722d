package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parity/internal/adapter"
	"github.com/roach88/parity/internal/transcript"
)

func TestScriptedEngine_Replies(t *testing.T) {
	s := Script{
		Responses: map[string]string{"look": "West of House"},
		Variants:  map[string][]string{"jump": {"Wheeeeeeeeee!!!!!", "Are you enjoying yourself?"}},
	}
	ctx := context.Background()

	sess, err := s.Factory(transcript.SourceUnderTest).Start(ctx, 0)
	require.NoError(t, err)

	out, err := sess.Send(ctx, "look")
	require.NoError(t, err)
	assert.Equal(t, "West of House", out)

	out, err = sess.Send(ctx, "jump")
	require.NoError(t, err)
	assert.Equal(t, "Wheeeeeeeeee!!!!!", out) // (0 + 2) % 2

	out, err = sess.Send(ctx, "xyzzy")
	require.NoError(t, err)
	assert.Equal(t, `I don't know the word "xyzzy".`, out)

	require.NoError(t, sess.Close(ctx))
	_, err = sess.Send(ctx, "look")
	assert.True(t, adapter.IsTerminated(err))
}

func TestScriptedEngine_SeedsDiverge(t *testing.T) {
	s := Script{Variants: map[string][]string{"jump": {"a", "b"}}}
	ctx := context.Background()

	e0, err := s.Constructor()(ctx, 0)
	require.NoError(t, err)
	e1, err := s.Constructor()(ctx, 1)
	require.NoError(t, err)

	a, _ := e0.Execute(ctx, "jump")
	b, _ := e1.Execute(ctx, "jump")
	assert.NotEqual(t, a, b)
}

func TestScriptedEngine_StatusAndFailure(t *testing.T) {
	s := Script{Responses: map[string]string{"wait": "Time passes."}, Location: "Kitchen", FailAt: 2}
	ctx := context.Background()
	e, err := s.Constructor()(ctx, 7)
	require.NoError(t, err)

	out, err := e.Execute(ctx, "wait")
	require.NoError(t, err)
	assert.Equal(t, "Kitchen    Score: 0    Moves: 1\n\nTime passes.", out)

	_, err = e.Execute(ctx, "wait")
	assert.ErrorIs(t, err, ErrScriptedFailure)
}

func TestUnavailableFactory(t *testing.T) {
	f := UnavailableFactory{Src: transcript.SourceReference}
	_, err := f.Start(context.Background(), 1)
	assert.True(t, adapter.IsUnavailable(err))
	assert.Equal(t, transcript.SourceReference, f.Source())
}
