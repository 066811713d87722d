package validator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/parity/internal/adapter"
	"github.com/roach88/parity/internal/classify"
	"github.com/roach88/parity/internal/compare"
	"github.com/roach88/parity/internal/testutil"
	"github.com/roach88/parity/internal/transcript"
)

var (
	commands = []string{"look", "open mailbox", "jump", "take lamp"}

	celebration = []string{
		"Very good. Now you can go to the second grade.",
		"Are you enjoying yourself?",
		"Wheeeeeeeeee!!!!!",
		"Do you expect me to applaud?",
	}

	referenceScript = testutil.Script{
		Responses: map[string]string{
			"look":         "West of House\nYou are standing in an open field west of a white house.",
			"open mailbox": "Opening the small mailbox reveals a leaflet.",
			"take lamp":    "Taken.",
		},
		Variants: map[string][]string{"jump": celebration},
		Location: "West of House",
	}
)

// buggyScript refuses to open the mailbox and picks jump replies in a
// different order than the reference.
func buggyScript() testutil.Script {
	s := referenceScript
	s.Responses = map[string]string{
		"look":         referenceScript.Responses["look"],
		"open mailbox": "The mailbox is locked.",
		"take lamp":    "Taken.",
	}
	s.Variants = map[string][]string{"jump": {celebration[1], celebration[2], celebration[3], celebration[0]}}
	return s
}

func newComparator(t *testing.T) *compare.Comparator {
	t.Helper()
	pools, err := classify.DefaultPools()
	require.NoError(t, err)
	return compare.New(compare.DefaultOptions(), pools)
}

func newValidator(t *testing.T, cfg Config, iut, ref adapter.Factory, opts ...Option) *Validator {
	t.Helper()
	if cfg.Commands == nil {
		cfg.Commands = commands
	}
	opts = append([]Option{WithClock(testutil.NewDeterministicClock())}, opts...)
	v, err := New(cfg, iut, ref, newComparator(t), opts...)
	require.NoError(t, err)
	return v
}

func TestRunWithSeeds_IdenticalImplementations(t *testing.T) {
	var checkpoints []int64
	v := newValidator(t, Config{Seeds: []int64{1, 2, 3}},
		referenceScript.Factory(transcript.SourceUnderTest),
		referenceScript.Factory(transcript.SourceReference),
		WithCheckpoint(func(_ context.Context, r *SeedResult) error {
			checkpoints = append(checkpoints, r.Seed)
			return nil
		}))

	res, err := v.RunWithSeeds(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, res.Pass)
	assert.False(t, res.Standalone)
	assert.Equal(t, []int64{1, 2, 3}, res.Seeds)
	assert.Equal(t, 12, res.TotalCommands)
	assert.Equal(t, 0, res.TotalDifferences)
	assert.Equal(t, 100.0, res.OverallParityPercentage)
	assert.ElementsMatch(t, []int64{1, 2, 3}, checkpoints)
	assert.True(t, strings.HasPrefix(res.Summary, "Parity PASS"))

	for _, r := range res.SeedResults {
		assert.Equal(t, ModeValidated, r.Mode)
		assert.True(t, r.ReferenceAvailable)
		assert.Equal(t, 100.0, r.ParityPercentage)
		assert.Empty(t, r.Differences)
		require.NotNil(t, r.Reference)
		assert.Equal(t, commands, r.Reference.Commands())
	}
}

func TestRunWithSeeds_ClassifiesDifferences(t *testing.T) {
	cfg := Config{Seeds: []int64{1, 2}}
	v := newValidator(t, cfg,
		buggyScript().Factory(transcript.SourceUnderTest),
		referenceScript.Factory(transcript.SourceReference))

	res, err := v.RunWithSeeds(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 8, res.TotalCommands)
	assert.Equal(t, 4, res.TotalDifferences)
	assert.Equal(t, 2, res.LogicDifferences)
	assert.Equal(t, 2, res.RNGDifferences)
	assert.Equal(t, 0, res.StateDivergences)
	assert.Equal(t, res.TotalDifferences, res.RNGDifferences+res.StateDivergences+res.LogicDifferences)
	assert.Equal(t, 75.0, res.OverallParityPercentage)
	assert.False(t, res.Pass)
	assert.Contains(t, res.Summary, "Parity FAIL")

	r := res.SeedResults[0]
	require.Len(t, r.Differences, 2)
	assert.Equal(t, "open mailbox", r.Differences[0].Command)
	assert.Equal(t, classify.LogicDifference, r.Differences[0].Classification)
	assert.Equal(t, "jump", r.Differences[1].Command)
	assert.Equal(t, classify.RNGDifference, r.Differences[1].Classification)
	assert.Equal(t, 75.0, r.LogicParityPercentage)

	cfg.AcceptedLogicDifferences = 2
	v = newValidator(t, cfg,
		buggyScript().Factory(transcript.SourceUnderTest),
		referenceScript.Factory(transcript.SourceReference))
	res, err = v.RunWithSeeds(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.Pass)
}

func TestRunWithSeed_StandaloneWhenReferenceUnavailable(t *testing.T) {
	v := newValidator(t, Config{},
		buggyScript().Factory(transcript.SourceUnderTest),
		testutil.UnavailableFactory{Src: transcript.SourceReference})

	r, err := v.RunWithSeed(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, ModeStandalone, r.Mode)
	assert.False(t, r.ReferenceAvailable)
	assert.False(t, r.Failed())
	assert.Equal(t, 4, r.TotalCommands)
	assert.Equal(t, 0, r.LogicDifferences)
	assert.Equal(t, 100.0, r.LogicParityPercentage)
	assert.Empty(t, r.Differences)
	assert.True(t, r.Report.Standalone)
	require.NotNil(t, r.UnderTest)
	assert.Equal(t, 4, r.UnderTest.Len(), "the implementation under test is still driven")
	assert.Nil(t, r.Reference)
}

func TestRunWithSeeds_StandaloneIsLabelled(t *testing.T) {
	v := newValidator(t, Config{Seeds: []int64{1, 2}},
		referenceScript.Factory(transcript.SourceUnderTest), nil)

	res, err := v.RunWithSeeds(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.Standalone)
	assert.True(t, res.Pass)
	assert.Equal(t, 100.0, res.OverallParityPercentage)
	assert.Contains(t, res.Summary, "STANDALONE: 2 seed(s) ran without a reference")
}

func TestRunWithSeed_CommandsPerSeed(t *testing.T) {
	v := newValidator(t, Config{CommandsPerSeed: 2},
		referenceScript.Factory(transcript.SourceUnderTest),
		referenceScript.Factory(transcript.SourceReference))

	r, err := v.RunWithSeed(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, r.TotalCommands)
}

func TestRunWithSeeds_SessionFailureFailsRun(t *testing.T) {
	broken := referenceScript
	broken.FailAt = 3

	v := newValidator(t, Config{Seeds: []int64{1}},
		broken.Factory(transcript.SourceUnderTest),
		referenceScript.Factory(transcript.SourceReference))

	res, err := v.RunWithSeeds(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "seed 1: under-test")
	assert.Contains(t, res.Summary, "FAILED seed 1")

	r := res.SeedResults[0]
	assert.True(t, r.Failed())
	assert.Equal(t, 2, r.UnderTest.Len(), "entries before the failure are kept")
	assert.Equal(t, 4, r.TotalCommands)
	assert.Equal(t, 2, r.TotalDifferences, "missing entries are unmatched differences")
	assert.Equal(t, 1, r.LogicDifferences)
	assert.Equal(t, 1, r.StateDivergences)
}

func TestRunWithSeeds_ConfigurationErrorAborts(t *testing.T) {
	v := newValidator(t, Config{Seeds: []int64{1, 2}},
		adapter.NewEngineFactory(transcript.SourceUnderTest, nil),
		referenceScript.Factory(transcript.SourceReference))

	_, err := v.RunWithSeeds(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, adapter.IsConfiguration(err))
}

func TestRunWithSeeds_CheckpointErrorAborts(t *testing.T) {
	boom := errors.New("disk full")
	v := newValidator(t, Config{Seeds: []int64{1}},
		referenceScript.Factory(transcript.SourceUnderTest),
		referenceScript.Factory(transcript.SourceReference),
		WithCheckpoint(func(context.Context, *SeedResult) error { return boom }))

	_, err := v.RunWithSeeds(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "checkpoint seed 1")
}

func TestRunWithSeeds_ParallelCheckpointsAreSerialized(t *testing.T) {
	seeds := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	active, calls := 0, 0
	v := newValidator(t, Config{Seeds: seeds, Parallelism: 4},
		buggyScript().Factory(transcript.SourceUnderTest),
		referenceScript.Factory(transcript.SourceReference),
		WithCheckpoint(func(context.Context, *SeedResult) error {
			active++
			defer func() { active-- }()
			calls++
			assert.Equal(t, 1, active)
			return nil
		}))

	res, err := v.RunWithSeeds(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, len(seeds), calls)
	assert.Equal(t, 8, res.LogicDifferences)
	for i, r := range res.SeedResults {
		assert.Equal(t, seeds[i], r.Seed, "results keep seed order")
	}
}

func TestRunWithSeeds_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := newValidator(t, Config{Seeds: []int64{1}},
		referenceScript.Factory(transcript.SourceUnderTest),
		referenceScript.Factory(transcript.SourceReference))

	_, err := v.RunWithSeeds(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunExtendedSequence(t *testing.T) {
	v := newValidator(t, Config{CommandsPerSeed: 2},
		buggyScript().Factory(transcript.SourceUnderTest),
		referenceScript.Factory(transcript.SourceReference))

	res, err := v.RunExtendedSequence(context.Background(), 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, res.RequestedCommands)
	assert.GreaterOrEqual(t, res.CommandCount, 10)
	assert.Equal(t, 12, res.CommandCount)
	assert.True(t, res.HasLogicDifferences)

	// After the first divergence, repeats of the bug read as state drift.
	assert.Equal(t, 1, res.SeedResult.LogicDifferences)
	assert.Equal(t, 2, res.SeedResult.StateDivergences)
	assert.Equal(t, 3, res.SeedResult.RNGDifferences)
	assert.Len(t, res.Differences, 6)

	pr := res.Results(1)
	assert.Equal(t, []int64{3}, pr.Seeds)
	assert.Equal(t, 12, pr.TotalCommands)
	assert.True(t, pr.Pass, "one logic difference is accepted")
	assert.False(t, res.Results(0).Pass)

	_, err = v.RunExtendedSequence(context.Background(), 3, 0)
	assert.True(t, adapter.IsConfiguration(err))
}

func TestRunWithSeed_UnclassifiedCountsEverythingAsLogic(t *testing.T) {
	opts := compare.DefaultOptions()
	opts.TrackDifferenceTypes = false
	pools, err := classify.DefaultPools()
	require.NoError(t, err)

	v, err := New(Config{Commands: commands},
		buggyScript().Factory(transcript.SourceUnderTest),
		referenceScript.Factory(transcript.SourceReference),
		compare.New(opts, pools))
	require.NoError(t, err)

	r, err := v.RunWithSeed(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, r.LogicDifferences)
	require.Len(t, r.Differences, 2)
	for _, d := range r.Differences {
		assert.Equal(t, classify.LogicDifference, d.Classification)
	}
}

func TestNew_Validation(t *testing.T) {
	iut := referenceScript.Factory(transcript.SourceUnderTest)
	cmp := newComparator(t)

	_, err := New(Config{Commands: commands}, nil, nil, cmp)
	assert.True(t, adapter.IsConfiguration(err))

	_, err = New(Config{Commands: commands}, iut, nil, nil)
	assert.True(t, adapter.IsConfiguration(err))

	_, err = New(Config{}, iut, nil, cmp)
	assert.True(t, adapter.IsConfiguration(err))

	v, err := New(Config{Commands: commands}, iut, nil, cmp)
	require.NoError(t, err)
	_, err = v.RunWithSeeds(context.Background(), nil)
	assert.True(t, adapter.IsConfiguration(err), "no seeds configured")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	v := newValidator(t, Config{Seeds: []int64{1, 2}},
		buggyScript().Factory(transcript.SourceUnderTest),
		referenceScript.Factory(transcript.SourceReference),
		WithMetrics(m))

	_, err := v.RunWithSeeds(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2.0, promtest.ToFloat64(m.seeds.WithLabelValues("validated", "ok")))
	assert.Equal(t, 8.0, promtest.ToFloat64(m.commands))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.differences.WithLabelValues("LOGIC_DIFFERENCE")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.differences.WithLabelValues("RNG_DIFFERENCE")))
	assert.Equal(t, 75.0, promtest.ToFloat64(m.logicParity))

	n, err := promtest.GatherAndCount(reg, "parity_seed_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_ExtendedRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	v := newValidator(t, Config{},
		buggyScript().Factory(transcript.SourceUnderTest),
		referenceScript.Factory(transcript.SourceReference),
		WithMetrics(m))

	res, err := v.RunExtendedSequence(context.Background(), 3, 10)
	require.NoError(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.seeds.WithLabelValues("validated", "ok")))
	assert.InDelta(t, res.SeedResult.LogicParityPercentage, promtest.ToFloat64(m.logicParity), 1e-9)
	assert.Less(t, promtest.ToFloat64(m.logicParity), 100.0)

	n, err := promtest.GatherAndCount(reg, "parity_logic_parity_percentage")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
