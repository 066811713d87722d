// Package validator runs an implementation under test and a reference
// implementation through the same commands under one or more seeds, and
// aggregates the comparison reports into a pass/fail verdict.
//
// When the reference cannot be reached the implementation under test is
// still driven, and the seed is labelled standalone with 100% parity by
// definition. Standalone results are never presented as validated.
//
// Seeds share no mutable state and run concurrently up to
// Config.Parallelism. Persistence is left to the caller through a
// checkpoint callback invoked after every seed.
package validator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/parity/internal/adapter"
	"github.com/roach88/parity/internal/classify"
	"github.com/roach88/parity/internal/compare"
	"github.com/roach88/parity/internal/sequence"
	"github.com/roach88/parity/internal/transcript"
)

// Config is what the validator needs from the run configuration.
type Config struct {
	// Seeds used by RunWithSeeds when called without seeds.
	Seeds []int64

	// Commands is the command sequence.
	Commands []string

	// CommandsPerSeed caps the sequence for RunWithSeed. Zero means all.
	CommandsPerSeed int

	// AcceptedLogicDifferences is the largest logic count that passes.
	AcceptedLogicDifferences int

	// Parallelism bounds concurrently running seeds. Zero means 1.
	Parallelism int
}

// CheckpointFunc is called after each seed completes. Calls are serialized.
// A returned error aborts the run.
type CheckpointFunc func(ctx context.Context, r *SeedResult) error

// Option configures a Validator.
type Option func(*Validator)

// WithCheckpoint registers fn to run after every seed.
func WithCheckpoint(fn CheckpointFunc) Option {
	return func(v *Validator) {
		v.checkpoint = fn
	}
}

// WithMetrics records activity into m.
func WithMetrics(m *Metrics) Option {
	return func(v *Validator) {
		v.metrics = m
	}
}

// WithLogger sets the logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// WithClock sets the clock stamped on captured entries.
func WithClock(clock transcript.Clock) Option {
	return func(v *Validator) {
		v.clock = clock
	}
}

// Validator orchestrates seed runs.
type Validator struct {
	cfg        Config
	underTest  adapter.Factory
	reference  adapter.Factory
	cmp        *compare.Comparator
	checkpoint CheckpointFunc
	metrics    *Metrics
	logger     *slog.Logger
	clock      transcript.Clock

	checkpointMu sync.Mutex
}

// New creates a validator. reference may be nil for standalone runs.
// Configuration problems are reported as CONFIGURATION_ERROR before any
// interpreter is started.
func New(cfg Config, underTest, reference adapter.Factory, cmp *compare.Comparator, opts ...Option) (*Validator, error) {
	if underTest == nil {
		return nil, adapter.ConfigurationError("an implementation under test is required")
	}
	if cmp == nil {
		return nil, adapter.ConfigurationError("a comparator is required")
	}
	if len(cfg.Commands) == 0 {
		return nil, adapter.ConfigurationError("at least one command is required")
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	cfg.Seeds = append([]int64(nil), cfg.Seeds...)
	cfg.Commands = append([]string(nil), cfg.Commands...)

	v := &Validator{
		cfg:       cfg,
		underTest: underTest,
		reference: reference,
		cmp:       cmp,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// RunWithSeed runs the configured command sequence under seed.
func (v *Validator) RunWithSeed(ctx context.Context, seed int64) (*SeedResult, error) {
	r, err := v.runSeed(ctx, seed, sequence.Take(v.cfg.Commands, v.cfg.CommandsPerSeed))
	if err != nil {
		return nil, err
	}
	if err := v.emit(ctx, r); err != nil {
		return r, err
	}
	return r, nil
}

// RunWithSeeds runs every seed (Config.Seeds when none are given) and
// aggregates the results. Session failures are recorded per seed and fail
// the run; configuration errors and cancellation abort it.
func (v *Validator) RunWithSeeds(ctx context.Context, seeds []int64) (*ParityResults, error) {
	if len(seeds) == 0 {
		seeds = v.cfg.Seeds
	}
	if len(seeds) == 0 {
		return nil, adapter.ConfigurationError("no seeds to run")
	}

	start := time.Now()
	commands := sequence.Take(v.cfg.Commands, v.cfg.CommandsPerSeed)
	results := make([]*SeedResult, len(seeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Parallelism)
	for i, seed := range seeds {
		g.Go(func() error {
			r, err := v.runSeed(gctx, seed, commands)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			results[i] = r
			return v.emit(gctx, r)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pr := aggregate(seeds, results, v.cfg.AcceptedLogicDifferences)
	pr.ExecutionTime = time.Since(start)
	v.metrics.observeRun(pr)
	v.logger.Info("parity run complete",
		"seeds", len(seeds),
		"pass", pr.Pass,
		"logic_differences", pr.LogicDifferences,
		"standalone", pr.Standalone)
	return pr, nil
}

// RunExtendedSequence runs at least minCommandCount commands under seed,
// cycling the sequence as needed, to surface drift that only appears over
// long sessions.
func (v *Validator) RunExtendedSequence(ctx context.Context, seed int64, minCommandCount int) (*ExtendedResult, error) {
	if minCommandCount < 1 {
		return nil, adapter.ConfigurationError("minimum command count must be positive, got %d", minCommandCount)
	}
	commands := sequence.Extend(v.cfg.Commands, minCommandCount)

	r, err := v.runSeed(ctx, seed, commands)
	if err != nil {
		return nil, err
	}
	if err := v.emit(ctx, r); err != nil {
		return nil, err
	}
	er := &ExtendedResult{
		Seed:                seed,
		RequestedCommands:   minCommandCount,
		CommandCount:        r.TotalCommands,
		Differences:         r.Differences,
		HasLogicDifferences: r.LogicDifferences > 0,
		SeedResult:          r,
	}
	v.metrics.observeRun(er.Results(v.cfg.AcceptedLogicDifferences))
	return er, nil
}

// Results aggregates the single seed of an extended run the same way
// RunWithSeeds aggregates many.
func (er *ExtendedResult) Results(accepted int) *ParityResults {
	return aggregate([]int64{er.Seed}, []*SeedResult{er.SeedResult}, accepted)
}

// emit records metrics and runs the checkpoint.
func (v *Validator) emit(ctx context.Context, r *SeedResult) error {
	v.metrics.observeSeed(r)
	if v.checkpoint == nil {
		return nil
	}
	v.checkpointMu.Lock()
	defer v.checkpointMu.Unlock()
	if err := v.checkpoint(ctx, r); err != nil {
		return fmt.Errorf("checkpoint seed %d: %w", r.Seed, err)
	}
	return nil
}

// runSeed captures both transcripts and compares them. It returns an error
// only for configuration problems and cancellation; session failures land in
// SeedResult.Error.
func (v *Validator) runSeed(ctx context.Context, seed int64, commands []string) (*SeedResult, error) {
	start := time.Now()
	logger := v.logger.With("seed", seed)
	logger.Debug("running seed", "commands", len(commands))

	var (
		iut, ref       *transcript.Transcript
		iutErr, refErr error
		wg             sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		iut, iutErr = adapter.Record(ctx, v.underTest, seed, commands, v.clock)
	}()
	if v.reference != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, refErr = adapter.Record(ctx, v.reference, seed, commands, v.clock)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range []error{iutErr, refErr} {
		if adapter.IsConfiguration(err) {
			return nil, err
		}
	}

	r := &SeedResult{Seed: seed, UnderTest: iut}
	var failures []string
	if iutErr != nil {
		failures = append(failures, fmt.Sprintf("%s: %v", transcript.SourceUnderTest, iutErr))
	}

	standalone := v.reference == nil || adapter.IsUnavailable(refErr)
	if standalone {
		if v.reference != nil {
			logger.Warn("reference unavailable, running standalone", "error", refErr)
		}
		r.Mode = ModeStandalone
		r.Report = compare.Standalone(iut)
	} else {
		if refErr != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", transcript.SourceReference, refErr))
		}
		r.Mode = ModeValidated
		r.ReferenceAvailable = true
		r.Reference = ref
		r.Report = v.cmp.Run(ref, iut)
	}

	fill(r, r.Report)
	if len(failures) > 0 {
		r.Error = failures[0]
		for _, f := range failures[1:] {
			r.Error += "; " + f
		}
		logger.Error("seed failed", "error", r.Error)
	}
	r.Duration = time.Since(start)

	logger.Info("seed complete",
		"mode", r.Mode,
		"commands", r.TotalCommands,
		"differences", r.TotalDifferences,
		"logic", r.LogicDifferences)
	return r, nil
}

// fill copies report counters into r. Unclassified reports have every
// difference counted as logic, and the list mirrors that.
func fill(r *SeedResult, rep *compare.Report) {
	r.TotalCommands = rep.TotalCommands
	r.TotalDifferences = rep.TotalDifferences()
	r.RNGDifferences = rep.RNGDifferences
	r.StateDivergences = rep.StateDivergences
	r.LogicDifferences = rep.LogicDifferences
	r.ParityPercentage = rep.ParityScore
	r.LogicParityPercentage = rep.LogicParityPercentage

	if rep.ClassifiedDifferences != nil {
		r.Differences = rep.ClassifiedDifferences
		return
	}
	r.Differences = make([]compare.ClassifiedDifference, 0, len(rep.Differences))
	for _, d := range rep.Differences {
		r.Differences = append(r.Differences, compare.ClassifiedDifference{
			Difference:     d,
			Classification: classify.LogicDifference,
		})
	}
}

func aggregate(seeds []int64, results []*SeedResult, accepted int) *ParityResults {
	pr := &ParityResults{
		Seeds:                    append([]int64(nil), seeds...),
		AcceptedLogicDifferences: accepted,
		SeedResults:              results,
	}
	for _, r := range results {
		pr.TotalCommands += r.TotalCommands
		pr.TotalDifferences += r.TotalDifferences
		pr.RNGDifferences += r.RNGDifferences
		pr.StateDivergences += r.StateDivergences
		pr.LogicDifferences += r.LogicDifferences
		if r.Mode == ModeStandalone {
			pr.Standalone = true
		}
		if r.Failed() {
			pr.Failures = append(pr.Failures, fmt.Sprintf("seed %d: %s", r.Seed, r.Error))
		}
	}
	pr.OverallParityPercentage = compare.LogicParity(pr.TotalCommands, pr.LogicDifferences)
	pr.Pass = pr.LogicDifferences <= accepted && len(pr.Failures) == 0
	pr.Summary = Summarize(pr)
	return pr
}
