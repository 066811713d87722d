package cli

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/parity/internal/adapter"
	"github.com/roach88/parity/internal/classify"
	"github.com/roach88/parity/internal/compare"
	"github.com/roach88/parity/internal/config"
	"github.com/roach88/parity/internal/sequence"
	"github.com/roach88/parity/internal/store"
	"github.com/roach88/parity/internal/validator"
)

// Workspace is everything a run needs, loaded from one configuration file.
type Workspace struct {
	Config     *config.Config
	Sequence   *sequence.Sequence
	Pools      *classify.PoolSet
	Comparator *compare.Comparator
}

// LoadWorkspace loads the configuration at path together with the command
// sequence and pool table it names. Every failure is a CONFIGURATION_ERROR.
func LoadWorkspace(path string) (*Workspace, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	seq, err := sequence.Load(cfg.Commands)
	if err != nil {
		e := adapter.ConfigurationError("commands: %v", err)
		e.Err = err
		return nil, e
	}

	pools, err := loadPools(cfg.Pools)
	if err != nil {
		e := adapter.ConfigurationError("pools: %v", err)
		e.Err = err
		return nil, e
	}

	return &Workspace{
		Config:     cfg,
		Sequence:   seq,
		Pools:      pools,
		Comparator: compare.New(cfg.Comparator, pools),
	}, nil
}

// loadPools returns the pools at path, or the built-in table when path is
// empty.
func loadPools(path string) (*classify.PoolSet, error) {
	if path == "" {
		return classify.DefaultPools()
	}
	return classify.LoadPools(path)
}

// runRecorder persists a run while it progresses. Seeds are saved as they
// finish, so an interrupted run keeps its completed seeds. A nil
// runRecorder does nothing.
type runRecorder struct {
	st     *store.Store
	id     string
	logger *slog.Logger
}

// beginRun opens the store at path and records the start of a run. It
// returns nil when path is empty.
func beginRun(ctx context.Context, path string, kind store.RunKind, seeds []int64, cfg string, logger *slog.Logger) (*runRecorder, error) {
	if path == "" {
		return nil, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	id, err := st.BeginRun(ctx, kind, seeds, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	logger.Info("recording run", "db", path, "run_id", id)
	return &runRecorder{st: st, id: id, logger: logger}, nil
}

func (r *runRecorder) options() []validator.Option {
	if r == nil {
		return nil
	}
	return []validator.Option{
		validator.WithCheckpoint(func(ctx context.Context, res *validator.SeedResult) error {
			return r.st.SaveSeedResult(ctx, r.id, res)
		}),
	}
}

func (r *runRecorder) finish(ctx context.Context, pr *validator.ParityResults) error {
	if r == nil {
		return nil
	}
	return r.st.FinishRun(ctx, r.id, pr)
}

func (r *runRecorder) runID() string {
	if r == nil {
		return ""
	}
	return r.id
}

func (r *runRecorder) close() {
	if r == nil {
		return
	}
	if err := r.st.Close(); err != nil {
		r.logger.Error("error closing database", "error", err)
	}
}

// metricsSink collects validator metrics into a private registry and
// writes them in the Prometheus text format for node_exporter's textfile
// collector. A nil metricsSink does nothing.
type metricsSink struct {
	path string
	reg  *prometheus.Registry
	m    *validator.Metrics
}

func newMetricsSink(path string) *metricsSink {
	if path == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	return &metricsSink{path: path, reg: reg, m: validator.NewMetrics(reg)}
}

func (s *metricsSink) options() []validator.Option {
	if s == nil {
		return nil
	}
	return []validator.Option{validator.WithMetrics(s.m)}
}

func (s *metricsSink) write() error {
	if s == nil {
		return nil
	}
	return prometheus.WriteToTextfile(s.path, s.reg)
}
