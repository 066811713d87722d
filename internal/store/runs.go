package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/parity/internal/classify"
	"github.com/roach88/parity/internal/compare"
	"github.com/roach88/parity/internal/transcript"
	"github.com/roach88/parity/internal/validator"
)

// RunKind distinguishes multi-seed runs from extended-sequence runs.
type RunKind string

const (
	KindSeeds    RunKind = "seeds"
	KindExtended RunKind = "extended"
)

// ErrRunNotFound is returned by LoadRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// Run is a stored validator invocation.
type Run struct {
	ID         string     `json:"id"`
	Kind       RunKind    `json:"kind"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Seeds      []int64    `json:"seeds"`
	Config     string     `json:"config,omitempty"`

	TotalCommands           int     `json:"total_commands"`
	TotalDifferences        int     `json:"total_differences"`
	RNGDifferences          int     `json:"rng_differences"`
	StateDivergences        int     `json:"state_divergences"`
	LogicDifferences        int     `json:"logic_differences"`
	OverallParityPercentage float64 `json:"overall_parity_percentage"`
	Pass                    bool    `json:"pass"`
	Standalone              bool    `json:"standalone"`
	Summary                 string  `json:"summary"`

	// SeedCount is the number of stored seed results.
	SeedCount int `json:"seed_count"`
}

// Finished reports whether FinishRun was called for the run.
func (r *Run) Finished() bool {
	return r.FinishedAt != nil
}

// BeginRun records the start of a run and returns its ID. config is an
// opaque rendering of the configuration, stored for reference.
func (s *Store) BeginRun(ctx context.Context, kind RunKind, seeds []int64, config string) (string, error) {
	seedsJSON, err := json.Marshal(nonNil(seeds))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}

	id := s.ids.NewID()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, started_at, seeds, config)
		VALUES (?, ?, ?, ?, ?)
	`, id, string(kind), s.now(), string(seedsJSON), config)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// SaveSeedResult stores one seed's result and its differences. Saving the
// same seed twice replaces the earlier result. It is shaped to serve as a
// validator checkpoint:
//
//	validator.WithCheckpoint(func(ctx context.Context, r *validator.SeedResult) error {
//		return st.SaveSeedResult(ctx, runID, r)
//	})
func (s *Store) SaveSeedResult(ctx context.Context, runID string, r *validator.SeedResult) error {
	iut, err := marshalTranscript(r.UnderTest)
	if err != nil {
		return fmt.Errorf("save seed %d: %w", r.Seed, err)
	}
	ref, err := marshalTranscript(r.Reference)
	if err != nil {
		return fmt.Errorf("save seed %d: %w", r.Seed, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save seed %d: %w", r.Seed, err)
	}
	defer tx.Rollback()

	// Foreign keys cascade the old differences away.
	if _, err := tx.ExecContext(ctx, `DELETE FROM seed_results WHERE run_id = ? AND seed = ?`, runID, r.Seed); err != nil {
		return fmt.Errorf("save seed %d: %w", r.Seed, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO seed_results
		(run_id, seed, mode, reference_available, total_commands, total_differences,
		 rng_differences, state_divergences, logic_differences, parity, logic_parity,
		 error, duration_ns, under_test, reference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, r.Seed, string(r.Mode), r.ReferenceAvailable, r.TotalCommands, r.TotalDifferences,
		r.RNGDifferences, r.StateDivergences, r.LogicDifferences, r.ParityPercentage, r.LogicParityPercentage,
		r.Error, int64(r.Duration), iut, ref,
	)
	if err != nil {
		return fmt.Errorf("save seed %d: %w", r.Seed, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO differences
		(run_id, seed, command_index, command, expected, actual, severity,
		 classification, reason, similarity, unmatched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save seed %d: %w", r.Seed, err)
	}
	defer stmt.Close()

	for _, d := range r.Differences {
		_, err := stmt.ExecContext(ctx,
			runID, r.Seed, d.CommandIndex, d.Command, d.Expected, d.Actual, string(d.Severity),
			string(d.Classification), d.Reason, d.Similarity, d.Unmatched,
		)
		if err != nil {
			return fmt.Errorf("save seed %d difference %d: %w", r.Seed, d.CommandIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save seed %d: %w", r.Seed, err)
	}
	return nil
}

// FinishRun stamps a run with its aggregate verdict.
func (s *Store) FinishRun(ctx context.Context, runID string, pr *validator.ParityResults) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = ?, total_commands = ?, total_differences = ?,
			rng_differences = ?, state_divergences = ?, logic_differences = ?,
			overall_parity = ?, pass = ?, standalone = ?, summary = ?
		WHERE id = ?
	`,
		s.now(), pr.TotalCommands, pr.TotalDifferences,
		pr.RNGDifferences, pr.StateDivergences, pr.LogicDifferences,
		pr.OverallParityPercentage, pr.Pass, pr.Standalone, pr.Summary,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// SaveRun stores a completed multi-seed run in one call and returns its ID.
func (s *Store) SaveRun(ctx context.Context, kind RunKind, pr *validator.ParityResults, config string) (string, error) {
	id, err := s.BeginRun(ctx, kind, pr.Seeds, config)
	if err != nil {
		return "", err
	}
	for _, r := range pr.SeedResults {
		if r == nil {
			continue
		}
		if err := s.SaveSeedResult(ctx, id, r); err != nil {
			return "", err
		}
	}
	if err := s.FinishRun(ctx, id, pr); err != nil {
		return "", err
	}
	return id, nil
}

const runColumns = `
	r.id, r.kind, r.started_at, r.finished_at, r.seeds, r.config,
	r.total_commands, r.total_differences, r.rng_differences, r.state_divergences,
	r.logic_differences, r.overall_parity, r.pass, r.standalone, r.summary,
	(SELECT COUNT(*) FROM seed_results sr WHERE sr.run_id = r.id)
`

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC, r.id COLLATE BINARY DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LoadRun returns a run and its seed results, ordered by seed. Reports are
// not stored; SeedResult.Report is nil.
func (s *Store) LoadRun(ctx context.Context, id string) (*Run, []*validator.SeedResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("load run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, nil, err
	}

	seeds, err := s.loadSeedResults(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &run, seeds, nil
}

func (s *Store) loadSeedResults(ctx context.Context, runID string) ([]*validator.SeedResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seed, mode, reference_available, total_commands, total_differences,
		       rng_differences, state_divergences, logic_differences, parity, logic_parity,
		       error, duration_ns, under_test, reference
		FROM seed_results
		WHERE run_id = ?
		ORDER BY seed ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query seed results: %w", err)
	}
	defer rows.Close()

	results := []*validator.SeedResult{}
	for rows.Next() {
		var (
			r        validator.SeedResult
			mode     string
			duration int64
			iut, ref sql.NullString
		)
		err := rows.Scan(&r.Seed, &mode, &r.ReferenceAvailable, &r.TotalCommands, &r.TotalDifferences,
			&r.RNGDifferences, &r.StateDivergences, &r.LogicDifferences, &r.ParityPercentage,
			&r.LogicParityPercentage, &r.Error, &duration, &iut, &ref)
		if err != nil {
			return nil, fmt.Errorf("scan seed result: %w", err)
		}
		r.Mode = validator.Mode(mode)
		r.Duration = time.Duration(duration)
		if r.UnderTest, err = unmarshalTranscript(iut); err != nil {
			return nil, fmt.Errorf("seed %d: %w", r.Seed, err)
		}
		if r.Reference, err = unmarshalTranscript(ref); err != nil {
			return nil, fmt.Errorf("seed %d: %w", r.Seed, err)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seed results: %w", err)
	}
	rows.Close()

	for _, r := range results {
		if r.Differences, err = s.loadDifferences(ctx, runID, r.Seed); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *Store) loadDifferences(ctx context.Context, runID string, seed int64) ([]compare.ClassifiedDifference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT command_index, command, expected, actual, severity, classification,
		       reason, similarity, unmatched
		FROM differences
		WHERE run_id = ? AND seed = ?
		ORDER BY command_index ASC
	`, runID, seed)
	if err != nil {
		return nil, fmt.Errorf("query differences: %w", err)
	}
	defer rows.Close()

	diffs := []compare.ClassifiedDifference{}
	for rows.Next() {
		var (
			d        compare.ClassifiedDifference
			severity string
			cls      string
		)
		err := rows.Scan(&d.CommandIndex, &d.Command, &d.Expected, &d.Actual, &severity, &cls,
			&d.Reason, &d.Similarity, &d.Unmatched)
		if err != nil {
			return nil, fmt.Errorf("scan difference: %w", err)
		}
		d.Severity = classify.Severity(severity)
		d.Classification = classify.Classification(cls)
		diffs = append(diffs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate differences: %w", err)
	}
	return diffs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run       Run
		kind      string
		started   string
		finished  sql.NullString
		seedsJSON string
	)
	err := row.Scan(&run.ID, &kind, &started, &finished, &seedsJSON, &run.Config,
		&run.TotalCommands, &run.TotalDifferences, &run.RNGDifferences, &run.StateDivergences,
		&run.LogicDifferences, &run.OverallParityPercentage, &run.Pass, &run.Standalone, &run.Summary,
		&run.SeedCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.Kind = RunKind(kind)
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("run %s: started_at: %w", run.ID, err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("run %s: finished_at: %w", run.ID, err)
		}
		run.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(seedsJSON), &run.Seeds); err != nil {
		return Run{}, fmt.Errorf("run %s: seeds: %w", run.ID, err)
	}
	return run, nil
}

func marshalTranscript(t *transcript.Transcript) (sql.NullString, error) {
	if t == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal %s transcript: %w", t.Source, err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalTranscript(s sql.NullString) (*transcript.Transcript, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := transcript.Decode([]byte(s.String))
	if err != nil {
		return nil, fmt.Errorf("stored transcript: %w", err)
	}
	return t, nil
}

func nonNil(seeds []int64) []int64 {
	if seeds == nil {
		return []int64{}
	}
	return seeds
}
