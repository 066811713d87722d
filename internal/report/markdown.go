package report

import (
	"io"
	"strings"
	"time"

	"github.com/roach88/parity/internal/compare"
	"github.com/roach88/parity/internal/store"
	"github.com/roach88/parity/internal/validator"
)

// Markdown renders GitHub-flavored Markdown with fenced diffs.
type Markdown struct{}

// Comparison writes a metrics table and one section per difference.
func (m Markdown) Comparison(w io.Writer, r *compare.Report) error {
	p := &printer{w: w}
	p.printf("# Comparison report\n\n")
	if r.Standalone {
		p.printf("> **Standalone:** no reference transcript; parity is 100%% by definition and was not validated.\n\n")
	}
	p.printf("| Metric | Value |\n|---|---|\n")
	p.printf("| Commands | %d |\n", r.TotalCommands)
	p.printf("| Exact matches | %d |\n", r.ExactMatches)
	p.printf("| Close matches | %d |\n", r.CloseMatches)
	p.printf("| Behavioral differences | %d |\n", r.BehavioralDifferences)
	p.printf("| Status bar differences | %d |\n", r.StatusBarDifferences)
	p.printf("| Parity score | %.0f%% |\n", r.ParityScore)
	p.printf("| Logic parity | %.2f%% |\n", r.LogicParityPercentage)
	p.printf("| RNG differences | %d |\n", r.RNGDifferences)
	p.printf("| State divergences | %d |\n", r.StateDivergences)
	p.printf("| Logic differences | %d |\n", r.LogicDifferences)

	diffs := differences(r)
	if len(diffs) > 0 {
		p.printf("\n## Differences\n")
		for _, d := range diffs {
			m.difference(p, d, "###")
		}
	}
	return p.err
}

// Parity writes the summary, a per-seed table and the differences of every
// seed that has any.
func (m Markdown) Parity(w io.Writer, pr *validator.ParityResults) error {
	p := &printer{w: w}
	p.printf("# Parity results\n\n")
	p.printf("```\n%s\n```\n", summary(pr))
	m.seeds(p, pr.SeedResults)
	return p.err
}

// Extended writes the outcome of an extended-sequence run.
func (m Markdown) Extended(w io.Writer, er *validator.ExtendedResult) error {
	p := &printer{w: w}
	p.printf("# Extended sequence\n\n")
	p.printf("- Seed: %d\n", er.Seed)
	p.printf("- Commands requested: %d\n", er.RequestedCommands)
	p.printf("- Commands run: %d\n", er.CommandCount)
	p.printf("- Logic differences: %t\n", er.HasLogicDifferences)
	if er.SeedResult != nil {
		m.seeds(p, []*validator.SeedResult{er.SeedResult})
	}
	return p.err
}

// Runs writes a table of stored runs.
func (m Markdown) Runs(w io.Writer, runs []store.Run) error {
	p := &printer{w: w}
	p.printf("| Run | Kind | Started | Status | Seeds | Logic parity |\n|---|---|---|---|---|---|\n")
	for i := range runs {
		run := &runs[i]
		p.printf("| `%s` | %s | %s | %s | %d | %.2f%% |\n",
			run.ID, run.Kind, run.StartedAt.Format(time.RFC3339), runStatus(run),
			run.SeedCount, run.OverallParityPercentage)
	}
	return p.err
}

// Run writes a stored run and its seeds.
func (m Markdown) Run(w io.Writer, run *store.Run, seeds []*validator.SeedResult) error {
	p := &printer{w: w}
	p.printf("# Run `%s`\n\n", run.ID)
	p.printf("- Kind: %s\n", run.Kind)
	p.printf("- Status: %s\n", runStatus(run))
	p.printf("- Started: %s\n", run.StartedAt.Format(time.RFC3339))
	if run.Summary != "" {
		p.printf("\n```\n%s\n```\n", run.Summary)
	}
	m.seeds(p, seeds)
	return p.err
}

func (m Markdown) seeds(p *printer, seeds []*validator.SeedResult) {
	p.printf("\n| Seed | Mode | Commands | Differences | RNG | State | Logic | Logic parity |\n")
	p.printf("|---|---|---|---|---|---|---|---|\n")
	for _, s := range seeds {
		if s == nil {
			continue
		}
		p.printf("| %d | %s | %d | %d | %d | %d | %d | %.2f%% |\n",
			s.Seed, s.Mode, s.TotalCommands, s.TotalDifferences,
			s.RNGDifferences, s.StateDivergences, s.LogicDifferences, s.LogicParityPercentage)
	}
	for _, s := range seeds {
		if s == nil || (len(s.Differences) == 0 && !s.Failed()) {
			continue
		}
		p.printf("\n## Seed %d\n", s.Seed)
		if s.Failed() {
			p.printf("\n**Error:** %s\n", s.Error)
		}
		for _, d := range s.Differences {
			m.difference(p, d, "###")
		}
	}
}

func (m Markdown) difference(p *printer, d compare.ClassifiedDifference, heading string) {
	p.printf("\n%s %d. `%s`\n\n", heading, d.CommandIndex, strings.ReplaceAll(d.Command, "`", "'"))
	if d.Classification != "" {
		p.printf("- Classification: %s\n", d.Classification)
	}
	p.printf("- Severity: %s\n", d.Severity)
	p.printf("- Similarity: %.2f\n", d.Similarity)
	if d.Unmatched {
		p.printf("- Unmatched: present in one transcript only\n")
	}
	if d.Reason != "" {
		p.printf("- Reason: %s\n", d.Reason)
	}
	if diff := UnifiedDiff(d.Expected, d.Actual); diff != "" {
		p.printf("\n```diff\n%s```\n", diff)
	}
}
