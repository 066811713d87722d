package report

import (
	"io"
	"strings"
	"time"

	"github.com/roach88/parity/internal/classify"
	"github.com/roach88/parity/internal/compare"
	"github.com/roach88/parity/internal/store"
	"github.com/roach88/parity/internal/validator"
)

// Text renders plain text for terminals.
type Text struct {
	// Diffs prints a unified diff under every difference.
	Diffs bool
}

// Comparison writes the counters of r followed by its differences.
func (t Text) Comparison(w io.Writer, r *compare.Report) error {
	p := &printer{w: w}
	p.printf("Commands:        %d\n", r.TotalCommands)
	p.printf("Exact matches:   %d\n", r.ExactMatches)
	p.printf("Close matches:   %d\n", r.CloseMatches)
	p.printf("Behavioral:      %d\n", r.BehavioralDifferences)
	p.printf("Status bar only: %d\n", r.StatusBarDifferences)
	p.printf("Parity score:    %.0f%%\n", r.ParityScore)
	p.printf("Logic parity:    %.2f%%\n", r.LogicParityPercentage)
	p.printf("Differences:     %d (%d RNG, %d state, %d logic)\n",
		r.TotalDifferences(), r.RNGDifferences, r.StateDivergences, r.LogicDifferences)
	p.printf("Severity:        %d formatting, %d minor, %d major, %d critical\n",
		r.SeveritySummary[classify.SeverityFormatting], r.SeveritySummary[classify.SeverityMinor],
		r.SeveritySummary[classify.SeverityMajor], r.SeveritySummary[classify.SeverityCritical])
	if r.Standalone {
		p.printf("STANDALONE: no reference transcript; parity is 100%% by definition and was not validated\n")
	}
	for _, d := range differences(r) {
		p.printf("\n")
		t.difference(p, d, "")
	}
	return p.err
}

// Parity writes the run summary and one section per seed.
func (t Text) Parity(w io.Writer, pr *validator.ParityResults) error {
	p := &printer{w: w}
	p.printf("%s\n", summary(pr))
	for _, s := range pr.SeedResults {
		if s != nil {
			t.seed(p, s)
		}
	}
	return p.err
}

// Extended writes the outcome of an extended-sequence run.
func (t Text) Extended(w io.Writer, er *validator.ExtendedResult) error {
	p := &printer{w: w}
	verdict := "no logic differences"
	if er.HasLogicDifferences {
		verdict = "LOGIC DIFFERENCES FOUND"
	}
	p.printf("Extended sequence: seed %d, %d of %d command(s) run, %s\n",
		er.Seed, er.CommandCount, er.RequestedCommands, verdict)
	if er.SeedResult != nil {
		t.seed(p, er.SeedResult)
	}
	return p.err
}

// Runs writes one line per stored run.
func (t Text) Runs(w io.Writer, runs []store.Run) error {
	p := &printer{w: w}
	if len(runs) == 0 {
		p.printf("No runs stored.\n")
		return p.err
	}
	for i := range runs {
		run := &runs[i]
		p.printf("%s  %-8s  %s  %-7s  %d seed(s)  %.2f%%\n",
			run.ID, run.Kind, run.StartedAt.Format(time.RFC3339), runStatus(run),
			run.SeedCount, run.OverallParityPercentage)
	}
	return p.err
}

// Run writes a stored run and its seeds.
func (t Text) Run(w io.Writer, run *store.Run, seeds []*validator.SeedResult) error {
	p := &printer{w: w}
	p.printf("Run %s (%s) %s\n", run.ID, run.Kind, runStatus(run))
	p.printf("Started: %s\n", run.StartedAt.Format(time.RFC3339))
	if run.Finished() {
		p.printf("Finished: %s\n", run.FinishedAt.Format(time.RFC3339))
	}
	if run.Summary != "" {
		p.printf("%s\n", run.Summary)
	}
	for _, s := range seeds {
		t.seed(p, s)
	}
	return p.err
}

func (t Text) seed(p *printer, s *validator.SeedResult) {
	p.printf("\nSeed %d (%s): %d command(s), %d difference(s) (%d RNG, %d state, %d logic), logic parity %.2f%%\n",
		s.Seed, s.Mode, s.TotalCommands, s.TotalDifferences,
		s.RNGDifferences, s.StateDivergences, s.LogicDifferences, s.LogicParityPercentage)
	if s.Failed() {
		p.printf("  error: %s\n", s.Error)
	}
	for _, d := range s.Differences {
		t.difference(p, d, "  ")
	}
}

func (t Text) difference(p *printer, d compare.ClassifiedDifference, prefix string) {
	labels := []string{}
	if d.Classification != "" {
		labels = append(labels, string(d.Classification))
	}
	labels = append(labels, string(d.Severity))
	if d.Unmatched {
		labels = append(labels, "unmatched")
	}
	p.printf("%s#%d %q [%s]\n", prefix, d.CommandIndex, d.Command, strings.Join(labels, ", "))
	if d.Reason != "" {
		p.printf("%s    %s\n", prefix, d.Reason)
	}
	if t.Diffs {
		p.printf("%s", indent(UnifiedDiff(d.Expected, d.Actual), prefix+"    "))
	}
}
