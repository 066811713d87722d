package compare

import (
	"math"

	"github.com/roach88/parity/internal/classify"
)

// Difference is one command whose responses diverged.
type Difference struct {
	CommandIndex int               `json:"command_index"`
	Command      string            `json:"command"`
	Expected     string            `json:"expected"`
	Actual       string            `json:"actual"`
	Severity     classify.Severity `json:"severity"`
	Reason       string            `json:"reason"`
	Similarity   float64           `json:"similarity"`

	// Unmatched is set when the command exists in only one transcript.
	Unmatched bool `json:"unmatched,omitempty"`
}

// ClassifiedDifference is a Difference with its cause.
type ClassifiedDifference struct {
	Difference
	Classification classify.Classification `json:"classification"`
}

// Report is the result of comparing two transcripts. It is derived data and
// is recomputed on every call.
type Report struct {
	TotalCommands         int `json:"total_commands"`
	ExactMatches          int `json:"exact_matches"`
	CloseMatches          int `json:"close_matches"`
	BehavioralDifferences int `json:"behavioral_differences"`
	StatusBarDifferences  int `json:"status_bar_differences"`

	Differences           []Difference           `json:"differences"`
	ClassifiedDifferences []ClassifiedDifference `json:"classified_differences,omitempty"`

	RNGDifferences   int `json:"rng_differences"`
	StateDivergences int `json:"state_divergences"`
	LogicDifferences int `json:"logic_differences"`

	// ParityScore is round(100 * ExactMatches / TotalCommands).
	ParityScore float64 `json:"parity_score"`

	// LogicParityPercentage is 100 * (TotalCommands - LogicDifferences) /
	// TotalCommands. Only logic differences count against it, so it is the
	// metric that gates pass/fail.
	LogicParityPercentage float64 `json:"logic_parity_percentage"`

	SeveritySummary map[classify.Severity]int `json:"severity_summary"`

	// Standalone marks a report built without a reference transcript.
	// Its 100% parity holds by definition, not by validation.
	Standalone bool `json:"standalone,omitempty"`
}

// TotalDifferences is the number of recorded differences, matched or not.
func (r *Report) TotalDifferences() int {
	return len(r.Differences)
}

// HasLogicDifferences reports whether any difference was classified as a
// logic difference.
func (r *Report) HasLogicDifferences() bool {
	return r.LogicDifferences > 0
}

// Classification returns the classification of the difference recorded for
// commandIndex, if any.
func (r *Report) Classification(commandIndex int) (classify.Classification, bool) {
	for _, cd := range r.ClassifiedDifferences {
		if cd.CommandIndex == commandIndex {
			return cd.Classification, true
		}
	}
	return "", false
}

// finalize computes the percentage fields from the counters.
func (r *Report) finalize() {
	if r.TotalCommands == 0 {
		r.ParityScore = 100
		r.LogicParityPercentage = 100
		return
	}
	total := float64(r.TotalCommands)
	r.ParityScore = math.Round(100 * float64(r.ExactMatches) / total)
	r.LogicParityPercentage = LogicParity(r.TotalCommands, r.LogicDifferences)
}

// LogicParity returns 100 * (total - logic) / total, or 100 when total is 0.
func LogicParity(total, logic int) float64 {
	if total == 0 {
		return 100
	}
	return 100 * float64(total-logic) / float64(total)
}

func newReport() *Report {
	sev := make(map[classify.Severity]int, len(classify.Severities))
	for _, s := range classify.Severities {
		sev[s] = 0
	}
	return &Report{
		Differences:     []Difference{},
		SeveritySummary: sev,
	}
}
