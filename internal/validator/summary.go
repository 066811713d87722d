package validator

import (
	"fmt"
	"strings"
)

// Summarize renders a short human-readable verdict for r.
func Summarize(r *ParityResults) string {
	var b strings.Builder

	verdict := "PASS"
	if !r.Pass {
		verdict = "FAIL"
	}
	fmt.Fprintf(&b, "Parity %s: %d seed(s), %d command(s)\n", verdict, len(r.Seeds), r.TotalCommands)
	fmt.Fprintf(&b, "Logic parity: %.2f%% (%d logic difference(s), %d accepted)\n",
		r.OverallParityPercentage, r.LogicDifferences, r.AcceptedLogicDifferences)
	fmt.Fprintf(&b, "Differences: %d total (%d RNG, %d state, %d logic)\n",
		r.TotalDifferences, r.RNGDifferences, r.StateDivergences, r.LogicDifferences)

	if r.Standalone {
		n := 0
		for _, s := range r.SeedResults {
			if s != nil && s.Mode == ModeStandalone {
				n++
			}
		}
		fmt.Fprintf(&b, "STANDALONE: %d seed(s) ran without a reference; their parity is 100%% by definition and was not validated\n", n)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "FAILED %s\n", f)
	}
	return strings.TrimRight(b.String(), "\n")
}
