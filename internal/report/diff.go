package report

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// diffContext is the number of unchanged lines shown around a change.
const diffContext = 3

// UnifiedDiff returns a unified diff from expected to actual, or "" when
// they are equal. An empty side contributes no lines.
func UnifiedDiff(expected, actual string) string {
	if expected == actual {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(expected),
		B:        splitLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  diffContext,
	})
	if err != nil {
		// Writes go to an in-memory buffer.
		return ""
	}
	return diff
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return difflib.SplitLines(strings.TrimSuffix(s, "\n"))
}

// indent prefixes every line of s.
func indent(s, prefix string) string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return ""
	}
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix) + "\n"
}
