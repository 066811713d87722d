package classify

import "strings"

// Severity grades how far apart two responses are, independent of
// Classification.
type Severity string

const (
	SeverityFormatting Severity = "formatting"
	SeverityMinor      Severity = "minor"
	SeverityMajor      Severity = "major"
	SeverityCritical   Severity = "critical"
)

// Severities lists every severity from least to most severe.
var Severities = []Severity{SeverityFormatting, SeverityMinor, SeverityMajor, SeverityCritical}

// Default severity thresholds.
const (
	DefaultHighThreshold = 0.85
	DefaultLowThreshold  = 0.5
)

// SeverityOptions tunes ClassifySeverity.
type SeverityOptions struct {
	// HighThreshold is the similarity at or above which a difference is
	// minor. Zero means DefaultHighThreshold.
	HighThreshold float64 `yaml:"high_threshold" json:"high_threshold"`

	// LowThreshold is the similarity at or above which a difference is
	// major rather than critical. Zero means DefaultLowThreshold.
	LowThreshold float64 `yaml:"low_threshold" json:"low_threshold"`

	// KnownVariations are substrings that mark an accepted variation.
	KnownVariations []string `yaml:"known_variations" json:"known_variations,omitempty"`
}

// DefaultSeverityOptions returns the default thresholds and no known
// variations.
func DefaultSeverityOptions() SeverityOptions {
	return SeverityOptions{
		HighThreshold: DefaultHighThreshold,
		LowThreshold:  DefaultLowThreshold,
	}
}

// ClassifySeverity grades the difference between expected and actual given
// their similarity score:
//
//   - formatting: whitespace normalization alone reconciles them
//   - minor: similarity >= HighThreshold, or a known variation matches
//   - major: similarity >= LowThreshold
//   - critical: anything lower
func ClassifySeverity(expected, actual string, similarity float64, opts SeverityOptions) Severity {
	high, low := opts.HighThreshold, opts.LowThreshold
	if high == 0 {
		high = DefaultHighThreshold
	}
	if low == 0 {
		low = DefaultLowThreshold
	}

	switch {
	case collapseWhitespace(expected) == collapseWhitespace(actual):
		return SeverityFormatting
	case similarity >= high,
		MatchesKnownVariation(expected, opts.KnownVariations),
		MatchesKnownVariation(actual, opts.KnownVariations):
		return SeverityMinor
	case similarity >= low:
		return SeverityMajor
	default:
		return SeverityCritical
	}
}

// MatchesKnownVariation reports whether text contains any non-empty entry of
// variations.
func MatchesKnownVariation(text string, variations []string) bool {
	for _, v := range variations {
		if v != "" && strings.Contains(text, v) {
			return true
		}
	}
	return false
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
