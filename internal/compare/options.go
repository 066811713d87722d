package compare

import "github.com/roach88/parity/internal/classify"

// DefaultToleranceThreshold is the similarity at or above which two differing
// bodies still count as a close match.
const DefaultToleranceThreshold = 0.95

// Options configures a Comparator. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// NormalizeWhitespace applies normalize.NormalizeOutput to both sides.
	NormalizeWhitespace bool `yaml:"normalize_whitespace" json:"normalize_whitespace"`

	// StripStatusBar removes status lines. Redundant when
	// UseMessageExtraction is set, since extraction already lifts them out.
	StripStatusBar bool `yaml:"strip_status_bar" json:"strip_status_bar"`

	// StripGameHeader removes the story banner.
	StripGameHeader bool `yaml:"strip_game_header" json:"strip_game_header"`

	// NormalizeLineWrapping rejoins hard-wrapped lines.
	NormalizeLineWrapping bool `yaml:"normalize_line_wrapping" json:"normalize_line_wrapping"`

	// IgnoreCaseInMessages compares bodies case-insensitively.
	IgnoreCaseInMessages bool `yaml:"ignore_case_in_messages" json:"ignore_case_in_messages"`

	// ToleranceThreshold is the close-match similarity cut-off.
	ToleranceThreshold float64 `yaml:"tolerance_threshold" json:"tolerance_threshold"`

	// KnownVariations are substrings that force a differing pair to count as
	// a close match with minor severity.
	KnownVariations []string `yaml:"known_variations" json:"known_variations,omitempty"`

	// UseMessageExtraction splits each output into status and body before
	// comparing, and tallies status-only differences separately.
	UseMessageExtraction bool `yaml:"use_message_extraction" json:"use_message_extraction"`

	// TrackDifferenceTypes enables RNG / state / logic classification.
	TrackDifferenceTypes bool `yaml:"track_difference_types" json:"track_difference_types"`

	// Severity tunes severity grading.
	Severity classify.SeverityOptions `yaml:"severity" json:"severity"`
}

// DefaultOptions enables every normalization and classification.
func DefaultOptions() Options {
	return Options{
		NormalizeWhitespace:   true,
		StripStatusBar:        true,
		StripGameHeader:       true,
		NormalizeLineWrapping: true,
		IgnoreCaseInMessages:  false,
		ToleranceThreshold:    DefaultToleranceThreshold,
		UseMessageExtraction:  true,
		TrackDifferenceTypes:  true,
		Severity:              classify.DefaultSeverityOptions(),
	}
}

// clone returns a deep copy so later changes by the caller cannot reach a
// constructed Comparator.
func (o Options) clone() Options {
	o.KnownVariations = append([]string(nil), o.KnownVariations...)
	o.Severity.KnownVariations = append([]string(nil), o.Severity.KnownVariations...)
	return o
}
