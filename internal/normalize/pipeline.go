package normalize

import (
	"regexp"
	"strings"
)

// Pipeline applies the normalization steps selected by its fields, in a fixed
// order: status bar, game header, line wrapping, whitespace, case.
//
// A zero Pipeline only canonicalizes line endings.
type Pipeline struct {
	StripStatusBar        bool
	StripGameHeader       bool
	NormalizeLineWrapping bool
	NormalizeWhitespace   bool
	IgnoreCase            bool

	// HeaderPatterns overrides DefaultHeaderPatterns when non-nil.
	HeaderPatterns []*regexp.Regexp
}

// Apply runs the pipeline over text.
func (p Pipeline) Apply(text string) string {
	text = CanonicalLineEndings(text)
	if p.StripStatusBar {
		text = StripStatusBar(text)
	}
	if p.StripGameHeader {
		text = StripGameHeader(text, p.HeaderPatterns)
	}
	if p.NormalizeLineWrapping {
		text = NormalizeLineWrapping(text)
	}
	if p.NormalizeWhitespace {
		text = NormalizeOutput(text)
	}
	if p.IgnoreCase {
		text = strings.ToLower(text)
	}
	return text
}
