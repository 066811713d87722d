package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// StatusBarPattern matches a persistent status line: a location label followed
// by a padded score field (negative scores allowed) and a padded move counter.
//
// The pattern is anchored to the whole line so prose that merely mentions
// "Score" or "Moves" is never mistaken for a status line. Use StatusFields,
// which also rejects labels that end a sentence.
var StatusBarPattern = regexp.MustCompile(`^\s*(\S.*?)\s+Score:\s*(-?\d+)\s+Moves:\s*(\d+)\s*$`)

// DefaultHeaderPatterns match banner lines printed when a story file starts.
var DefaultHeaderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*copyright\s*\(c\)`),
	regexp.MustCompile(`(?i)\btrademark of\b`),
	regexp.MustCompile(`(?i)^\s*revision\s+\d+\s*/\s*serial\s+number\s+\d+\s*$`),
	regexp.MustCompile(`(?i)^\s*release\s+\d+\s*/\s*serial\s+number\s+\d+\s*$`),
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	lineEndings     = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// terminalSuffixes end a sentence; a wrapped line ending in one is never
// joined to the line that follows it.
var terminalSuffixes = []string{".", "!", "?", `"`, "'", "”", "’"}

// CanonicalLineEndings converts CRLF and bare CR line endings to LF.
func CanonicalLineEndings(text string) string {
	return lineEndings.Replace(text)
}

// IsStatusLine reports whether a single line has the status bar layout.
func IsStatusLine(line string) bool {
	_, _, _, ok := StatusFields(line)
	return ok
}

// StatusFields returns the location label, score and move count of a status
// line. A label ending in a sentence ("You check the board.") is prose
// followed by a score, not a status bar; an ellipsis is still a label.
func StatusFields(line string) (label, score, moves string, ok bool) {
	m := StatusBarPattern.FindStringSubmatch(line)
	if m == nil || labelEndsSentence(m[1]) {
		return "", "", "", false
	}
	return m[1], m[2], m[3], true
}

func labelEndsSentence(label string) bool {
	n := len(label)
	if n == 0 || !isSentenceMark(label[n-1]) {
		return false
	}
	return n == 1 || !isSentenceMark(label[n-2])
}

func isSentenceMark(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// StripStatusBar removes every status line from text.
// Returns text unchanged when no line matches.
func StripStatusBar(text string) string {
	lines := strings.Split(CanonicalLineEndings(text), "\n")
	kept := lines[:0:0]
	stripped := false
	for _, line := range lines {
		if IsStatusLine(line) {
			stripped = true
			continue
		}
		kept = append(kept, line)
	}
	if !stripped {
		return text
	}
	return strings.Join(kept, "\n")
}

// StripGameHeader removes banner lines matching any of patterns.
// If patterns is nil, DefaultHeaderPatterns is used.
func StripGameHeader(text string, patterns []*regexp.Regexp) string {
	if patterns == nil {
		patterns = DefaultHeaderPatterns
	}
	lines := strings.Split(CanonicalLineEndings(text), "\n")
	kept := lines[:0:0]
	stripped := false
	for _, line := range lines {
		if matchesAny(line, patterns) {
			stripped = true
			continue
		}
		kept = append(kept, line)
	}
	if !stripped {
		return text
	}
	return strings.Join(kept, "\n")
}

func matchesAny(line string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// NormalizeLineWrapping rejoins lines that a fixed-width renderer wrapped
// mid-sentence.
//
// Rules:
//   - blank lines are paragraph breaks and are preserved
//   - a line whose trimmed text ends in sentence-terminal punctuation is
//     never joined to the next line
//   - several consecutively wrapped lines collapse into one
//   - prompt lines (starting with ">") and status lines stand alone
//
// A line that is not joined with anything is emitted unchanged.
func NormalizeLineWrapping(text string) string {
	lines := strings.Split(CanonicalLineEndings(text), "\n")
	out := make([]string, 0, len(lines))
	var run []string

	flush := func() {
		switch len(run) {
		case 0:
		case 1:
			out = append(out, run[0])
		default:
			parts := make([]string, len(run))
			for i, l := range run {
				parts[i] = strings.TrimSpace(l)
			}
			out = append(out, strings.Join(parts, " "))
		}
		run = run[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
			out = append(out, line)
		case strings.HasPrefix(trimmed, ">"), IsStatusLine(line):
			flush()
			out = append(out, line)
		default:
			run = append(run, line)
			if endsSentence(trimmed) {
				flush()
			}
		}
	}
	flush()

	return strings.Join(out, "\n")
}

func endsSentence(trimmed string) bool {
	for _, s := range terminalSuffixes {
		if strings.HasSuffix(trimmed, s) {
			return true
		}
	}
	return false
}

// NormalizeOutput canonicalizes line endings and Unicode composition,
// collapses horizontal whitespace runs to a single space, trims every line,
// collapses runs of blank lines to exactly one and trims the whole text.
func NormalizeOutput(text string) string {
	text = norm.NFC.String(CanonicalLineEndings(text))
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
