// Package extract splits one turn of interpreter output into its status
// segment and the action-response body.
//
// The status segment is the persistent "<location>  Score: N  Moves: M" line
// that interpreters re-render every turn. Its padding, column widths and the
// length of the room name vary between implementations, so the extractor
// lifts it out wherever it appears. Two outputs that differ only in the status
// segment extract to identical bodies.
package extract

import (
	"strconv"
	"strings"

	"github.com/roach88/parity/internal/normalize"
)

// Message is one turn of output split into status and body.
type Message struct {
	// Status is the raw status line with surrounding whitespace trimmed.
	// Empty when HasStatus is false.
	Status string `json:"status,omitempty"`

	// Body is the action response with status and prompt-only lines removed.
	Body string `json:"body"`

	// Location, Score and Moves are parsed from the status line.
	Location string `json:"location,omitempty"`
	Score    int    `json:"score,omitempty"`
	Moves    int    `json:"moves,omitempty"`

	HasStatus bool `json:"has_status"`
}

// Extract splits raw into status and body.
//
// Every status line is removed from the body; the first one populates the
// status fields. Lines consisting of a bare prompt (">") are dropped, and
// leading and trailing blank lines of the body are trimmed.
func Extract(raw string) Message {
	var msg Message

	lines := strings.Split(normalize.CanonicalLineEndings(raw), "\n")
	body := make([]string, 0, len(lines))
	for _, line := range lines {
		if label, score, moves, ok := normalize.StatusFields(line); ok {
			if !msg.HasStatus {
				msg.HasStatus = true
				msg.Status = strings.TrimSpace(line)
				msg.Location = strings.TrimSpace(label)
				msg.Score, _ = strconv.Atoi(score) // safe: pattern only captures digits
				msg.Moves, _ = strconv.Atoi(moves)
			}
			continue
		}
		if strings.TrimSpace(line) == ">" {
			continue
		}
		body = append(body, line)
	}

	msg.Body = trimBlankLines(body)
	return msg
}

// StatusOnlyDifference reports whether a and b differ, but only in their
// status segments.
func StatusOnlyDifference(a, b string) bool {
	if normalize.CanonicalLineEndings(a) == normalize.CanonicalLineEndings(b) {
		return false
	}
	ma, mb := Extract(a), Extract(b)
	if ma.Status == mb.Status {
		return false
	}
	return normalize.NormalizeOutput(ma.Body) == normalize.NormalizeOutput(mb.Body)
}

func trimBlankLines(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
