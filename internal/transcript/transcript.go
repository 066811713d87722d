// Package transcript records one interactive session as an ordered list of
// command/output pairs.
//
// Entry order is command order and is semantically significant: the
// comparator aligns two transcripts strictly by position. A Transcript is a
// value; once Recorder.Finish returns it, nothing in this module mutates it.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Source tags which implementation produced a transcript.
type Source string

const (
	SourceUnderTest Source = "under-test"
	SourceReference Source = "reference"
)

// Entry is one command and the output it produced.
type Entry struct {
	Index      int        `json:"index"`
	Command    string     `json:"command"`
	Output     string     `json:"output"`
	TurnNumber int        `json:"turn_number"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// Transcript is the immutable record of one session.
type Transcript struct {
	ID        string            `json:"id"`
	Source    Source            `json:"source"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at"`
	Entries   []Entry           `json:"entries"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// New builds a finished transcript from already-captured entries.
// Entries and metadata are copied; indexes are taken as given.
func New(source Source, entries []Entry, metadata map[string]string) *Transcript {
	now := time.Now().UTC()
	return &Transcript{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Source:    source,
		StartedAt: now,
		EndedAt:   now,
		Entries:   append([]Entry(nil), entries...),
		Metadata:  copyMetadata(metadata),
	}
}

// FromCommands pairs commands with outputs positionally. It is a convenience
// for building fixtures; outputs beyond len(commands) are ignored.
func FromCommands(source Source, commands, outputs []string) *Transcript {
	entries := make([]Entry, 0, len(commands))
	for i, cmd := range commands {
		out := ""
		if i < len(outputs) {
			out = outputs[i]
		}
		entries = append(entries, Entry{Index: i, Command: cmd, Output: out, TurnNumber: i + 1})
	}
	return New(source, entries, nil)
}

// Len returns the number of entries. A nil transcript has none.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Entries)
}

// Entry returns the entry at position i.
func (t *Transcript) Entry(i int) (Entry, bool) {
	if t == nil || i < 0 || i >= len(t.Entries) {
		return Entry{}, false
	}
	return t.Entries[i], true
}

// Commands returns the commands in order.
func (t *Transcript) Commands() []string {
	if t == nil {
		return nil
	}
	cmds := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		cmds[i] = e.Command
	}
	return cmds
}

// Duration is the wall time the session took.
func (t *Transcript) Duration() time.Duration {
	if t == nil || t.EndedAt.Before(t.StartedAt) {
		return 0
	}
	return t.EndedAt.Sub(t.StartedAt)
}

// Load reads a transcript from a JSON file. Unknown fields are rejected.
func Load(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return Decode(data)
}

// Decode parses a JSON transcript and validates it.
func Decode(data []byte) (*Transcript, error) {
	var t Transcript
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}
	if err := validate(&t); err != nil {
		return nil, fmt.Errorf("invalid transcript: %w", err)
	}
	return &t, nil
}

// Save writes t to path as indented JSON.
func Save(path string, t *Transcript) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

func validate(t *Transcript) error {
	if t.Source == "" {
		return fmt.Errorf("source is required")
	}
	for i, e := range t.Entries {
		if e.Index != i {
			return fmt.Errorf("entries[%d]: index %d out of order", i, e.Index)
		}
	}
	return nil
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
