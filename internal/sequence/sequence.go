// Package sequence loads the command lists that sessions are driven with.
//
// Two file formats are accepted, chosen by extension:
//
//	.yaml / .yml   name, description and a commands list
//	anything else  one command per line; blank lines and # comments skipped
//
// The rest of the module only ever consumes the resulting []string.
package sequence

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sequence is a named, ordered list of literal commands.
type Sequence struct {
	// Name identifies the sequence in reports.
	Name string `yaml:"name"`

	// Description explains what the sequence exercises.
	Description string `yaml:"description,omitempty"`

	// Commands are sent verbatim, in order.
	Commands []string `yaml:"commands"`
}

// Load reads a sequence file. Plain-text files are named after the file.
func Load(path string) (*Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sequence file: %w", err)
	}

	var seq *Sequence
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		seq, err = ParseYAML(data)
	default:
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		seq, err = ParseText(name, data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seq, nil
}

// ParseYAML decodes a YAML sequence, rejecting unknown fields.
func ParseYAML(data []byte) (*Sequence, error) {
	var seq Sequence
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&seq); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := seq.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sequence: %w", err)
	}
	return &seq, nil
}

// ParseText reads one command per line.
func ParseText(name string, data []byte) (*Sequence, error) {
	seq := &Sequence{Name: name}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seq.Commands = append(seq.Commands, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commands: %w", err)
	}
	if err := seq.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sequence: %w", err)
	}
	return seq, nil
}

// Validate checks that required fields are present.
func (s *Sequence) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Commands) == 0 {
		return fmt.Errorf("commands list is required and must be non-empty")
	}
	for i, c := range s.Commands {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("command %d is empty", i)
		}
		if strings.ContainsAny(c, "\r\n") {
			return fmt.Errorf("command %d contains a line break", i)
		}
	}
	return nil
}

// Extend returns commands repeated cyclically until the result holds at
// least n commands. Whole passes are kept, so the result may be longer
// than n. An empty input yields nil.
func Extend(commands []string, n int) []string {
	if len(commands) == 0 {
		return nil
	}
	out := append([]string(nil), commands...)
	for len(out) < n {
		out = append(out, commands...)
	}
	return out
}

// Take returns the first n commands, or all of them when n <= 0 or n
// exceeds the list.
func Take(commands []string, n int) []string {
	if n <= 0 || n >= len(commands) {
		return append([]string(nil), commands...)
	}
	return append([]string(nil), commands[:n]...)
}
