// Package config loads the YAML file that describes a validation run.
//
// Relative paths in the file are resolved against the file's directory.
// Interpreter binaries without a path separator are left for PATH lookup.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/parity/internal/adapter"
	"github.com/roach88/parity/internal/compare"
	"github.com/roach88/parity/internal/transcript"
)

// Config describes a validation run.
type Config struct {
	// Seeds are the RNG seeds to validate under.
	Seeds []int64 `yaml:"seeds"`

	// Commands is the path of the command-sequence file.
	Commands string `yaml:"commands"`

	// CommandsPerSeed caps (or, for extended runs, extends) the sequence.
	// Zero means the whole sequence.
	CommandsPerSeed int `yaml:"commands_per_seed"`

	// Timeout bounds every command round-trip.
	Timeout time.Duration `yaml:"timeout"`

	// StartupTimeout bounds the wait for an interpreter's first prompt.
	StartupTimeout time.Duration `yaml:"startup_timeout"`

	// Parallelism is the number of seeds run concurrently.
	Parallelism int `yaml:"parallelism"`

	// AcceptedLogicDifferences is the largest logic-difference count that
	// still passes.
	AcceptedLogicDifferences int `yaml:"accepted_logic_differences"`

	// Pools is an optional CUE file replacing the built-in RNG pools.
	Pools string `yaml:"pools,omitempty"`

	// DB is an optional SQLite path where results are stored.
	DB string `yaml:"db,omitempty"`

	// UnderTest is the implementation being validated.
	UnderTest Interpreter `yaml:"under_test"`

	// Reference is the oracle. When absent, runs are standalone.
	Reference *Interpreter `yaml:"reference,omitempty"`

	// Comparator tunes normalization and classification.
	Comparator compare.Options `yaml:"comparator"`

	// Shutdown tunes how interpreters are stopped.
	Shutdown Shutdown `yaml:"shutdown"`
}

// Interpreter is how to spawn one implementation.
type Interpreter struct {
	Binary string   `yaml:"binary"`
	Story  string   `yaml:"story,omitempty"`
	Args   []string `yaml:"args,omitempty"`
	Prompt string   `yaml:"prompt,omitempty"`
	Dir    string   `yaml:"dir,omitempty"`
	Env    []string `yaml:"env,omitempty"`
}

// Shutdown mirrors adapter.ShutdownPolicy.
type Shutdown struct {
	QuitCommands []string      `yaml:"quit_commands,omitempty"`
	QuitGrace    time.Duration `yaml:"quit_grace"`
	TermGrace    time.Duration `yaml:"term_grace"`
	Deadline     time.Duration `yaml:"deadline"`
}

// Default returns a configuration with every optional field set.
func Default() Config {
	return Config{
		Seeds:          []int64{1},
		Timeout:        adapter.DefaultCommandTimeout,
		StartupTimeout: adapter.DefaultStartupTimeout,
		Parallelism:    1,
		Comparator:     compare.DefaultOptions(),
		Shutdown: Shutdown{
			QuitGrace: adapter.DefaultQuitGrace,
			TermGrace: adapter.DefaultTermGrace,
			Deadline:  adapter.DefaultShutdownBudget,
		},
	}
}

// Load reads, resolves and validates a configuration file. Fields absent
// from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		e := adapter.ConfigurationError("failed to read config file %s", path)
		e.Err = err
		return nil, e
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Resolve(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over Default, rejecting unknown fields. It does not
// validate.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		e := adapter.ConfigurationError("failed to parse YAML")
		e.Err = err
		return nil, e
	}
	return &cfg, nil
}

// Resolve makes relative paths absolute against base.
func (c *Config) Resolve(base string) {
	c.Commands = resolvePath(base, c.Commands)
	c.Pools = resolvePath(base, c.Pools)
	c.DB = resolvePath(base, c.DB)
	c.UnderTest.resolve(base)
	if c.Reference != nil {
		c.Reference.resolve(base)
	}
}

func (i *Interpreter) resolve(base string) {
	if strings.ContainsRune(i.Binary, filepath.Separator) || strings.ContainsRune(i.Binary, '/') {
		i.Binary = resolvePath(base, i.Binary)
	}
	i.Story = resolvePath(base, i.Story)
	i.Dir = resolvePath(base, i.Dir)
}

func resolvePath(base, p string) string {
	if p == "" || base == "" || filepath.IsAbs(p) || p == ":memory:" {
		return p
	}
	return filepath.Join(base, p)
}

// Validate checks the configuration. Every failure is a CONFIGURATION_ERROR
// naming the offending field.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return adapter.ConfigurationError("seeds: at least one seed is required")
	}
	seen := make(map[int64]bool, len(c.Seeds))
	for _, s := range c.Seeds {
		if seen[s] {
			return adapter.ConfigurationError("seeds: duplicate seed %d", s)
		}
		seen[s] = true
	}
	if c.Commands == "" {
		return adapter.ConfigurationError("commands: a command-sequence file is required")
	}
	if c.CommandsPerSeed < 0 {
		return adapter.ConfigurationError("commands_per_seed: must not be negative")
	}
	if c.Timeout <= 0 {
		return adapter.ConfigurationError("timeout: must be positive")
	}
	if c.StartupTimeout <= 0 {
		return adapter.ConfigurationError("startup_timeout: must be positive")
	}
	if c.Parallelism < 1 {
		return adapter.ConfigurationError("parallelism: must be at least 1")
	}
	if c.AcceptedLogicDifferences < 0 {
		return adapter.ConfigurationError("accepted_logic_differences: must not be negative")
	}
	if err := c.UnderTest.validate("under_test"); err != nil {
		return err
	}
	if c.Reference != nil {
		if err := c.Reference.validate("reference"); err != nil {
			return err
		}
	}

	tol := c.Comparator.ToleranceThreshold
	if tol < 0 || tol > 1 {
		return adapter.ConfigurationError("comparator.tolerance_threshold: must be within [0, 1]")
	}
	sev := c.Comparator.Severity
	if sev.HighThreshold < 0 || sev.HighThreshold > 1 || sev.LowThreshold < 0 || sev.LowThreshold > 1 {
		return adapter.ConfigurationError("comparator.severity: thresholds must be within [0, 1]")
	}
	if sev.HighThreshold != 0 && sev.LowThreshold > sev.HighThreshold {
		return adapter.ConfigurationError("comparator.severity: low_threshold exceeds high_threshold")
	}
	return nil
}

func (i *Interpreter) validate(field string) error {
	if strings.TrimSpace(i.Binary) == "" {
		return adapter.ConfigurationError("%s.binary: interpreter binary is required", field)
	}
	if err := adapter.CheckBinary(i.Binary); err != nil {
		e := adapter.ConfigurationError("%s.binary: %v", field, err)
		e.Err = err
		return e
	}
	return nil
}

// ProcessConfig builds the adapter settings for one interpreter.
func (c *Config) ProcessConfig(i Interpreter) adapter.ProcessConfig {
	return adapter.ProcessConfig{
		Binary:         i.Binary,
		Story:          i.Story,
		Args:           i.Args,
		Dir:            i.Dir,
		Env:            i.Env,
		Prompt:         i.Prompt,
		StartupTimeout: c.StartupTimeout,
		CommandTimeout: c.Timeout,
		Shutdown: adapter.ShutdownPolicy{
			QuitCommands: c.Shutdown.QuitCommands,
			QuitGrace:    c.Shutdown.QuitGrace,
			TermGrace:    c.Shutdown.TermGrace,
			Deadline:     c.Shutdown.Deadline,
		},
	}
}

// Factories builds process factories for both implementations. The
// reference factory is nil when no reference is configured.
func (c *Config) Factories(opts ...adapter.ProcessOption) (underTest, reference adapter.Factory, err error) {
	iut, err := adapter.NewProcessFactory(transcript.SourceUnderTest, c.ProcessConfig(c.UnderTest), opts...)
	if err != nil {
		return nil, nil, err
	}
	if c.Reference == nil {
		return iut, nil, nil
	}
	ref, err := adapter.NewProcessFactory(transcript.SourceReference, c.ProcessConfig(*c.Reference), opts...)
	if err != nil {
		return nil, nil, err
	}
	return iut, ref, nil
}

// String renders the configuration as YAML.
func (c *Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(out)
}
