package validator

import (
	"time"

	"github.com/roach88/parity/internal/compare"
	"github.com/roach88/parity/internal/transcript"
)

// Mode says whether a seed was checked against a reference.
type Mode string

const (
	// ModeValidated means both implementations ran and were compared.
	ModeValidated Mode = "validated"

	// ModeStandalone means no reference was reachable. Parity is 100% by
	// definition and nothing was validated.
	ModeStandalone Mode = "standalone"
)

// SeedResult is the outcome of running one seed.
type SeedResult struct {
	Seed               int64 `json:"seed"`
	Mode               Mode  `json:"mode"`
	ReferenceAvailable bool  `json:"reference_available"`

	TotalCommands    int `json:"total_commands"`
	TotalDifferences int `json:"total_differences"`
	RNGDifferences   int `json:"rng_differences"`
	StateDivergences int `json:"state_divergences"`
	LogicDifferences int `json:"logic_differences"`

	ParityPercentage      float64 `json:"parity_percentage"`
	LogicParityPercentage float64 `json:"logic_parity_percentage"`

	Differences []compare.ClassifiedDifference `json:"differences"`
	Report      *compare.Report                `json:"-"`

	UnderTest *transcript.Transcript `json:"-"`
	Reference *transcript.Transcript `json:"-"`

	// Error is set when a session failed. Entries captured before the
	// failure are still compared.
	Error string `json:"error,omitempty"`

	Duration time.Duration `json:"duration_ns"`
}

// Failed reports whether a session failed during the seed.
func (r *SeedResult) Failed() bool {
	return r.Error != ""
}

// ParityResults aggregates a multi-seed run.
type ParityResults struct {
	Seeds []int64 `json:"seeds"`

	TotalCommands    int `json:"total_commands"`
	TotalDifferences int `json:"total_differences"`
	RNGDifferences   int `json:"rng_differences"`
	StateDivergences int `json:"state_divergences"`
	LogicDifferences int `json:"logic_differences"`

	// OverallParityPercentage is the logic parity over all commands of all
	// seeds.
	OverallParityPercentage float64 `json:"overall_parity_percentage"`

	AcceptedLogicDifferences int  `json:"accepted_logic_differences"`
	Pass                     bool `json:"pass"`

	// Standalone is set when any seed ran without a reference.
	Standalone bool `json:"standalone"`

	Summary       string        `json:"summary"`
	ExecutionTime time.Duration `json:"execution_time_ns"`

	SeedResults []*SeedResult `json:"seed_results"`
	Failures    []string      `json:"failures,omitempty"`
}

// ExtendedResult is the outcome of an extended-sequence run.
type ExtendedResult struct {
	Seed                int64                          `json:"seed"`
	RequestedCommands   int                            `json:"requested_commands"`
	CommandCount        int                            `json:"command_count"`
	Differences         []compare.ClassifiedDifference `json:"differences"`
	HasLogicDifferences bool                           `json:"has_logic_differences"`

	SeedResult *SeedResult `json:"seed_result"`
}
