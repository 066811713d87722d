package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/parity/internal/compare"
	"github.com/roach88/parity/internal/store"
	"github.com/roach88/parity/internal/validator"
)

// JSON renders indented JSON. Responses are written unescaped so prompts
// and quotes stay readable.
type JSON struct{}

// storedRun is the JSON shape of a run with its seeds.
type storedRun struct {
	Run   *store.Run              `json:"run"`
	Seeds []*validator.SeedResult `json:"seeds"`
}

func (JSON) Comparison(w io.Writer, r *compare.Report) error {
	return encode(w, r)
}

func (JSON) Parity(w io.Writer, pr *validator.ParityResults) error {
	return encode(w, pr)
}

func (JSON) Extended(w io.Writer, er *validator.ExtendedResult) error {
	return encode(w, er)
}

func (JSON) Runs(w io.Writer, runs []store.Run) error {
	if runs == nil {
		runs = []store.Run{}
	}
	return encode(w, runs)
}

func (JSON) Run(w io.Writer, run *store.Run, seeds []*validator.SeedResult) error {
	if seeds == nil {
		seeds = []*validator.SeedResult{}
	}
	return encode(w, storedRun{Run: run, Seeds: seeds})
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
