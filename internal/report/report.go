// Package report renders comparison reports, validator results and stored
// runs for people and machines.
//
// Three renderers share one interface: Text for terminals, Markdown for
// pull-request comments and JSON for tooling. Differences carry unified
// diffs of the expected and actual responses.
package report

import (
	"fmt"
	"io"

	"github.com/roach88/parity/internal/compare"
	"github.com/roach88/parity/internal/store"
	"github.com/roach88/parity/internal/validator"
)

// Output formats accepted by For.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatText, FormatMarkdown, FormatJSON}

// Renderer writes one kind of result to w.
type Renderer interface {
	Comparison(w io.Writer, r *compare.Report) error
	Parity(w io.Writer, pr *validator.ParityResults) error
	Extended(w io.Writer, er *validator.ExtendedResult) error
	Runs(w io.Writer, runs []store.Run) error
	Run(w io.Writer, run *store.Run, seeds []*validator.SeedResult) error
}

// For returns the renderer for format. diffs controls whether the text
// renderer prints unified diffs; Markdown always does and JSON carries the
// raw responses instead.
func For(format string, diffs bool) (Renderer, error) {
	switch format {
	case FormatText:
		return Text{Diffs: diffs}, nil
	case FormatMarkdown:
		return Markdown{}, nil
	case FormatJSON:
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q: must be one of %v", format, Formats)
	}
}

// differences returns the classified differences of r, or its plain
// differences with an empty classification when r was not classified.
func differences(r *compare.Report) []compare.ClassifiedDifference {
	if len(r.ClassifiedDifferences) > 0 {
		return r.ClassifiedDifferences
	}
	out := make([]compare.ClassifiedDifference, len(r.Differences))
	for i, d := range r.Differences {
		out[i] = compare.ClassifiedDifference{Difference: d}
	}
	return out
}

// summary returns the stored summary of pr, computing it when absent.
func summary(pr *validator.ParityResults) string {
	if pr.Summary != "" {
		return pr.Summary
	}
	return validator.Summarize(pr)
}

func runStatus(run *store.Run) string {
	switch {
	case !run.Finished():
		return "RUNNING"
	case run.Pass:
		return "PASS"
	default:
		return "FAIL"
	}
}

// printer remembers the first write error so renderers can print freely
// and check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
