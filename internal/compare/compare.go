// Package compare aligns two transcripts and builds a structured report of
// where, how badly, and why they diverge.
//
// Alignment is strictly positional: entry i of the first transcript is
// compared with entry i of the second. Both sessions are assumed to have run
// the same command list in lockstep; no re-synchronization is attempted after
// a divergence. Entries beyond the shorter transcript are each recorded as an
// unmatched, critical difference.
//
// For every aligned pair the comparator normalizes and extracts both outputs,
// then decides:
//
//   - exact match: bodies are identical
//   - close match: similarity >= ToleranceThreshold, or a known variation
//   - behavioral difference: anything else, graded by severity
//
// CompareAndClassify additionally labels each difference as RNG, state or
// logic (see package classify). Only logic differences count against
// LogicParityPercentage.
//
// The Comparator is immutable after New and safe for concurrent use.
package compare

import (
	"fmt"
	"strings"

	"github.com/roach88/parity/internal/classify"
	"github.com/roach88/parity/internal/extract"
	"github.com/roach88/parity/internal/normalize"
	"github.com/roach88/parity/internal/similarity"
	"github.com/roach88/parity/internal/transcript"
)

// Comparator compares transcripts under a fixed configuration.
type Comparator struct {
	opts       Options
	pipeline   normalize.Pipeline
	classifier *classify.Classifier
}

// New creates a comparator. pools may be nil, in which case no difference is
// attributed to randomness. opts is copied.
func New(opts Options, pools *classify.PoolSet) *Comparator {
	opts = opts.clone()
	opts.Severity.KnownVariations = append(opts.Severity.KnownVariations, opts.KnownVariations...)

	return &Comparator{
		opts: opts,
		pipeline: normalize.Pipeline{
			StripStatusBar:        opts.StripStatusBar,
			StripGameHeader:       opts.StripGameHeader,
			NormalizeLineWrapping: opts.NormalizeLineWrapping,
			NormalizeWhitespace:   opts.NormalizeWhitespace,
		},
		classifier: classify.NewClassifier(pools),
	}
}

// Options returns a copy of the comparator's configuration.
func (c *Comparator) Options() Options {
	return c.opts.clone()
}

// Classifier returns the classifier used by CompareAndClassify.
func (c *Comparator) Classifier() *classify.Classifier {
	return c.classifier
}

// Run compares a and b, classifying differences when TrackDifferenceTypes
// is enabled.
func (c *Comparator) Run(a, b *transcript.Transcript) *Report {
	if c.opts.TrackDifferenceTypes {
		return c.CompareAndClassify(a, b)
	}
	return c.Compare(a, b)
}

// Compare aligns a (the reference, "expected") with b (the implementation
// under test, "actual") and counts matches and differences.
//
// Without classification every difference is conservatively counted as a
// logic difference, so LogicParityPercentage never overstates parity.
func (c *Comparator) Compare(a, b *transcript.Transcript) *Report {
	return c.compare(a, b, false)
}

// CompareAndClassify is Compare plus a Classification for every difference.
// A running "divergence has occurred" flag is carried forward through the
// transcript pair.
func (c *Comparator) CompareAndClassify(a, b *transcript.Transcript) *Report {
	return c.compare(a, b, true)
}

// prepared is one side of an aligned pair after normalization.
type prepared struct {
	body string // normalized body, case preserved
	key  string // body as compared (lowercased when ignoring case)
}

func (c *Comparator) prepare(raw string) prepared {
	text := raw
	if c.opts.UseMessageExtraction {
		text = extract.Extract(raw).Body
	}
	body := c.pipeline.Apply(text)
	key := body
	if c.opts.IgnoreCaseInMessages {
		key = strings.ToLower(body)
	}
	return prepared{body: body, key: key}
}

func (c *Comparator) compare(a, b *transcript.Transcript, classifyDiffs bool) *Report {
	r := newReport()
	if classifyDiffs {
		r.ClassifiedDifferences = []ClassifiedDifference{}
	}

	la, lb := a.Len(), b.Len()
	r.TotalCommands = max(la, lb)
	diverged := false

	record := func(d Difference) {
		r.Differences = append(r.Differences, d)
		r.SeveritySummary[d.Severity]++

		if !classifyDiffs {
			r.LogicDifferences++
			return
		}
		cls := c.classifier.Classify(d.Expected, d.Actual, diverged)
		diverged = true
		switch cls {
		case classify.RNGDifference:
			r.RNGDifferences++
		case classify.StateDivergence:
			r.StateDivergences++
		default:
			r.LogicDifferences++
		}
		r.ClassifiedDifferences = append(r.ClassifiedDifferences, ClassifiedDifference{
			Difference:     d,
			Classification: cls,
		})
	}

	for i := 0; i < min(la, lb); i++ {
		ea, eb := a.Entries[i], b.Entries[i]
		pa, pb := c.prepare(ea.Output), c.prepare(eb.Output)

		if pa.key == pb.key {
			r.ExactMatches++
			if extract.StatusOnlyDifference(ea.Output, eb.Output) {
				r.StatusBarDifferences++
			}
			continue
		}

		sim := similarity.Similarity(pa.key, pb.key)
		if sim >= c.opts.ToleranceThreshold ||
			classify.MatchesKnownVariation(pa.body, c.opts.KnownVariations) ||
			classify.MatchesKnownVariation(pb.body, c.opts.KnownVariations) {
			r.CloseMatches++
			continue
		}

		r.BehavioralDifferences++
		record(Difference{
			CommandIndex: i,
			Command:      ea.Command,
			Expected:     pa.body,
			Actual:       pb.body,
			Severity:     classify.ClassifySeverity(pa.body, pb.body, sim, c.opts.Severity),
			Reason:       fmt.Sprintf("similarity %.2f below tolerance %.2f", sim, c.opts.ToleranceThreshold),
			Similarity:   sim,
		})
	}

	for i := min(la, lb); i < r.TotalCommands; i++ {
		d := Difference{
			CommandIndex: i,
			Severity:     classify.SeverityCritical,
			Unmatched:    true,
		}
		if i < la {
			d.Command = a.Entries[i].Command
			d.Expected = c.prepare(a.Entries[i].Output).body
			d.Reason = fmt.Sprintf("no counterpart in %s transcript", sourceName(b, "second"))
		} else {
			d.Command = b.Entries[i].Command
			d.Actual = c.prepare(b.Entries[i].Output).body
			d.Reason = fmt.Sprintf("no counterpart in %s transcript", sourceName(a, "first"))
		}
		record(d)
	}

	r.finalize()
	return r
}

// Standalone builds the report for a run without a reference transcript.
// Parity is 100% by definition and no differences are recorded; the Standalone
// flag keeps the report from being mistaken for a validated result.
func Standalone(t *transcript.Transcript) *Report {
	r := newReport()
	r.ClassifiedDifferences = []ClassifiedDifference{}
	r.TotalCommands = t.Len()
	r.Standalone = true
	r.ParityScore = 100
	r.LogicParityPercentage = 100
	return r
}

func sourceName(t *transcript.Transcript, fallback string) string {
	if t == nil || t.Source == "" {
		return fallback
	}
	return string(t.Source)
}
