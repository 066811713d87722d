// Package classify decides why two response bodies differ.
//
// Every divergence between the implementation under test and the reference
// falls into exactly one of three classes:
//
//   - RNG_DIFFERENCE: both responses come from the same random pool, so the
//     games simply rolled differently.
//   - STATE_DIVERGENCE: an earlier divergence already happened in this
//     transcript pair, so the sessions may be in different states.
//   - LOGIC_DIFFERENCE: nothing explains the divergence; a genuine defect.
//
// Ambiguous cases fall through to LOGIC_DIFFERENCE. The classifier prefers
// flagging a harmless difference over hiding a real one.
//
// Independently, ClassifySeverity grades how far apart two texts are.
package classify

import "strings"

// Classification labels a divergence.
type Classification string

const (
	RNGDifference   Classification = "RNG_DIFFERENCE"
	StateDivergence Classification = "STATE_DIVERGENCE"
	LogicDifference Classification = "LOGIC_DIFFERENCE"
)

// Classifier assigns a Classification to a diverging pair of bodies.
//
// Thread-safety: Classifier holds only an immutable PoolSet and is safe for
// concurrent use.
type Classifier struct {
	pools *PoolSet
}

// NewClassifier creates a classifier over pools. A nil pools set is allowed;
// no divergence will then be attributed to randomness.
func NewClassifier(pools *PoolSet) *Classifier {
	return &Classifier{pools: pools}
}

// Pools returns the pool set the classifier matches against.
func (c *Classifier) Pools() *PoolSet {
	return c.pools
}

// Classify labels the divergence between bodies a and b.
//
// priorDivergence reports whether any earlier command in the same transcript
// pair already diverged.
func (c *Classifier) Classify(a, b string, priorDivergence bool) Classification {
	if c.sameRngPool(a, b) {
		return RNGDifference
	}
	if priorDivergence {
		return StateDivergence
	}
	return LogicDifference
}

// sameRngPool matches whole bodies first. Failing that, bodies with the same
// number of lines qualify when every line that differs is a same-pool pair,
// which covers a random quip embedded in otherwise identical output.
func (c *Classifier) sameRngPool(a, b string) bool {
	if c.pools.AreBothFromSameRngPool(a, b) {
		return true
	}

	la, lb := strings.Split(a, "\n"), strings.Split(b, "\n")
	if len(la) != len(lb) || len(la) < 2 {
		return false
	}
	differing := 0
	for i := range la {
		if strings.TrimSpace(la[i]) == strings.TrimSpace(lb[i]) {
			continue
		}
		if !c.pools.AreBothFromSameRngPool(la[i], lb[i]) {
			return false
		}
		differing++
	}
	return differing > 0
}
