// Package similarity quantifies the textual closeness of two response bodies.
package similarity

import "unicode/utf8"

// Similarity returns a score in [0, 1].
//
// It is 1 iff a == b (including both empty), 0 if exactly one side is empty,
// and otherwise 1 - EditDistance(a, b) / max(len(a), len(b)) where lengths
// are counted in runes. The score is symmetric and deterministic.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	return 1 - float64(EditDistance(a, b))/float64(longest)
}

// EditDistance returns the Levenshtein distance between a and b at the
// character (rune) level.
//
// Uses the two-row dynamic-programming formulation: O(len(a)*len(b)) time and
// O(min(len(a), len(b))) space, which is adequate for turn responses of tens
// to low hundreds of characters.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}
