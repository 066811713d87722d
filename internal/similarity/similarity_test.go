package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"Taken.", "Taken.", 0},
		{"Taken.", "Taken!", 1},
		{"café", "cafe", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EditDistance(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
		assert.Equal(t, tt.want, EditDistance(tt.b, tt.a), "%q vs %q (swapped)", tt.b, tt.a)
	}
}

func TestSimilarity_Bounds(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("Taken.", "Taken."))
	assert.Equal(t, 0.0, Similarity("Taken.", ""))
	assert.Equal(t, 0.0, Similarity("", "Taken."))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
}

func TestSimilarity_Properties(t *testing.T) {
	samples := []string{
		"",
		"Taken.",
		"Dropped.",
		"You can't see any such thing.",
		"A valiant attempt.",
		"Valiant attempt.",
		"The brass lantern is now on.",
		"It is pitch black. You are likely to be eaten by a grue.",
	}

	for _, a := range samples {
		assert.Equal(t, 1.0, Similarity(a, a), "reflexive for %q", a)
		if a != "" {
			assert.Equal(t, 0.0, Similarity(a, ""), "empty side for %q", a)
		}
		for _, b := range samples {
			s := Similarity(a, b)
			assert.Equal(t, s, Similarity(b, a), "symmetric for %q / %q", a, b)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
			if a != b {
				assert.Less(t, s, 1.0, "distinct strings %q / %q", a, b)
			}
		}
	}
}

func TestSimilarity_Ratio(t *testing.T) {
	// one substitution in ten characters
	assert.InDelta(t, 0.9, Similarity("abcdefghij", "abcdefghiX"), 1e-9)
	// "kitten" -> "sitting": 3 edits over 7 runes
	assert.InDelta(t, 1-3.0/7.0, Similarity("kitten", "sitting"), 1e-9)
}
