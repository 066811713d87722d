// Package normalize strips non-semantic formatting noise from raw turn output.
//
// Interactive-fiction interpreters render the same game text differently:
// line endings, hard wrapping at a fixed terminal width, column padding in the
// status line, and the opening banner all vary between implementations while
// carrying no behavioral meaning. The functions here remove that noise so the
// comparator can focus on what the game actually said.
//
// # Transformations
//
//   - StripStatusBar: drops "<location>  Score: N  Moves: M" status lines
//   - StripGameHeader: drops title/copyright/revision banner lines
//   - NormalizeLineWrapping: rejoins lines hard-wrapped mid-sentence
//   - NormalizeOutput: canonical line endings, whitespace and blank lines
//
// All functions are pure and safe for concurrent use. NormalizeOutput is
// idempotent: NormalizeOutput(NormalizeOutput(s)) == NormalizeOutput(s).
package normalize
