package classify

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed pools.cue
var defaultPoolsCUE []byte

// poolSchema constrains pool files. It is unified with every loaded file so
// malformed tables are rejected before any comparison runs.
const poolSchema = `
#Pool: {
	name:         string & =~"^[a-z][a-z0-9-]*$"
	description?: string
	entries: [string & !="", ...string & !=""]
}

pools: [...#Pool]
`

// DefaultPools returns the built-in pool table.
func DefaultPools() (*PoolSet, error) {
	pools, err := ParsePools("pools.cue", defaultPoolsCUE)
	if err != nil {
		return nil, fmt.Errorf("default pools: %w", err)
	}
	return NewPoolSet(pools...)
}

// MustDefaultPools is like DefaultPools but panics on error.
// The embedded table is fixed at build time, so an error is a programming bug.
func MustDefaultPools() *PoolSet {
	s, err := DefaultPools()
	if err != nil {
		panic(err)
	}
	return s
}

// LoadPools reads a CUE pool file and returns the compiled set.
func LoadPools(path string) (*PoolSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pool file: %w", err)
	}
	pools, err := ParsePools(path, data)
	if err != nil {
		return nil, err
	}
	return NewPoolSet(pools...)
}

// ParsePools compiles CUE source, validates it against the pool schema and
// decodes the pool list. filename is used in error positions only.
func ParsePools(filename string, src []byte) ([]Pool, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(poolSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("pool schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(filename, err)
	}

	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(filename, err)
	}

	var doc struct {
		Pools []Pool `json:"pools"`
	}
	if err := v.Decode(&doc); err != nil {
		return nil, formatCUEError(filename, err)
	}
	if len(doc.Pools) == 0 {
		return nil, fmt.Errorf("%s: pools list is required and must be non-empty", filename)
	}
	return doc.Pools, nil
}

// formatCUEError reports the first CUE error with its source position.
func formatCUEError(filename string, err error) error {
	list := errors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", filename, err)
	}
	first := list[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		pos := positions[0]
		return fmt.Errorf("%s:%d:%d: invalid pool table: %s", pos.Filename(), pos.Line(), pos.Column(), first.Error())
	}
	return fmt.Errorf("%s: invalid pool table: %s", filename, first.Error())
}
