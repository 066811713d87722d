package classify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ObjectPlaceholder marks the object name slot in a pool entry.
const ObjectPlaceholder = "{object}"

// objectPrefix matches the "<object name>: " prefix an interpreter prints
// before each per-object response when a command names several objects.
var objectPrefix = regexp.MustCompile(`^[^:\n]{1,40}:\s+`)

// Pool is a named, finite set of responses a game may emit at random for one
// situation.
type Pool struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Entries     []string `json:"entries"`
}

// compiledPool holds the literal and template forms of a pool's entries.
type compiledPool struct {
	pool      Pool
	literals  map[string]struct{}
	templates []*regexp.Regexp
}

func compilePool(p Pool) (*compiledPool, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("pool name is required")
	}
	if len(p.Entries) == 0 {
		return nil, fmt.Errorf("pool %q: entries list is required and must be non-empty", p.Name)
	}

	cp := &compiledPool{
		pool: Pool{
			Name:        p.Name,
			Description: p.Description,
			Entries:     append([]string(nil), p.Entries...),
		},
		literals: make(map[string]struct{}, len(p.Entries)),
	}

	for i, entry := range p.Entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, fmt.Errorf("pool %q: entries[%d] is empty", p.Name, i)
		}
		if !strings.Contains(entry, ObjectPlaceholder) {
			cp.literals[entry] = struct{}{}
			continue
		}
		parts := strings.Split(entry, ObjectPlaceholder)
		for j := range parts {
			parts[j] = regexp.QuoteMeta(parts[j])
		}
		re, err := regexp.Compile("^" + strings.Join(parts, "(.+?)") + "$")
		if err != nil {
			return nil, fmt.Errorf("pool %q: entries[%d]: %w", p.Name, i, err)
		}
		cp.templates = append(cp.templates, re)
	}

	return cp, nil
}

// matchExact reports whether text is one of the pool's entries, with any
// object placeholder filled in.
func (cp *compiledPool) matchExact(text string) bool {
	if _, ok := cp.literals[text]; ok {
		return true
	}
	for _, re := range cp.templates {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// match tries the text as is, then with an object-name prefix stripped.
func (cp *compiledPool) match(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if cp.matchExact(text) {
		return true
	}
	if loc := objectPrefix.FindStringIndex(text); loc != nil {
		return cp.matchExact(text[loc[1]:])
	}
	return false
}

// PoolSet is an immutable collection of RNG pools.
//
// A nil *PoolSet is valid and matches nothing.
//
// Thread-safety: PoolSet is read-only after construction and safe for
// concurrent use.
type PoolSet struct {
	pools  []*compiledPool
	byName map[string]*compiledPool
}

// NewPoolSet validates and compiles pools. Pool names must be unique.
func NewPoolSet(pools ...Pool) (*PoolSet, error) {
	s := &PoolSet{
		pools:  make([]*compiledPool, 0, len(pools)),
		byName: make(map[string]*compiledPool, len(pools)),
	}
	for i, p := range pools {
		cp, err := compilePool(p)
		if err != nil {
			return nil, fmt.Errorf("pools[%d]: %w", i, err)
		}
		if _, dup := s.byName[p.Name]; dup {
			return nil, fmt.Errorf("pools[%d]: duplicate pool name %q", i, p.Name)
		}
		s.pools = append(s.pools, cp)
		s.byName[p.Name] = cp
	}
	return s, nil
}

// Pools returns a copy of the configured pools in declaration order.
func (s *PoolSet) Pools() []Pool {
	if s == nil {
		return nil
	}
	out := make([]Pool, len(s.pools))
	for i, cp := range s.pools {
		out[i] = Pool{
			Name:        cp.pool.Name,
			Description: cp.pool.Description,
			Entries:     append([]string(nil), cp.pool.Entries...),
		}
	}
	return out
}

// Len returns the number of pools.
func (s *PoolSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.pools)
}

// IsPoolMessage reports whether text matches an entry of the named pool,
// exactly or after stripping a known object-name affix.
// Unknown pool names match nothing.
func (s *PoolSet) IsPoolMessage(text, pool string) bool {
	if s == nil {
		return false
	}
	cp, ok := s.byName[pool]
	if !ok {
		return false
	}
	return cp.match(text)
}

// IsRngPoolMessage reports whether text matches any configured pool.
func (s *PoolSet) IsRngPoolMessage(text string) bool {
	return len(s.MatchingPools(text)) > 0
}

// MatchingPools returns the names of every pool text belongs to, sorted.
func (s *PoolSet) MatchingPools(text string) []string {
	if s == nil {
		return nil
	}
	var names []string
	for _, cp := range s.pools {
		if cp.match(text) {
			names = append(names, cp.pool.Name)
		}
	}
	sort.Strings(names)
	return names
}

// AreBothFromSameRngPool reports whether a and b both belong to at least one
// common pool. Texts drawn from two different pools do not qualify.
func (s *PoolSet) AreBothFromSameRngPool(a, b string) bool {
	if s == nil {
		return false
	}
	for _, cp := range s.pools {
		if cp.match(a) && cp.match(b) {
			return true
		}
	}
	return false
}
