package matching

import "sort"

// UsedSet holds the stems of artifacts already assigned in a run. The
// reconciler owns the set; stages receive it read-only and report their
// picks back.
type UsedSet map[string]struct{}

// NewUsedSet returns an empty set.
func NewUsedSet() UsedSet {
	return make(UsedSet)
}

// Has reports whether stem has been assigned.
func (u UsedSet) Has(stem string) bool {
	_, ok := u[stem]
	return ok
}

// Add marks stem as assigned.
func (u UsedSet) Add(stem string) {
	u[stem] = struct{}{}
}

// Stems returns the assigned stems sorted.
func (u UsedSet) Stems() []string {
	out := make([]string, 0, len(u))
	for s := range u {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
