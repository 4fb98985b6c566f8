package position

import (
	"sort"
)

// Slot is one sibling in a scope snapshot: just enough to order it.
type Slot struct {
	ID       string
	Position float64
}

// Reassignment is one renormalized position. Changed is false when the
// record already held its dense rank, letting callers skip no-op writes.
type Reassignment struct {
	ID       string
	Position float64
	Changed  bool
}

// Renormalize assigns dense integer positions 1..N to the given
// siblings, preserving their relative order. Ties on Position are broken
// by ID as a last resort; after renormalization no ties remain.
//
// The input must be ONE consistent snapshot of the scope taken after all
// removals and insertions of the logical batch. Each survivor's new rank
// is its count of surviving predecessors plus one. Recomputing the
// snapshot per removed item would shift survivors twice - that defect is
// exactly what this function exists to prevent, so callers must never
// invoke it iteratively for a single batch.
func Renormalize(snapshot []Slot) []Reassignment {
	ordered := make([]Slot, len(snapshot))
	copy(ordered, snapshot)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Position != ordered[j].Position {
			return ordered[i].Position < ordered[j].Position
		}
		return ordered[i].ID < ordered[j].ID
	})

	out := make([]Reassignment, len(ordered))
	for i, s := range ordered {
		rank := float64(i + 1)
		out[i] = Reassignment{
			ID:       s.ID,
			Position: rank,
			Changed:  s.Position != rank,
		}
	}
	return out
}

// SurvivorsAfter filters one prior snapshot down to the siblings that
// remain after a batch of removals. It exists so callers express "remove
// these, then renormalize" against a single snapshot instead of
// re-reading the scope between removals.
func SurvivorsAfter(prior []Slot, removed map[string]bool) []Slot {
	survivors := make([]Slot, 0, len(prior))
	for _, s := range prior {
		if !removed[s.ID] {
			survivors = append(survivors, s)
		}
	}
	return survivors
}
