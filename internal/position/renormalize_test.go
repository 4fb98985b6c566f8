package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenormalize_RemovalRegression(t *testing.T) {
	// Regression: removing items at original positions {2,5,6} from a
	// 7-item list must renumber survivors {1,3,4,7} to {1,2,3,4}.
	// Each survivor's rank is its count of surviving predecessors plus
	// one, computed from ONE prior snapshot. The broken variant
	// recomputed the list per removed item and double-shifted t3 and t4.
	prior := []Slot{
		{ID: "t1", Position: 1},
		{ID: "t2", Position: 2},
		{ID: "t3", Position: 3},
		{ID: "t4", Position: 4},
		{ID: "t5", Position: 5},
		{ID: "t6", Position: 6},
		{ID: "t7", Position: 7},
	}
	removed := map[string]bool{"t2": true, "t5": true, "t6": true}

	survivors := SurvivorsAfter(prior, removed)
	require.Len(t, survivors, 4)

	got := Renormalize(survivors)
	want := []Reassignment{
		{ID: "t1", Position: 1, Changed: false},
		{ID: "t3", Position: 2, Changed: true},
		{ID: "t4", Position: 3, Changed: true},
		{ID: "t7", Position: 4, Changed: true},
	}
	assert.Equal(t, want, got)
}

func TestRenormalize_FractionalInputs(t *testing.T) {
	// Allocator output folds into dense integers while relative order
	// is preserved.
	snapshot := []Slot{
		{ID: "b", Position: 2},
		{ID: "a", Position: 2.5}, // moved after b via allocator
	}
	got := Renormalize(snapshot)
	assert.Equal(t, []Reassignment{
		{ID: "b", Position: 1, Changed: true},
		{ID: "a", Position: 2, Changed: true},
	}, got)
}

func TestRenormalize_AlreadyDense(t *testing.T) {
	snapshot := []Slot{
		{ID: "a", Position: 1},
		{ID: "b", Position: 2},
		{ID: "c", Position: 3},
	}
	for _, r := range Renormalize(snapshot) {
		assert.False(t, r.Changed, "dense positions must not be rewritten")
	}
}

func TestRenormalize_TiesBrokenByID(t *testing.T) {
	// Duplicate positions may exist transiently (concurrent fractional
	// inserts). Ties break by ID and never survive renormalization.
	snapshot := []Slot{
		{ID: "z", Position: 1.5},
		{ID: "a", Position: 1.5},
	}
	got := Renormalize(snapshot)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, 1.0, got[0].Position)
	assert.Equal(t, "z", got[1].ID)
	assert.Equal(t, 2.0, got[1].Position)
}

func TestRenormalize_Empty(t *testing.T) {
	assert.Empty(t, Renormalize(nil))
}

func TestRenormalize_PairwiseDistinct(t *testing.T) {
	snapshot := []Slot{
		{ID: "a", Position: 0.125},
		{ID: "b", Position: 0.25},
		{ID: "c", Position: 0.25},
		{ID: "d", Position: 7},
		{ID: "e", Position: 3.75},
	}
	got := Renormalize(snapshot)
	seen := map[float64]bool{}
	for _, r := range got {
		assert.False(t, seen[r.Position], "position %v assigned twice", r.Position)
		seen[r.Position] = true
	}
	assert.Len(t, seen, len(snapshot))
}

func TestSurvivorsAfter_DoesNotMutatePrior(t *testing.T) {
	prior := []Slot{{ID: "a", Position: 1}, {ID: "b", Position: 2}}
	_ = SurvivorsAfter(prior, map[string]bool{"a": true})
	assert.Equal(t, "a", prior[0].ID)
	assert.Len(t, prior, 2)
}
