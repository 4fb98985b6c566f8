package position

// MinGap is the threshold below which fractional precision is treated
// as exhausted and callers must renormalize before inserting again.
//
// The original behavior never states its threshold, so this is a
// deliberate conservative choice: float64 midpoint splitting stays
// exact for roughly 50 consecutive splits of a unit gap, while 1e-6 is
// reached after about 20. Renormalization therefore fires long before
// the math degrades.
const MinGap = 1e-6

// Step is the spacing used when appending past the current maximum and
// the seed position for the first item in an empty scope.
const Step = 1.0

// Allocate returns a position strictly between the given neighbors.
// Nil means "no neighbor on that side":
//
//	Allocate(nil, nil)     first item in an empty scope
//	Allocate(&p, nil)      append after p
//	Allocate(nil, &q)      prepend before q
//	Allocate(&p, &q)       insert between p and q
//
// The result is provisional: generally fractional, finalized only by a
// later renormalization. Callers supplying an explicit position (e.g.
// programmatic import) bypass Allocate entirely.
//
// Inverted neighbors (before >= after) still yield the midpoint rather
// than an error; the caller detects exhaustion via NeedsRenormalize and
// schedules a renormalization instead of failing the gesture.
func Allocate(before, after *float64) float64 {
	switch {
	case before == nil && after == nil:
		return Step
	case after == nil:
		return *before + Step
	case before == nil:
		return *after - Step
	default:
		return *before + (*after-*before)/2
	}
}

// NeedsRenormalize reports whether the gap between two neighbors is too
// small for further midpoint allocation. A nil neighbor always has room.
func NeedsRenormalize(before, after *float64) bool {
	if before == nil || after == nil {
		return false
	}
	gap := *after - *before
	return gap < MinGap
}
