// Package position implements sibling ordering math: fractional
// midpoint allocation for inserts and moves, and dense integer
// renormalization after structural changes.
//
// Both halves are pure functions over snapshots. The engine is
// responsible for taking a single consistent snapshot per logical batch
// and for serializing renormalizations per sibling scope; this package
// assumes those guarantees and never touches storage.
package position
