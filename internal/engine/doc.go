// Package engine is the optimistic sync client: the single surface UI
// code mutates through. Every mutation is guarded, pipelined, applied
// to a local optimistic overlay, then written to the remote store, with
// confirmation or rollback reconciled against a per-record monotonic
// write counter.
//
// All mutation processing happens on one goroutine (the Run loop) fed
// by a thread-safe queue, so pipeline execution for a record is never
// concurrently re-entered and renormalizations per sibling scope are
// naturally serialized.
package engine
