// Package record defines the core domain types for taskrail: orderable
// records, mutation contexts, activity entries, and the error taxonomy
// shared by the pipeline, guard, store, and engine.
//
// Records are never physically deleted; discarding sets discarded_at and
// keeps the row addressable for undo. Ordering lives in the position
// field, scoped by (scope_id, parent_id). See package position for the
// allocation and renormalization rules.
package record
