package record

import (
	"time"
)

// Change captures one field transition for audit: [old, new].
type Change [2]any

// MutationContext carries everything a mutator chain needs for one
// write. It is created per call and discarded after the pipeline
// completes; it is never persisted itself, only the activity entries it
// collects are.
//
// The actor is an explicit parameter, sourced from the caller's session.
// Mutators must never consult ambient global state.
type MutationContext struct {
	Actor Actor
	Op    Op
	Now   time.Time

	// Subject identifies the record being mutated. SubjectID is empty
	// until create assigns one.
	SubjectKind Kind
	SubjectID   string

	// Changes maps field name to [old, new]. Populated by the caller
	// when change tracking was requested; consumed by the audit mutator.
	Changes map[string]Change

	// BeforePos/AfterPos are the positions of the neighbors the subject
	// is being placed between, resolved by the engine from a sibling
	// snapshot. Nil means "list end" on that side.
	BeforePos *float64
	AfterPos  *float64

	// Meta is a free-form bag snapshot for audit metadata (titles,
	// counts). Values must survive canonical JSON marshaling.
	Meta map[string]any

	// Activity collects the audit entries emitted by the chain. The
	// engine persists them in the same transaction as the subject write.
	Activity []ActivityEntry
}

// NewMutationContext builds a context for one pipeline run.
func NewMutationContext(actor Actor, op Op, kind Kind, now time.Time) *MutationContext {
	return &MutationContext{
		Actor:       actor,
		Op:          op,
		Now:         now,
		SubjectKind: kind,
		Meta:        map[string]any{},
	}
}

// RecordChange tracks a field transition for the audit mutator.
func (c *MutationContext) RecordChange(field string, old, new any) {
	if c.Changes == nil {
		c.Changes = map[string]Change{}
	}
	c.Changes[field] = Change{old, new}
}

// AppendActivity adds an audit entry produced by the chain.
func (c *MutationContext) AppendActivity(e ActivityEntry) {
	c.Activity = append(c.Activity, e)
}

// ActivityEntry is one append-only audit record. It snapshots metadata
// at mutation time so history survives later edits and deletes of the
// subject. Entries are write-only: nothing in the pipeline ever mutates
// one after emission.
type ActivityEntry struct {
	ID          string         `json:"id"`
	ActorID     string         `json:"actor_id"`
	Action      string         `json:"action"`
	SubjectKind Kind           `json:"subject_kind"`
	SubjectID   string         `json:"subject_id"`
	Meta        map[string]any `json:"meta,omitempty"`

	// ChangeHash is the canonical content hash of the change map,
	// used to keep retried writes idempotent.
	ChangeHash string `json:"change_hash,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}
