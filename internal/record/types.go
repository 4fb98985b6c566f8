package record

import (
	"time"
)

// Kind identifies a record family. The set is closed: pipelines are
// resolved by Kind at startup, never by runtime table-name strings.
type Kind string

const (
	// KindTask is an orderable work item nested under a job scope.
	KindTask Kind = "task"

	// KindActivity is an append-only audit entry. Activity records are
	// exempt from auditing - their pipeline is a pass-through.
	KindActivity Kind = "activity"
)

// Valid reports whether k is a known record kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTask, KindActivity:
		return true
	}
	return false
}

// Role is the coarse authorization level of an actor.
type Role string

const (
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// Actor identifies the authenticated user performing a mutation.
// Actor is always passed explicitly - there is no ambient current-user
// state anywhere in this module.
type Actor struct {
	ID   string
	Role Role
}

// IsZero reports whether the actor is absent (unauthenticated).
func (a Actor) IsZero() bool {
	return a.ID == ""
}

// Status is the workflow state of a task.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Record is the persisted shape of an orderable item.
//
// INVARIANTS:
//   - Within (ScopeID, ParentID), no two non-discarded records share a
//     Position.
//   - ParentID, if set, references a record with the same ScopeID.
//   - CreatedByID is immutable after creation; both attribution fields
//     always equal the actor of the last accepted write.
type Record struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	ScopeID string `json:"scope_id"`

	// ParentID is empty for top-level records.
	ParentID string `json:"parent_id,omitempty"`

	// Position orders siblings. Fractional values are provisional
	// (allocator output); renormalization assigns dense integers and
	// sets PositionFinalized.
	Position          float64 `json:"position"`
	PositionFinalized bool    `json:"position_finalized"`

	Title      string `json:"title"`
	Status     Status `json:"status"`
	AssigneeID string `json:"assignee_id,omitempty"`

	CreatedByID string `json:"created_by_id"`
	UpdatedByID string `json:"updated_by_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ReorderedAt is shared by every record touched in one logical
	// reorder, so a multi-item move reads as a single atomic action.
	ReorderedAt *time.Time `json:"reordered_at,omitempty"`

	// DiscardedAt marks a soft delete. Discarded records keep their
	// position but no longer participate in ordering invariants.
	DiscardedAt *time.Time `json:"discarded_at,omitempty"`
}

// Discarded reports whether the record is soft-deleted.
func (r *Record) Discarded() bool {
	return r.DiscardedAt != nil
}

// Fields is a write payload: a partial set of column values flowing
// through the mutator pipeline before persistence.
type Fields map[string]any

// Clone returns a shallow copy. Mutators must not alias their input.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the string value for key, or "" if absent or not a string.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Float returns the float64 value for key and whether it was present.
// Integer values are widened; other types report false.
func (f Fields) Float(key string) (float64, bool) {
	switch v := f[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Op distinguishes the mutation classes the pipeline handles.
type Op string

const (
	OpCreate  Op = "create"
	OpUpdate  Op = "update"
	OpDiscard Op = "discard"
)
