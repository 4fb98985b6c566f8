package record

// Canonical field names shared by payloads, the pipeline, and the store.
// These match the persisted column names.
const (
	FieldID                = "id"
	FieldKind              = "kind"
	FieldScopeID           = "scope_id"
	FieldParentID          = "parent_id"
	FieldPosition          = "position"
	FieldPositionFinalized = "position_finalized"
	FieldTitle             = "title"
	FieldStatus            = "status"
	FieldAssigneeID        = "assignee_id"
	FieldCreatedByID       = "created_by_id"
	FieldUpdatedByID       = "updated_by_id"
	FieldReorderedAt       = "reordered_at"
	FieldDiscardedAt       = "discarded_at"
)
