package pipeline

import (
	"github.com/roach88/taskrail/internal/record"
)

// Attribution stamps the authoritative actor onto the payload.
//
// On create both created_by_id and updated_by_id are set to the
// authenticated actor. On update only updated_by_id moves -
// created_by_id is immutable after creation.
//
// Attribution is authority, not convention: a payload asserting an
// attribution field different from the actor fails the whole pipeline,
// as does any mutation without an authenticated actor.
type Attribution struct{}

func (Attribution) Name() string { return "attribution" }

func (Attribution) Apply(fields record.Fields, mctx *record.MutationContext) (record.Fields, error) {
	if mctx.Actor.IsZero() {
		return nil, &record.AttributionError{Reason: "no authenticated user for attribution"}
	}

	if claimed := fields.String(record.FieldCreatedByID); claimed != "" && claimed != mctx.Actor.ID {
		return nil, &record.AttributionError{
			Reason: "created_by_id " + claimed + " does not match authenticated actor " + mctx.Actor.ID,
		}
	}
	if claimed := fields.String(record.FieldUpdatedByID); claimed != "" && claimed != mctx.Actor.ID {
		return nil, &record.AttributionError{
			Reason: "updated_by_id " + claimed + " does not match authenticated actor " + mctx.Actor.ID,
		}
	}

	out := fields.Clone()
	if mctx.Op == record.OpCreate {
		out[record.FieldCreatedByID] = mctx.Actor.ID
	} else {
		// Never resurrect or rewrite the creator on update paths.
		delete(out, record.FieldCreatedByID)
	}
	out[record.FieldUpdatedByID] = mctx.Actor.ID
	return out, nil
}
