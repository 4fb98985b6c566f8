package pipeline

import (
	"github.com/roach88/taskrail/internal/position"
	"github.com/roach88/taskrail/internal/record"
)

// Positioning assigns an ordering value to creates and moves.
//
// Rules:
//   - A caller-supplied explicit position (programmatic import, batch
//     renumbering) passes through untouched.
//   - Otherwise the position is allocated between the neighbor
//     positions the engine resolved into the mutation context.
//   - Allocator output is provisional: position_finalized is cleared so
//     the next renormalization folds it into the dense sequence.
//
// Updates that do not touch ordering (no neighbors resolved, no
// explicit position) flow through unchanged.
type Positioning struct{}

func (Positioning) Name() string { return "positioning" }

func (Positioning) Apply(fields record.Fields, mctx *record.MutationContext) (record.Fields, error) {
	if _, explicit := fields.Float(record.FieldPosition); explicit {
		// Manual override: no allocator interference.
		return fields, nil
	}

	isMove := mctx.BeforePos != nil || mctx.AfterPos != nil
	if mctx.Op != record.OpCreate && !isMove {
		return fields, nil
	}

	out := fields.Clone()
	out[record.FieldPosition] = position.Allocate(mctx.BeforePos, mctx.AfterPos)
	out[record.FieldPositionFinalized] = false
	return out, nil
}
