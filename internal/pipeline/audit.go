package pipeline

import (
	"fmt"

	"github.com/roach88/taskrail/internal/record"
)

// Audit emits one activity-log entry per mutation into the context.
// The engine persists collected entries in the same transaction as the
// subject write, so a rejected mutation leaves no audit trace.
//
// Audit never touches the subject payload, and activity records
// themselves resolve to a pass-through chain, so an audit write can
// never recurse into another audit write.
type Audit struct {
	IDs IDGenerator
}

func (Audit) Name() string { return "audit" }

func (a Audit) Apply(fields record.Fields, mctx *record.MutationContext) (record.Fields, error) {
	entry := record.ActivityEntry{
		ID:          a.IDs.Generate(),
		ActorID:     mctx.Actor.ID,
		Action:      actionName(mctx),
		SubjectKind: mctx.SubjectKind,
		SubjectID:   subjectID(fields, mctx),
		RecordedAt:  mctx.Now,
	}

	// Snapshot metadata now; the live record may be edited or discarded
	// later and history must not follow it.
	if len(mctx.Meta) > 0 {
		entry.Meta = make(map[string]any, len(mctx.Meta))
		for k, v := range mctx.Meta {
			entry.Meta[k] = v
		}
	}
	if title := fields.String(record.FieldTitle); title != "" {
		if entry.Meta == nil {
			entry.Meta = map[string]any{}
		}
		entry.Meta[record.FieldTitle] = title
	}

	if len(mctx.Changes) > 0 {
		hash, err := record.ChangeHash(mctx.Changes)
		if err != nil {
			return nil, fmt.Errorf("hash change map: %w", err)
		}
		entry.ChangeHash = hash
	}

	mctx.AppendActivity(entry)
	return fields, nil
}

func actionName(mctx *record.MutationContext) string {
	return string(mctx.SubjectKind) + "." + string(mctx.Op)
}

func subjectID(fields record.Fields, mctx *record.MutationContext) string {
	if mctx.SubjectID != "" {
		return mctx.SubjectID
	}
	return fields.String(record.FieldID)
}
