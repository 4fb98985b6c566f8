package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/taskrail/internal/record"
)

// overlayEntry is one optimistic write not yet confirmed by the remote
// store.
type overlayEntry struct {
	seq    int64
	op     record.Op
	fields record.Fields
}

// overlay holds locally-applied mutations awaiting confirmation, plus
// the per-record monotonic write counters that order them.
//
// Counters, not arrival order, decide reconciliation: a confirmation
// carrying a counter at or below the highest already-confirmed value
// for that record is stale and must never clobber a newer optimistic
// value (last write wins).
type overlay struct {
	mu        sync.Mutex
	entries   map[string][]overlayEntry
	counters  map[string]int64 // last issued write seq per record
	confirmed map[string]int64 // highest confirmed write seq per record
}

func newOverlay() *overlay {
	return &overlay{
		entries:   make(map[string][]overlayEntry),
		counters:  make(map[string]int64),
		confirmed: make(map[string]int64),
	}
}

// begin applies an optimistic write and returns its write counter.
// Entries for one record accumulate in dispatch order.
func (o *overlay) begin(id string, op record.Op, fields record.Fields) int64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.counters[id]++
	seq := o.counters[id]
	o.entries[id] = append(o.entries[id], overlayEntry{seq: seq, op: op, fields: fields.Clone()})
	return seq
}

// confirm acknowledges the write with the given counter. Returns false
// when the confirmation is stale (an equal or newer write was already
// confirmed); stale confirmations change nothing.
func (o *overlay) confirm(id string, seq int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if seq <= o.confirmed[id] {
		return false
	}
	o.confirmed[id] = seq
	o.dropThroughLocked(id, seq)
	return true
}

// rollback discards the optimistic write with the given counter without
// advancing the confirmed floor. Later pending writes stay applied.
func (o *overlay) rollback(id string, seq int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries := o.entries[id]
	kept := entries[:0]
	for _, e := range entries {
		if e.seq != seq {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(o.entries, id)
	} else {
		o.entries[id] = kept
	}
}

func (o *overlay) dropThroughLocked(id string, seq int64) {
	entries := o.entries[id]
	kept := entries[:0]
	for _, e := range entries {
		if e.seq > seq {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(o.entries, id)
	} else {
		o.entries[id] = kept
	}
}

// pendingFor returns the number of unconfirmed writes for a record.
func (o *overlay) pendingFor(id string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries[id])
}

// merge layers the record's pending writes over its confirmed base, in
// dispatch order. base may be nil for an optimistically-created record;
// the result is then synthesized entirely from the create entry.
// Returns nil when there is neither a base nor a pending create.
func (o *overlay) merge(id string, base *record.Record) *record.Record {
	o.mu.Lock()
	entries := make([]overlayEntry, len(o.entries[id]))
	copy(entries, o.entries[id])
	o.mu.Unlock()

	if base == nil && len(entries) == 0 {
		return nil
	}

	var rec record.Record
	if base != nil {
		rec = *base
	} else if entries[0].op != record.OpCreate {
		return nil
	}

	for _, e := range entries {
		applyFields(&rec, e.fields)
	}
	return &rec
}

// mergeList layers pending state over a sibling snapshot: updated
// members are patched, optimistically-discarded members drop out,
// optimistically-created members of the scope are added, and the result
// is re-sorted by (position, id).
func (o *overlay) mergeList(scopeID, parentID string, base []record.Record) []record.Record {
	o.mu.Lock()
	ids := make([]string, 0, len(o.entries))
	for id := range o.entries {
		ids = append(ids, id)
	}
	o.mu.Unlock()
	sort.Strings(ids)

	seen := make(map[string]bool, len(base))
	out := make([]record.Record, 0, len(base))
	for i := range base {
		seen[base[i].ID] = true
		if merged := o.merge(base[i].ID, &base[i]); merged != nil && !merged.Discarded() {
			out = append(out, *merged)
		}
	}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		merged := o.merge(id, nil)
		if merged == nil || merged.Discarded() {
			continue
		}
		if merged.ScopeID == scopeID && merged.ParentID == parentID {
			out = append(out, *merged)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// applyFields patches a record in place from a write payload. Only the
// canonical field names flow through here; unknown keys are ignored
// rather than failing a read path.
func applyFields(rec *record.Record, fields record.Fields) {
	for name, val := range fields {
		switch name {
		case record.FieldID:
			rec.ID, _ = val.(string)
		case record.FieldKind:
			if s, ok := val.(string); ok {
				rec.Kind = record.Kind(s)
			}
		case record.FieldScopeID:
			rec.ScopeID, _ = val.(string)
		case record.FieldParentID:
			rec.ParentID, _ = val.(string)
		case record.FieldPosition:
			if f, ok := fields.Float(name); ok {
				rec.Position = f
			}
		case record.FieldPositionFinalized:
			if b, ok := val.(bool); ok {
				rec.PositionFinalized = b
			}
		case record.FieldTitle:
			rec.Title, _ = val.(string)
		case record.FieldStatus:
			if s, ok := val.(string); ok {
				rec.Status = record.Status(s)
			}
		case record.FieldAssigneeID:
			rec.AssigneeID, _ = val.(string)
		case record.FieldCreatedByID:
			rec.CreatedByID, _ = val.(string)
		case record.FieldUpdatedByID:
			rec.UpdatedByID, _ = val.(string)
		case record.FieldReorderedAt:
			if t, ok := val.(time.Time); ok {
				rec.ReorderedAt = &t
			}
		case record.FieldDiscardedAt:
			if t, ok := val.(time.Time); ok {
				rec.DiscardedAt = &t
			}
		}
	}
}
