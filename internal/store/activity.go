package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/taskrail/internal/record"
)

// AppendActivity writes entries outside any record transaction. The
// engine normally persists activity with its subject write; this
// standalone variant exists for system-generated entries (e.g. a
// renormalization note) that have no subject mutation of their own.
func (s *Store) AppendActivity(ctx context.Context, entries []record.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append activity: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := appendActivityTx(ctx, tx, entries); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append activity: commit: %w", err)
	}

	for _, e := range entries {
		s.notifier.Publish(Change{Table: TableActivity, ID: e.ID, Op: ChangeInsert})
	}
	return nil
}

// appendActivityTx inserts entries inside an open transaction.
// ON CONFLICT DO NOTHING keeps retried writes idempotent: a retry after
// a lost confirmation re-sends the same entry ids.
func appendActivityTx(ctx context.Context, tx *sql.Tx, entries []record.ActivityEntry) error {
	for _, e := range entries {
		var meta any
		if len(e.Meta) > 0 {
			b, err := json.Marshal(e.Meta)
			if err != nil {
				return fmt.Errorf("marshal activity meta %s: %w", e.ID, err)
			}
			meta = string(b)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO activity_log
			(id, actor_id, action, subject_kind, subject_id, meta, change_hash, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`,
			e.ID,
			e.ActorID,
			e.Action,
			string(e.SubjectKind),
			e.SubjectID,
			meta,
			nullString(e.ChangeHash),
			formatTime(e.RecordedAt),
		)
		if err != nil {
			return fmt.Errorf("write activity %s: %w", e.ID, err)
		}
	}
	return nil
}

// ActivityFor returns the audit trail for one subject, oldest first.
// Ordering is deterministic: recorded_at, then id.
func (s *Store) ActivityFor(ctx context.Context, subjectID string) ([]record.ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, action, subject_kind, subject_id, meta, change_hash, recorded_at
		FROM activity_log
		WHERE subject_id = ?
		ORDER BY recorded_at ASC, id ASC
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []record.ActivityEntry
	for rows.Next() {
		var (
			e          record.ActivityEntry
			kind       string
			meta       sql.NullString
			changeHash sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &kind, &e.SubjectID, &meta, &changeHash, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.SubjectKind = record.Kind(kind)
		e.ChangeHash = changeHash.String
		if meta.Valid {
			if err := json.Unmarshal([]byte(meta.String), &e.Meta); err != nil {
				return nil, fmt.Errorf("unmarshal activity meta %s: %w", e.ID, err)
			}
		}
		if e.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, fmt.Errorf("recorded_at: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	if out == nil {
		out = []record.ActivityEntry{}
	}
	return out, nil
}
