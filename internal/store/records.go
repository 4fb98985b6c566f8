package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/taskrail/internal/record"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// FieldUpdate is one member of a batch: a record id plus the partial
// set of columns to write.
type FieldUpdate struct {
	ID     string
	Fields record.Fields
}

// Columns a caller may write through UpdateRecord/ApplyBatch. Keys are
// payload field names; values note whether the column stores a time.
var writableColumns = map[string]bool{
	record.FieldParentID:          false,
	record.FieldPosition:          false,
	record.FieldPositionFinalized: false,
	record.FieldTitle:             false,
	record.FieldStatus:            false,
	record.FieldAssigneeID:        false,
	record.FieldUpdatedByID:       false,
	record.FieldReorderedAt:       true,
	record.FieldDiscardedAt:       true,
}

// InsertRecord writes a full record row. The caller supplies an
// already-pipelined record; activity entries produced alongside it go
// in the same transaction.
func (s *Store) InsertRecord(ctx context.Context, rec *record.Record, activity []record.ActivityEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert record: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := insertRecordTx(ctx, tx, rec); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	if err := appendActivityTx(ctx, tx, activity); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert record: commit: %w", err)
	}

	s.notifier.Publish(Change{Table: TableRecords, ID: rec.ID, Op: ChangeInsert})
	for _, e := range activity {
		s.notifier.Publish(Change{Table: TableActivity, ID: e.ID, Op: ChangeInsert})
	}
	return nil
}

// UpdateRecord writes a partial set of columns to one record, plus the
// activity entries the pipeline collected, in one transaction.
func (s *Store) UpdateRecord(ctx context.Context, id string, fields record.Fields, updatedAt time.Time, activity []record.ActivityEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update record %s: begin tx: %w", id, err)
	}
	defer tx.Rollback()

	if err := updateRecordTx(ctx, tx, id, fields, updatedAt); err != nil {
		return fmt.Errorf("update record %s: %w", id, err)
	}
	if err := appendActivityTx(ctx, tx, activity); err != nil {
		return fmt.Errorf("update record %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update record %s: commit: %w", id, err)
	}

	s.notifier.Publish(Change{Table: TableRecords, ID: id, Op: ChangeUpdate})
	for _, e := range activity {
		s.notifier.Publish(Change{Table: TableActivity, ID: e.ID, Op: ChangeInsert})
	}
	return nil
}

// ApplyBatch writes every update in one transaction so a multi-record
// reorder is observed fully applied or not at all. All members share
// reorderedAt, making the batch read as a single atomic move.
//
// Positions are written in two passes inside the transaction: SQLite
// checks unique indexes per statement, so renumbering siblings directly
// could collide transiently (A moving onto B's position before B moves
// away). Pass one parks every member at a distinct out-of-band
// position; pass two writes the finals.
func (s *Store) ApplyBatch(ctx context.Context, updates []FieldUpdate, reorderedAt time.Time, activity []record.ActivityEntry) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply batch: begin tx: %w", err)
	}
	defer tx.Rollback()

	const parking = -1e12

	for i, u := range updates {
		if _, moves := u.Fields.Float(record.FieldPosition); !moves {
			continue
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE records SET position = ? WHERE id = ?`,
			parking-float64(i), u.ID,
		)
		if err != nil {
			return fmt.Errorf("apply batch: park %s: %w", u.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("apply batch: park %s: %w", u.ID, ErrNotFound)
		}
	}

	for _, u := range updates {
		fields := u.Fields.Clone()
		fields[record.FieldReorderedAt] = reorderedAt
		if err := updateRecordTx(ctx, tx, u.ID, fields, reorderedAt); err != nil {
			return fmt.Errorf("apply batch: %w", err)
		}
	}
	if err := appendActivityTx(ctx, tx, activity); err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply batch: commit: %w", err)
	}

	for _, u := range updates {
		s.notifier.Publish(Change{Table: TableRecords, ID: u.ID, Op: ChangeUpdate})
	}
	for _, e := range activity {
		s.notifier.Publish(Change{Table: TableActivity, ID: e.ID, Op: ChangeInsert})
	}
	return nil
}

func insertRecordTx(ctx context.Context, tx *sql.Tx, rec *record.Record) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO records
		(id, kind, scope_id, parent_id, position, position_finalized,
		 title, status, assignee_id, created_by_id, updated_by_id,
		 created_at, updated_at, reordered_at, discarded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		string(rec.Kind),
		rec.ScopeID,
		nullString(rec.ParentID),
		rec.Position,
		rec.PositionFinalized,
		rec.Title,
		string(rec.Status),
		nullString(rec.AssigneeID),
		rec.CreatedByID,
		rec.UpdatedByID,
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
		nullTime(rec.ReorderedAt),
		nullTime(rec.DiscardedAt),
	)
	return err
}

func updateRecordTx(ctx context.Context, tx *sql.Tx, id string, fields record.Fields, updatedAt time.Time) error {
	cols := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)

	// Deterministic column order keeps statements stable for logging.
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		isTime, ok := writableColumns[name]
		if !ok {
			return fmt.Errorf("column %q is not writable", name)
		}
		cols = append(cols, name+" = ?")
		val := fields[name]
		switch {
		case isTime:
			t, err := asTime(val)
			if err != nil {
				return fmt.Errorf("column %q: %w", name, err)
			}
			args = append(args, nullTime(t))
		case name == record.FieldParentID || name == record.FieldAssigneeID:
			// Empty string means "cleared"; store NULL so the parent
			// foreign key stays satisfiable.
			str, _ := val.(string)
			args = append(args, nullString(str))
		default:
			args = append(args, val)
		}
	}
	cols = append(cols, "updated_at = ?")
	args = append(args, formatTime(updatedAt))
	args = append(args, id)

	res, err := tx.ExecContext(ctx,
		"UPDATE records SET "+strings.Join(cols, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// GetRecord returns one record by id, discarded or not.
func (s *Store) GetRecord(ctx context.Context, id string) (*record.Record, error) {
	row := s.db.QueryRowContext(ctx, selectRecords+" WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, nil
}

// Siblings returns the non-discarded records sharing (scope, parent),
// ordered by position with id as the last-resort tiebreak. The result
// is the consistent snapshot renormalization works from.
func (s *Store) Siblings(ctx context.Context, scopeID, parentID string) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		selectRecords+`
		WHERE scope_id = ? AND ifnull(parent_id, '') = ? AND discarded_at IS NULL
		ORDER BY position ASC, id ASC`,
		scopeID, parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query siblings: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// AllInScope returns every non-discarded record in a scope, parents and
// children alike, ordered by (parent, position).
func (s *Store) AllInScope(ctx context.Context, scopeID string) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		selectRecords+`
		WHERE scope_id = ? AND discarded_at IS NULL
		ORDER BY ifnull(parent_id, '') ASC, position ASC, id ASC`,
		scopeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query scope: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

const selectRecords = `
	SELECT id, kind, scope_id, parent_id, position, position_finalized,
	       title, status, assignee_id, created_by_id, updated_by_id,
	       created_at, updated_at, reordered_at, discarded_at
	FROM records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*record.Record, error) {
	var (
		rec         record.Record
		kind        string
		status      string
		parentID    sql.NullString
		assigneeID  sql.NullString
		createdAt   string
		updatedAt   string
		reorderedAt sql.NullString
		discardedAt sql.NullString
	)
	err := row.Scan(
		&rec.ID, &kind, &rec.ScopeID, &parentID, &rec.Position,
		&rec.PositionFinalized, &rec.Title, &status, &assigneeID,
		&rec.CreatedByID, &rec.UpdatedByID, &createdAt, &updatedAt,
		&reorderedAt, &discardedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Kind = record.Kind(kind)
	rec.Status = record.Status(status)
	rec.ParentID = parentID.String
	rec.AssigneeID = assigneeID.String

	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}
	if rec.ReorderedAt, err = parseNullTime(reorderedAt); err != nil {
		return nil, fmt.Errorf("reordered_at: %w", err)
	}
	if rec.DiscardedAt, err = parseNullTime(discardedAt); err != nil {
		return nil, fmt.Errorf("discarded_at: %w", err)
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]record.Record, error) {
	var out []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	if out == nil {
		out = []record.Record{}
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func asTime(v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &t, nil
	case *time.Time:
		return t, nil
	}
	return nil, fmt.Errorf("expected time value, got %T", v)
}
