package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskrail/internal/record"
	"github.com/roach88/taskrail/internal/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testTask(id, scope string, pos float64) *record.Record {
	return &record.Record{
		ID:                id,
		Kind:              record.KindTask,
		ScopeID:           scope,
		Position:          pos,
		PositionFinalized: true,
		Title:             "task " + id,
		Status:            record.StatusOpen,
		CreatedByID:       testutil.Tech.ID,
		UpdatedByID:       testutil.Tech.ID,
		CreatedAt:         testutil.Epoch,
		UpdatedAt:         testutil.Epoch,
	}
}

func mustInsert(t *testing.T, s *Store, recs ...*record.Record) {
	t.Helper()
	for _, r := range recs {
		require.NoError(t, s.InsertRecord(context.Background(), r, nil))
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	s1, err := Open(path)
	require.NoError(t, err)
	mustInsert(t, s1, testTask("t1", "job-1", 1))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	rec, err := s2.GetRecord(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "task t1", rec.Title)

	var version int
	require.NoError(t, s2.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestSiblingPositionUniqueness_Enforced(t *testing.T) {
	s := openTestStore(t)
	mustInsert(t, s, testTask("t1", "job-1", 1))

	err := s.InsertRecord(context.Background(), testTask("t2", "job-1", 1), nil)
	assert.Error(t, err, "duplicate position among non-discarded siblings must be rejected")
}

func TestSiblingPositionUniqueness_DiscardedExcluded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, testTask("t1", "job-1", 1))

	now := testutil.Epoch.Add(time.Minute)
	require.NoError(t, s.UpdateRecord(ctx, "t1", record.Fields{
		record.FieldDiscardedAt: now,
	}, now, nil))

	// A new record may reuse the discarded record's position.
	assert.NoError(t, s.InsertRecord(ctx, testTask("t2", "job-1", 1), nil))
}
