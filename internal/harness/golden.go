package harness

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// TraceEvent is one activity-log entry in the shape scenarios golden-
// compare. Change hashes are omitted: they are covered by pipeline
// tests and would make diffs unreadable.
type TraceEvent struct {
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	SubjectID  string          `json:"subject_id"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	RecordedAt string          `json:"recorded_at"`
}

// Trace reads the full activity log in deterministic order.
func (r *Run) Trace(t *testing.T) []TraceEvent {
	t.Helper()

	rows, err := r.Store.Query(context.Background(), `
		SELECT actor_id, action, subject_id, meta, recorded_at
		FROM activity_log
		ORDER BY recorded_at ASC, id ASC
	`)
	require.NoError(t, err)
	defer rows.Close()

	var trace []TraceEvent
	for rows.Next() {
		var (
			e    TraceEvent
			meta sql.NullString
		)
		require.NoError(t, rows.Scan(&e.Actor, &e.Action, &e.SubjectID, &meta, &e.RecordedAt))
		if meta.Valid {
			e.Meta = json.RawMessage(meta.String)
		}
		trace = append(trace, e)
	}
	require.NoError(t, rows.Err())
	return trace
}

// AssertGoldenTrace compares the activity trace against the scenario's
// golden file. Regenerate fixtures with: go test ./internal/harness
// -update
func (r *Run) AssertGoldenTrace(t *testing.T) {
	t.Helper()

	data, err := json.MarshalIndent(r.Trace(t), "", "  ")
	require.NoError(t, err)
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, r.Scenario.Name, data)
}
