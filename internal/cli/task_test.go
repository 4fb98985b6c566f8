package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskrail/internal/testutil"
)

// seqGenerator replaces UUIDv7 ids with a predictable sequence so
// golden files stay stable.
type seqGenerator struct{ n int }

func (g *seqGenerator) Generate() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

// stubIdentity pins ids and the clock for the duration of one test.
func stubIdentity(t *testing.T) {
	t.Helper()
	prevIDs, prevClock := sessionIDs, sessionClock
	sessionIDs = &seqGenerator{}
	sessionClock = func() time.Time { return testutil.Epoch }
	t.Cleanup(func() {
		sessionIDs, sessionClock = prevIDs, prevClock
	})
}

func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	outBuf, errBuf := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := runCLI(t, args...)
	require.NoError(t, err, "stderr: %s", stderr)
	return stdout
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func tempDB(t *testing.T) string {
	return filepath.Join(t.TempDir(), "tasks.db")
}

func TestTaskAdd_CreatesAndReportsPosition(t *testing.T) {
	stubIdentity(t)
	db := tempDB(t)

	out := mustRunCLI(t, "--db", db, "--actor", "tech-1", "task", "add", "Brake inspection", "--scope", "job-1")
	assert.Equal(t, "created id-1 at position 1\n", out)

	out = mustRunCLI(t, "--db", db, "--actor", "tech-1", "task", "add", "Rotate tires", "--scope", "job-1")
	assert.Equal(t, "created id-3 at position 2\n", out)
}

func TestTaskAdd_JSONEnvelope(t *testing.T) {
	stubIdentity(t)
	db := tempDB(t)

	out := mustRunCLI(t, "--db", db, "--format", "json", "--actor", "tech-1",
		"task", "add", "Brake inspection", "--scope", "job-1")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "id-1", data["id"])
	assert.Equal(t, "job-1", data["scope_id"])
	assert.Equal(t, "open", data["status"])
	assert.Equal(t, "tech-1", data["created_by_id"])
}

func TestTaskAdd_NoActorRejected(t *testing.T) {
	stubIdentity(t)
	db := tempDB(t)

	stdout, _, err := runCLI(t, "--db", db, "task", "add", "Orphan", "--scope", "job-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "attribution_missing")

	// The rejected create left nothing behind.
	list := mustRunCLI(t, "--db", db, "task", "list", "--scope", "job-1")
	assert.Empty(t, list)
}

func TestTaskLifecycle_Golden(t *testing.T) {
	stubIdentity(t)
	db := tempDB(t)
	g := newGoldie(t)
	actor := []string{"--db", db, "--actor", "tech-1"}

	mustRunCLI(t, append(actor, "task", "add", "Brake inspection", "--scope", "job-1")...)
	mustRunCLI(t, append(actor, "task", "add", "Rotate tires", "--scope", "job-1")...)
	mustRunCLI(t, append(actor, "task", "add", "Replace wipers", "--scope", "job-1")...)

	out := mustRunCLI(t, "--db", db, "task", "list", "--scope", "job-1")
	g.Assert(t, "task_list", []byte(out))

	// Replace wipers lands between Brake inspection and Rotate tires.
	mustRunCLI(t, append(actor, "task", "move", "id-5", "--after", "id-1", "--before", "id-3")...)
	out = mustRunCLI(t, "--db", db, "task", "list", "--scope", "job-1")
	g.Assert(t, "task_list_after_move", []byte(out))

	// Discarding the head renumbers the survivors densely.
	mustRunCLI(t, append(actor, "task", "discard", "id-1")...)
	out = mustRunCLI(t, "--db", db, "task", "list", "--scope", "job-1")
	g.Assert(t, "task_list_after_discard", []byte(out))

	out = mustRunCLI(t, "--db", db, "audit", "id-1")
	g.Assert(t, "audit_trail", []byte(out))
}

func TestTaskStatus_UpdatesWorkflowState(t *testing.T) {
	stubIdentity(t)
	db := tempDB(t)

	mustRunCLI(t, "--db", db, "--actor", "tech-1", "task", "add", "Brake inspection", "--scope", "job-1")
	out := mustRunCLI(t, "--db", db, "--actor", "tech-1", "task", "status", "id-1", "done")
	assert.Equal(t, "id-1 is now done\n", out)

	list := mustRunCLI(t, "--db", db, "task", "list", "--scope", "job-1")
	assert.Contains(t, list, "done")
}

func TestTaskAssign_AdminOnly(t *testing.T) {
	stubIdentity(t)
	db := tempDB(t)

	mustRunCLI(t, "--db", db, "--actor", "tech-1", "task", "add", "Brake inspection", "--scope", "job-1")

	stdout, _, err := runCLI(t, "--db", db, "--actor", "tech-1", "--role", "technician",
		"task", "assign", "id-1", "--to", "tech-2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "permission_denied")

	out := mustRunCLI(t, "--db", db, "--actor", "admin-1", "--role", "admin",
		"task", "assign", "id-1", "--to", "tech-2")
	assert.Equal(t, "assigned id-1 to tech-2\n", out)
}

func TestTaskMove_UnknownRecord(t *testing.T) {
	stubIdentity(t)
	db := tempDB(t)

	stdout, _, err := runCLI(t, "--db", db, "--actor", "tech-1", "task", "move", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "not_found")
}

func TestTaskList_NestedParent(t *testing.T) {
	stubIdentity(t)
	db := tempDB(t)
	actor := []string{"--db", db, "--actor", "tech-1"}

	mustRunCLI(t, append(actor, "task", "add", "Brake inspection", "--scope", "job-1")...)
	mustRunCLI(t, append(actor, "task", "add", "Check pads", "--scope", "job-1", "--parent", "id-1")...)

	top := mustRunCLI(t, "--db", db, "task", "list", "--scope", "job-1")
	assert.Contains(t, top, "Brake inspection")
	assert.NotContains(t, top, "Check pads")

	nested := mustRunCLI(t, "--db", db, "task", "list", "--scope", "job-1", "--parent", "id-1")
	assert.Contains(t, nested, "Check pads")
}

func TestRoot_RejectsUnknownFormat(t *testing.T) {
	_, _, err := runCLI(t, "--format", "yaml", "task", "list", "--scope", "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRoot_RejectsUnknownRole(t *testing.T) {
	_, _, err := runCLI(t, "--role", "owner", "task", "list", "--scope", "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid role")
}
