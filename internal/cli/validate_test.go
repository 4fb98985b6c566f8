package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.cue"), []byte(src), 0o644))
	return dir
}

const validPolicy = `
policy: {
	create: { roles: ["technician", "admin"] }
	move:   { roles: ["technician", "admin"] }
	delete: {
		roles: ["admin"]
		creatorWindowMinutes: 15
	}
}
`

func TestPolicyValidate_Valid(t *testing.T) {
	dir := writePolicy(t, validPolicy)

	out := mustRunCLI(t, "policy", "validate", dir)
	assert.Contains(t, out, "✓ policy valid (3 actions)")
}

func TestPolicyValidate_ValidJSON(t *testing.T) {
	dir := writePolicy(t, validPolicy)

	out := mustRunCLI(t, "--format", "json", "policy", "validate", dir)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["valid"])
	assert.Len(t, data["actions"], 3)
}

func TestPolicyValidate_UnknownAction(t *testing.T) {
	dir := writePolicy(t, `policy: { fly: { roles: ["admin"] } }`)

	stdout, _, err := runCLI(t, "policy", "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ policy invalid")
	assert.Contains(t, stdout, "fly")
}

func TestPolicyValidate_UnknownActionJSON(t *testing.T) {
	dir := writePolicy(t, `policy: { edit: { roles: ["owner"] } }`)

	stdout, _, err := runCLI(t, "--format", "json", "policy", "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_policy", resp.Error.Code)
}

func TestPolicyValidate_EmptyDirectory(t *testing.T) {
	stdout, _, err := runCLI(t, "policy", "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "no CUE policy files found")
}

func TestPolicyValidate_MissingDirectory(t *testing.T) {
	stdout, _, err := runCLI(t, "policy", "validate", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "not found")
}

func TestPolicyValidate_SessionRejectsInvalidPolicy(t *testing.T) {
	stubIdentity(t)
	dir := writePolicy(t, `policy: { fly: { roles: ["admin"] } }`)
	cfgPath := writeConfig(t, "database: "+filepath.Join(t.TempDir(), "tasks.db")+"\npolicy_dir: "+dir+"\n")

	_, _, err := runCLI(t, "--config", cfgPath, "--actor", "tech-1", "task", "add", "Brakes", "--scope", "job-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "load policy")
}
