package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskrail/internal/record"
	"github.com/roach88/taskrail/internal/store"
)

func TestFormatter_SuccessText(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Success("done"))
	assert.Equal(t, "done\n", buf.String())
}

func TestFormatter_SuccessJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(map[string]string{"id": "t1"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestFormatter_ErrorJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Error("permission_denied", "role technician may not assignUser", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "permission_denied", resp.Error.Code)
}

func TestFormatter_VerboseLogTargetsErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	f.VerboseLog("loaded %d tasks", 3)
	assert.Empty(t, out.String(), "verbose output must not corrupt the JSON stream")
	assert.Equal(t, "loaded 3 tasks\n", errOut.String())

	f.Verbose = false
	f.VerboseLog("dropped")
	assert.Equal(t, "loaded 3 tasks\n", errOut.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := WrapExitError(ExitCommandError, "open database", errors.New("locked"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Contains(t, wrapped.Error(), "locked")
}

func TestErrorCode_MapsTypedFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"permission", &record.PermissionError{Action: "assignUser", ActorID: "tech-1", Reason: "role"}, "permission_denied"},
		{"attribution", &record.AttributionError{Reason: "no authenticated actor"}, "attribution_missing"},
		{"batch", &record.BatchFailure{ScopeID: "job-1", Size: 2, Err: errors.New("boom")}, "batch_failed"},
		{"transient", &record.TransientError{Err: errors.New("timeout")}, "transient"},
		{"not found", store.ErrNotFound, "not_found"},
		{"generic", errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}
