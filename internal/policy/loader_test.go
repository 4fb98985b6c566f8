package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskrail/internal/record"
)

func compileString(t *testing.T, src string) (*Policy, error) {
	t.Helper()
	ctx := cuecontext.New()
	value := ctx.CompileString(src)
	require.NoError(t, value.Err())
	return Compile(value)
}

func TestCompile_FullPolicy(t *testing.T) {
	p, err := compileString(t, `
policy: {
	create: { roles: ["technician", "admin"] }
	edit:   { roles: ["technician", "admin"] }
	delete: {
		roles: ["admin"]
		creatorWindowMinutes: 15
	}
}
`)
	require.NoError(t, err)

	rule, ok := p.Rule(ActionDelete)
	require.True(t, ok)
	assert.Equal(t, []record.Role{record.RoleAdmin}, rule.Roles)
	assert.Equal(t, 15*time.Minute, rule.CreatorWindow)

	_, ok = p.Rule(ActionMove)
	assert.False(t, ok, "unlisted actions have no rule")
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing policy struct", `other: {}`},
		{"unknown action", `policy: { fly: { roles: ["admin"] } }`},
		{"unknown role", `policy: { edit: { roles: ["owner"] } }`},
		{"roles not a list", `policy: { edit: { roles: "admin" } }`},
		{"negative window", `policy: { delete: { creatorWindowMinutes: -1 } }`},
		{"empty rule", `policy: { edit: {} }`},
		{"empty policy", `policy: {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			assert.Error(t, err)
		})
	}
}

func TestLoad_FromDirectory(t *testing.T) {
	dir := t.TempDir()
	src := `
policy: {
	delete: {
		roles: ["admin"]
		creatorWindowMinutes: 30
	}
	assignUser: { roles: ["admin"] }
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy.cue"), []byte(src), 0o644))

	p, err := Load(dir)
	require.NoError(t, err)

	rule, ok := p.Rule(ActionDelete)
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, rule.CreatorWindow)
}

func TestLoad_DirectoryErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	empty := t.TempDir()
	_, err = Load(empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE policy files")
}
