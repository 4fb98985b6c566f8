package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taskrail/internal/cache"
	"github.com/roach88/taskrail/internal/engine"
)

func writeConfig(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskrail.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "taskrail.db", cfg.Database)
	assert.Empty(t, cfg.PolicyDir)
	assert.Equal(t, cache.DefaultTTL, cfg.Cache.TTL.Duration)
	assert.Equal(t, engine.DefaultRetryAttempts, cfg.Retry.Attempts)
	assert.Equal(t, engine.DefaultRetryBackoff, cfg.Retry.Backoff.Duration)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database: /var/lib/taskrail/tasks.db
policy_dir: ./policy
cache:
  ttl: 30s
retry:
  attempts: 5
  backoff: 10ms
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/taskrail/tasks.db", cfg.Database)
	assert.Equal(t, "./policy", cfg.PolicyDir)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL.Duration)
	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Retry.Backoff.Duration)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "database: custom.db\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "custom.db", cfg.Database)
	assert.Equal(t, cache.DefaultTTL, cfg.Cache.TTL.Duration)
	assert.Equal(t, engine.DefaultRetryAttempts, cfg.Retry.Attempts)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "databse: typo.db\n"},
		{"bad duration", "cache:\n  ttl: soon\n"},
		{"negative duration", "retry:\n  backoff: -5ms\n"},
		{"duration not a string", "cache:\n  ttl: 30\n"},
		{"zero attempts", "retry:\n  attempts: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.src)
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open config")
}

func TestSessionUsesConfigFile(t *testing.T) {
	stubIdentity(t)
	db := filepath.Join(t.TempDir(), "tasks.db")
	path := writeConfig(t, "database: "+db+"\n")

	mustRunCLI(t, "--config", path, "--actor", "tech-1", "task", "add", "Brake inspection", "--scope", "job-1")

	out := mustRunCLI(t, "--config", path, "task", "list", "--scope", "job-1")
	assert.Contains(t, out, "Brake inspection")

	// The database landed where the config pointed.
	_, err := os.Stat(db)
	require.NoError(t, err)
}
