package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/taskrail/internal/cache"
	"github.com/roach88/taskrail/internal/engine"
)

// Config is the yaml configuration file. Every field has a default, so
// the file itself is optional.
//
//	database: tasks.db
//	policy_dir: ./policy
//	cache:
//	  ttl: 30s
//	retry:
//	  attempts: 3
//	  backoff: 50ms
type Config struct {
	// Database is the path to the SQLite file standing in for the
	// remote store.
	Database string `yaml:"database"`

	// PolicyDir holds CUE policy files. Empty means the built-in
	// default policy.
	PolicyDir string `yaml:"policy_dir"`

	Cache struct {
		TTL Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Retry struct {
		Attempts int      `yaml:"attempts"`
		Backoff  Duration `yaml:"backoff"`
	} `yaml:"retry"`
}

// Duration wraps time.Duration so yaml values read as "50ms" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q must not be negative", raw)
	}
	d.Duration = parsed
	return nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{Database: "taskrail.db"}
	cfg.Cache.TTL = Duration{cache.DefaultTTL}
	cfg.Retry.Attempts = engine.DefaultRetryAttempts
	cfg.Retry.Backoff = Duration{engine.DefaultRetryBackoff}
	return cfg
}

// LoadConfig reads a yaml config file, layering it over the defaults.
// An empty path returns the defaults unchanged. Unknown keys are
// rejected so a typo fails loudly instead of silently using a default.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Retry.Attempts < 1 {
		return nil, fmt.Errorf("config %s: retry.attempts must be at least 1", path)
	}
	if cfg.Cache.TTL.Duration <= 0 {
		return nil, fmt.Errorf("config %s: cache.ttl must be positive", path)
	}
	return cfg, nil
}
