package library

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix is the prefix for environment overrides, e.g.
// LIBRARY_DATABASE_PATH or LIBRARY_RECOMMEND__MAX_HOPS ("__" nests a level).
const envPrefix = "LIBRARY_"

// Config holds everything the application needs at startup. Values come from
// defaults, then an optional YAML file, then LIBRARY_* environment variables,
// each layer overriding the previous one.
type Config struct {
	// DatabasePath locates the SQLite catalog database.
	DatabasePath string `koanf:"database_path" validate:"required"`
	// SnapshotPath locates the JSON snapshot of queues, graph and counters.
	SnapshotPath string `koanf:"snapshot_path" validate:"required"`
	// LogLevel is the minimum zerolog level.
	LogLevel string `koanf:"log_level" validate:"oneof=trace debug info warn error"`
	// Recommend tunes the recommendation engine.
	Recommend RecommendConfig `koanf:"recommend"`
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "library.db",
		SnapshotPath: "library_state.json",
		LogLevel:     "info",
		Recommend:    DefaultRecommendConfig(),
	}
}

// LoadConfig assembles the configuration. path may be empty, in which case
// only defaults and environment variables apply; a named file that does not
// exist is an error.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// envToKey maps LIBRARY_RECOMMEND__MAX_HOPS to recommend.max_hops. A double
// underscore separates nesting levels so single underscores survive as part
// of key names.
func envToKey(envVar string) string {
	key := strings.ToLower(strings.TrimPrefix(envVar, envPrefix))
	return strings.ReplaceAll(key, "__", ".")
}
