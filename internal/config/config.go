package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir         string         `json:"dataDir" toml:"dataDir" yaml:"dataDir"`
	Fsync           string         `json:"fsync" toml:"fsync" yaml:"fsync"`
	FsyncIntervalMs int            `json:"fsyncIntervalMs" toml:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	LockWaitMs      int            `json:"lockWaitMs" toml:"lockWaitMs" yaml:"lockWaitMs"`
	PayloadMaxBytes int            `json:"payloadMaxBytes" toml:"payloadMaxBytes" yaml:"payloadMaxBytes"`
	Geometry        GeometryConfig `json:"geometry" toml:"geometry" yaml:"geometry"`
}

// GeometryConfig overrides the index table layout. Zero fields keep the
// storage defaults.
type GeometryConfig struct {
	SegmentBits   int   `json:"segmentBits" toml:"segmentBits" yaml:"segmentBits"`
	IndexSegments int64 `json:"indexSegments" toml:"indexSegments" yaml:"indexSegments"`
	AddressSpace  int64 `json:"addressSpace" toml:"addressSpace" yaml:"addressSpace"`
}

// Default returns built-in defaults. DataDir stays empty so callers can
// fall back to DefaultDataDir after flags and env are applied.
func Default() Config {
	return Config{
		Fsync:           "interval",
		FsyncIntervalMs: 5,
		LockWaitMs:      10_000,
		PayloadMaxBytes: 1 << 20,
	}
}

// Load reads configuration from a JSON, TOML, or YAML file (by extension).
// If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch ext := filepath.Ext(path); ext {
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}
	return cfg, nil
}
