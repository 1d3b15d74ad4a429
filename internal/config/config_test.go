package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Fsync != "interval" {
		t.Fatalf("default fsync mode")
	}
	if cfg.FsyncIntervalMs != 5 {
		t.Fatalf("default fsync interval")
	}
	if cfg.LockWaitMs != 10_000 {
		t.Fatalf("default lock wait")
	}
	if cfg.PayloadMaxBytes != 1<<20 {
		t.Fatalf("default payload max")
	}
	if cfg.Geometry != (GeometryConfig{}) {
		t.Fatalf("geometry should default to zero overrides")
	}
}

func writeConfig(t *testing.T, name string, data string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return file
}

func TestLoadJSON(t *testing.T) {
	file := writeConfig(t, "derecho.json",
		`{"dataDir":"/srv/derecho","fsync":"always","payloadMaxBytes":2048,"geometry":{"segmentBits":12}}`)
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/srv/derecho" {
		t.Fatalf("data dir: %q", cfg.DataDir)
	}
	if cfg.Fsync != "always" {
		t.Fatalf("fsync: %q", cfg.Fsync)
	}
	if cfg.PayloadMaxBytes != 2048 {
		t.Fatalf("payload max: %d", cfg.PayloadMaxBytes)
	}
	if cfg.Geometry.SegmentBits != 12 {
		t.Fatalf("segment bits: %d", cfg.Geometry.SegmentBits)
	}
	// untouched fields keep defaults
	if cfg.LockWaitMs != 10_000 {
		t.Fatalf("lock wait lost default: %d", cfg.LockWaitMs)
	}
}

func TestLoadTOML(t *testing.T) {
	file := writeConfig(t, "derecho.toml", `
dataDir = "/data/toml"
fsync = "never"
lockWaitMs = 250

[geometry]
indexSegments = 64
addressSpace = 131072
`)
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/data/toml" {
		t.Fatalf("data dir: %q", cfg.DataDir)
	}
	if cfg.Fsync != "never" {
		t.Fatalf("fsync: %q", cfg.Fsync)
	}
	if cfg.LockWaitMs != 250 {
		t.Fatalf("lock wait: %d", cfg.LockWaitMs)
	}
	if cfg.Geometry.IndexSegments != 64 || cfg.Geometry.AddressSpace != 131072 {
		t.Fatalf("geometry: %+v", cfg.Geometry)
	}
}

func TestLoadYAML(t *testing.T) {
	file := writeConfig(t, "derecho.yaml", `
dataDir: /data/yaml
fsyncIntervalMs: 20
geometry:
  segmentBits: 10
`)
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/data/yaml" {
		t.Fatalf("data dir: %q", cfg.DataDir)
	}
	if cfg.FsyncIntervalMs != 20 {
		t.Fatalf("fsync interval: %d", cfg.FsyncIntervalMs)
	}
	if cfg.Geometry.SegmentBits != 10 {
		t.Fatalf("segment bits: %d", cfg.Geometry.SegmentBits)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	file := writeConfig(t, "derecho.ini", "dataDir=/nope")
	if _, err := Load(file); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("DERECHO_DATA_DIR", "/env/dir")
	t.Setenv("DERECHO_FSYNC", "never")
	t.Setenv("DERECHO_LOCK_WAIT_MS", "42")
	t.Setenv("DERECHO_ADDRESS_SPACE", "4096")
	FromEnv(&cfg)
	if cfg.DataDir != "/env/dir" {
		t.Fatalf("env data dir")
	}
	if cfg.Fsync != "never" {
		t.Fatalf("env fsync")
	}
	if cfg.LockWaitMs != 42 {
		t.Fatalf("env lock wait")
	}
	if cfg.Geometry.AddressSpace != 4096 {
		t.Fatalf("env address space")
	}
}

func TestFromEnvIgnoresBadNumbers(t *testing.T) {
	cfg := Default()
	t.Setenv("DERECHO_LOCK_WAIT_MS", "not-a-number")
	FromEnv(&cfg)
	if cfg.LockWaitMs != 10_000 {
		t.Fatalf("bad number should keep default, got %d", cfg.LockWaitMs)
	}
}
