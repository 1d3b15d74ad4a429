package config

import (
	"os"
	"strconv"
)

// FromEnv overlays DERECHO_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("DERECHO_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DERECHO_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("DERECHO_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("DERECHO_LOCK_WAIT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LockWaitMs = n
		}
	}
	if v := os.Getenv("DERECHO_PAYLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PayloadMaxBytes = n
		}
	}
	if v := os.Getenv("DERECHO_SEGMENT_BITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Geometry.SegmentBits = n
		}
	}
	if v := os.Getenv("DERECHO_INDEX_SEGMENTS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Geometry.IndexSegments = n
		}
	}
	if v := os.Getenv("DERECHO_ADDRESS_SPACE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Geometry.AddressSpace = n
		}
	}
}
