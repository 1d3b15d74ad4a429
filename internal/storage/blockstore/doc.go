// Package blockstore persists log entries and payloads in Pebble, backing
// the persistlog engine.
//
// # Overview
//
// Every log gets a compact uint32 id on first Load; the registry maps names
// to ids so entry keys stay short. Keys are lexicographically ordered for
// efficient range scans:
//   - log/name/{name}                 (registry: name -> id_be4)
//   - log/nextid                      (id allocator)
//   - log/{id_be4}/meta               (window bounds, latest version, flags)
//   - log/{id_be4}/entry/{slot_be8}   (fixed-size descriptors)
//   - log/{id_be4}/data/{slot_be8}    (payload | crc32c trailer)
//
// Entries and payloads are addressed by slot, the logical index wrapped
// into the geometry's address space, so a trimmed log reuses its keys
// instead of growing without bound.
//
// # Write ordering and durability
//
// All writes funnel through one worker goroutine. Append and
// UpdateMetadata block until their batch commits, so the engine observes
// storage in submission order. When the database syncs on commit, a
// committed version is immediately the last written one; under relaxed
// fsync it stays pending until a WAL barrier, raised periodically by the
// worker or explicitly by Sync. LastWrittenVersion therefore lags the
// accepted version exactly as far as the fsync policy allows.
//
// API surface (internal)
//
//	store, _ := blockstore.Open(db, blockstore.Options{})
//	defer store.Close()
//
//	meta, _ := store.Load("agent.obj")  // registers on first use
//	l, _ := persistlog.Open("agent.obj", store, persistlog.Options{})
//
//	// durability barrier, e.g. before acking a checkpoint
//	ver, _ := store.Sync(meta.ID)
//	_ = ver
package blockstore
