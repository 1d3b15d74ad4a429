package persistlog

// Backend is the storage service a Log delegates durable reads and writes
// to. Implementations may be internally asynchronous; every method blocks
// until the operation completes. Entries and payloads are addressed by
// logical index, except Append's slot, which the engine pre-wraps into the
// address space. Raw placement stays the backend's business.
type Backend interface {
	// Load recovers the metadata for a named log, assigning an id and
	// initializing a fresh record (head 0, tail 0, version -1, in use) when
	// none exists or the stored one was zeroed out.
	Load(name string) (Meta, error)

	// ReadEntry fetches the index descriptor at a logical index.
	ReadEntry(id uint32, index int64) (Entry, error)

	// ReadData fetches the payload bytes at a logical index.
	ReadData(id uint32, index int64) ([]byte, error)

	// Append durably writes a payload, its descriptor at the given slot, and
	// the updated metadata as one operation.
	Append(id uint32, data []byte, ent Entry, slot int64, meta Meta) error

	// UpdateMetadata durably persists metadata only.
	UpdateMetadata(id uint32, meta Meta) error

	// LastWrittenVersion reports the highest version known durably flushed
	// for the log, which can lag the latest accepted version under a relaxed
	// fsync policy.
	LastWrittenVersion(id uint32) int64

	// Sync forces a durability barrier and reports the resulting last
	// written version.
	Sync(id uint32) (int64, error)

	// Geometry reports the index table layout appends are validated against.
	Geometry() Geometry
}
