package persistlog

import "encoding/binary"

// MetaSize is the size of the durable metadata record.
const MetaSize = 32

const metaFlagInUse = 1 << 0

// Meta is the metadata of a single log: identity, the live window bounds,
// and the latest appended version. The in-memory copy owned by the engine is
// authoritative; the backend mirrors it durably.
type Meta struct {
	ID      uint32
	Head    int64
	Tail    int64
	Version int64 // latest appended version, -1 when none
	InUse   bool
}

// EncodeMeta renders the durable form: head, tail, version, flags, all
// big-endian. The id is not part of the record; storage keys carry it.
func EncodeMeta(m Meta) []byte {
	out := make([]byte, MetaSize)
	binary.BigEndian.PutUint64(out[0:8], uint64(m.Head))
	binary.BigEndian.PutUint64(out[8:16], uint64(m.Tail))
	binary.BigEndian.PutUint64(out[16:24], uint64(m.Version))
	var flags uint64
	if m.InUse {
		flags |= metaFlagInUse
	}
	binary.BigEndian.PutUint64(out[24:32], flags)
	return out
}

// DecodeMeta parses the durable form. Returns false on short input.
func DecodeMeta(b []byte) (Meta, bool) {
	if len(b) < MetaSize {
		return Meta{}, false
	}
	return Meta{
		Head:    int64(binary.BigEndian.Uint64(b[0:8])),
		Tail:    int64(binary.BigEndian.Uint64(b[8:16])),
		Version: int64(binary.BigEndian.Uint64(b[16:24])),
		InUse:   binary.BigEndian.Uint64(b[24:32])&metaFlagInUse != 0,
	}, true
}
