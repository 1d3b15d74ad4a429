package persistlog

import (
	"encoding/binary"

	"github.com/NB-T/derecho/pkg/hlc"
)

// EntrySize is the fixed size of an index entry descriptor, in storage and
// on the state transfer wire alike.
const EntrySize = 40

// Entry is one index record describing a single appended payload. Entries
// are immutable once written; only the [head, tail) window moves around them.
type Entry struct {
	Version    int64
	Time       hlc.HLC
	DataLength int64
	DataOffset int64
}

// AppendEntry appends the descriptor to dst in the fixed field order:
// dataLength, version, physical, logical, dataOffset, big-endian.
func AppendEntry(dst []byte, e Entry) []byte {
	var buf [EntrySize]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(e.DataLength))
	binary.BigEndian.PutUint64(buf[8:16], uint64(e.Version))
	binary.BigEndian.PutUint64(buf[16:24], uint64(e.Time.Physical))
	binary.BigEndian.PutUint64(buf[24:32], uint64(e.Time.Logical))
	binary.BigEndian.PutUint64(buf[32:40], uint64(e.DataOffset))
	return append(dst, buf[:]...)
}

// EncodeEntry renders the 40-byte descriptor.
func EncodeEntry(e Entry) []byte { return AppendEntry(nil, e) }

// DecodeEntry parses a descriptor. Returns false on short input.
func DecodeEntry(b []byte) (Entry, bool) {
	if len(b) < EntrySize {
		return Entry{}, false
	}
	return Entry{
		DataLength: int64(binary.BigEndian.Uint64(b[0:8])),
		Version:    int64(binary.BigEndian.Uint64(b[8:16])),
		Time: hlc.HLC{
			Physical: int64(binary.BigEndian.Uint64(b[16:24])),
			Logical:  int64(binary.BigEndian.Uint64(b[24:32])),
		},
		DataOffset: int64(binary.BigEndian.Uint64(b[32:40])),
	}, true
}
