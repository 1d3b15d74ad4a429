package blockstore

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - log/name/{name}          -> id_be4
// - log/nextid               -> id_be4
// - log/{id_be4}/meta
// - log/{id_be4}/entry/{slot_be8}
// - log/{id_be4}/data/{slot_be8}

var (
	logPrefix  = []byte("log/")
	namePrefix = []byte("log/name/")
	nextIDKey  = []byte("log/nextid")
	metaSuffix = []byte("/meta")
	entrySeg   = []byte("/entry/")
	dataSeg    = []byte("/data/")
)

func appendBE4(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyLogName builds the registry key mapping a log name to its id.
func KeyLogName(name string) []byte {
	k := make([]byte, 0, len(namePrefix)+len(name))
	k = append(k, namePrefix...)
	k = append(k, name...)
	return k
}

// KeyNextID builds the key holding the next unassigned log id.
func KeyNextID() []byte {
	return append([]byte(nil), nextIDKey...)
}

// KeyLogMeta builds the metadata key for a log id.
func KeyLogMeta(id uint32) []byte {
	k := make([]byte, 0, len(logPrefix)+4+len(metaSuffix))
	k = append(k, logPrefix...)
	k = appendBE4(k, id)
	k = append(k, metaSuffix...)
	return k
}

// KeyLogEntry builds the entry descriptor key with a big-endian slot for
// proper ordering.
func KeyLogEntry(id uint32, slot uint64) []byte {
	k := make([]byte, 0, len(logPrefix)+4+len(entrySeg)+8)
	k = append(k, logPrefix...)
	k = appendBE4(k, id)
	k = append(k, entrySeg...)
	k = appendBE8(k, slot)
	return k
}

// KeyLogData builds the payload key, colocated with the entry by slot.
func KeyLogData(id uint32, slot uint64) []byte {
	k := make([]byte, 0, len(logPrefix)+4+len(dataSeg)+8)
	k = append(k, logPrefix...)
	k = appendBE4(k, id)
	k = append(k, dataSeg...)
	k = appendBE8(k, slot)
	return k
}
