package blockstore

import "errors"

var (
	// ErrCorruptRecord reports a stored record that failed size or checksum
	// validation.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrUnknownLog reports an id or name with no registry entry.
	ErrUnknownLog = errors.New("unknown log")

	// ErrStoreClosed reports an operation submitted after Close.
	ErrStoreClosed = errors.New("store closed")
)
