package persistlog

import "errors"

var (
	// ErrOutOfOrderVersion is returned by Append and AdvanceVersion when the
	// given version is not greater than the latest appended version. A caller
	// bug; never retried internally.
	ErrOutOfOrderVersion = errors.New("version out of order")

	// ErrLogFull is returned by Append when the live span would exceed the
	// backend's index table capacity. Signals the caller to trim.
	ErrLogFull = errors.New("log capacity exceeded")

	// ErrVersionNotFound is returned by exact version lookups that miss.
	ErrVersionNotFound = errors.New("version not found")

	// ErrTimestampNotFound is returned by exact timestamp lookups that miss.
	ErrTimestampNotFound = errors.New("timestamp not found")

	// ErrLockTimeout is returned when a head or tail lock cannot be acquired
	// within the configured wait. Fatal: a holder is stuck, state is suspect.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrIndexOutOfRange is returned by reads addressing an index outside the
	// live window.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrPayloadTooLarge is returned by Append when the payload exceeds
	// Options.PayloadMax.
	ErrPayloadTooLarge = errors.New("payload too large")
)
