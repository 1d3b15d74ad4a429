// Package hlc provides a hybrid logical clock: a totally ordered timestamp
// combining wall-clock microseconds with a logical counter.
//
// # Format
//
// An HLC is the pair (Physical, Logical). Physical is microseconds since the
// Unix epoch; Logical disambiguates events within the same microsecond.
// Comparison is lexicographic, so timestamps order totally even when the
// wall clock stalls or regresses.
//
// # Monotonicity
//
// Clock guarantees per-process strict monotonicity:
//   - If the system clock regresses or repeats a reading, the logical
//     counter advances instead of going backwards.
//   - Observe merges a remote timestamp on message receipt, returning a
//     local timestamp greater than both clocks.
//
// Usage
//
//	c := hlc.NewClock()
//	ts := c.Now()
//	merged := c.Observe(remoteTs)
//	_ = ts.Before(merged) // true
package hlc
