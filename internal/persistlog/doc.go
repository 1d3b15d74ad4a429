// Package persistlog implements the versioned, append-only log engine at
// the core of the persistence layer.
//
// # Overview
//
// A Log maintains a live window [head, tail) of fixed-size index entries
// whose payload bytes live in a storage Backend. Appends carry a caller
// assigned, strictly increasing version plus a hybrid logical clock
// timestamp; lookups binary-search the window by either key. Head advances
// on trim, tail advances on append and retreats on truncate, and a
// self-describing tail stream brings lagging replicas up to date.
//
// The upstream replication layer decides when appends happen and which
// version they get; the Backend owns raw placement and durability. The
// engine holds only integer indices between the two.
//
// # Locking
//
// Two reader-writer locks guard head and tail. Every operation that takes
// both acquires head first; the guard types in lock.go make the inverse
// order inexpressible. Acquisition waits are bounded by Options.LockWait
// and fail with ErrLockTimeout rather than spinning forever.
//
// API surface (internal)
//
//	l, _ := persistlog.Open("agent.obj", backend, persistlog.Options{})
//	_ = l.Append([]byte("state"), 1, clock.Now())
//	idx, _ := l.VersionIndex(1)
//	data, _ := l.Data(idx)
//
//	// catch a lagging replica up from its latest version
//	var buf bytes.Buffer
//	_ = l.PostTail(laggingVer, &buf)
//	applied, senderLatest, _ := replica.ApplyTail(&buf)
//
//	// retention and rollback
//	_ = l.Trim(compactBelow)
//	_ = l.Truncate(lastStableVer)
package persistlog
