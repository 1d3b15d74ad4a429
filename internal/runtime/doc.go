// Package runtime wires storage and the log engine into a single-node
// instance. It exposes Open/Close, basic health checks, and a per-name
// engine registry so each log has exactly one engine per process.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways})
//	defer rt.Close()
//	// Health
//	_ = rt.CheckHealth(context.Background())
//	// Open a log and append
//	l, _ := rt.OpenLog("agent.obj")
//	_ = l.Append([]byte("hello"), 1, clock.Now())
package runtime
