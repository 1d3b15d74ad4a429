// Package logcmd provides the `derecho log` command group.
//
// The commands operate directly on a local data directory; there is no
// server to talk to. They are primarily intended for developers and
// operators inspecting or repairing a node's logs.
//
// # Data directory configuration
//
// The data directory is resolved in order from --data-dir, the
// DERECHO_DATA_DIR environment variable, the config file named by
// --config or DERECHO_CONFIG, and finally the OS-specific default.
//
// Usage
//
//	derecho log append --name agent.obj --data '{"state":1}' --version 1
//	derecho log append --name agent.obj --data-file snapshot.bin
//
//	derecho log read --name agent.obj --version 3
//	derecho log read --name agent.obj --at 1726833600000000
//	derecho log read --name agent.obj --index 0 --raw > payload.bin
//
//	derecho log stat --name agent.obj
//	derecho log entries --name agent.obj --limit 10
//	derecho log list
//
//	# retention and rollback
//	derecho log trim --name agent.obj --version 100
//	derecho log trim --name agent.obj --at 1726833600000000
//	derecho log truncate --name agent.obj --version 250
//	derecho log zeroout --name agent.obj --confirm
//
//	# version bookkeeping without a payload
//	derecho log advance --name agent.obj --version 300
//
//	# file-based state transfer between nodes
//	derecho log export --name agent.obj --since 100 --out tail.bin
//	derecho log import --name agent.obj --in tail.bin
//
// Notes
//
//   - read resolves --version and --at to the newest entry at or below
//     the given key, matching how replicas serve versioned reads.
//   - export writes everything after --since, so a receiver passes its
//     own latest version; import skips entries it already has.
//   - zeroout erases the whole log and requires --confirm.
package logcmd
