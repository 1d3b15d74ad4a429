// Package log provides the structured logging facade used across the
// codebase.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Internally it is backed by the standard
// library's slog via a custom handler that feeds a formatter/output pipeline,
// so output stays consistent whether code logs through this facade or through
// a redirected standard library logger.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	)
//	l = l.WithComponent("persistlog")
//	l.Info("log opened", log.Str("name", "agent.obj"), log.Int64("entries", 12))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config holding a level name
// and a format ("text" or "json"). The CLI maps its --log-level and
// --log-format flags straight onto it.
//
// # Interop
//
// RedirectStdLog routes standard library log output, such as Pebble's event
// listener messages, through a Logger at info level.
package log
