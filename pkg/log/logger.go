package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

// Logger is the structured logging interface used across the codebase.
// Implementations are safe for concurrent use.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// With returns a logger that attaches the given fields to every entry.
	With(fields ...Field) Logger

	// WithComponent tags entries with a component name.
	WithComponent(component string) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// loggerCore holds state shared between a logger and its With() children,
// so SetLevel on any of them applies to all.
type loggerCore struct {
	level     atomic.Int32
	formatter Formatter
	outputs   []Output
}

// BaseLogger implements Logger on top of log/slog.
type BaseLogger struct {
	core *loggerCore
	sl   *slog.Logger
}

// LoggerOption configures a logger at construction time.
type LoggerOption func(*loggerCore)

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(c *loggerCore) { c.level.Store(int32(level)) }
}

// WithFormatter sets the entry formatter.
func WithFormatter(formatter Formatter) LoggerOption {
	return func(c *loggerCore) { c.formatter = formatter }
}

// WithOutput adds an output. May be given more than once.
func WithOutput(output Output) LoggerOption {
	return func(c *loggerCore) { c.outputs = append(c.outputs, output) }
}

// NewLogger creates a logger. Defaults: info level, text format, stderr.
func NewLogger(options ...LoggerOption) Logger {
	core := &loggerCore{formatter: &TextFormatter{}}
	core.level.Store(int32(InfoLevel))
	for _, option := range options {
		option(core)
	}
	if len(core.outputs) == 0 {
		core.outputs = append(core.outputs, NewConsoleOutput())
	}
	return &BaseLogger{
		core: core,
		sl:   slog.New(newBridgeHandler(core)),
	}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return NewLogger(WithLevel(FatalLevel+1), WithOutput(nopOutput{}))
}

type nopOutput struct{}

func (nopOutput) Write(*Entry, []byte) error { return nil }
func (nopOutput) Close() error               { return nil }

func (l *BaseLogger) log(level Level, msg string, fields []Field) {
	if level < l.GetLevel() {
		return
	}
	l.sl.LogAttrs(context.Background(), toSlogLevel(level), msg, attrsFromFields(fields)...)
}

// Debug logs at debug level.
func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }

// Info logs at info level.
func (l *BaseLogger) Info(msg string, fields ...Field) { l.log(InfoLevel, msg, fields) }

// Warn logs at warn level.
func (l *BaseLogger) Warn(msg string, fields ...Field) { l.log(WarnLevel, msg, fields) }

// Error logs at error level.
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

// Fatal logs at fatal level and exits the process.
func (l *BaseLogger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, fields)
	osExit(1)
}

// osExit is swapped out by tests.
var osExit = os.Exit

// With returns a child logger carrying the given fields.
func (l *BaseLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	return &BaseLogger{
		core: l.core,
		sl:   l.sl.With(attrsAsAny(attrsFromFields(fields))...),
	}
}

// WithComponent returns a child logger tagged with a component name.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

// SetLevel sets the minimum level for this logger and its With() children.
func (l *BaseLogger) SetLevel(level Level) { l.core.level.Store(int32(level)) }

// GetLevel returns the current minimum level.
func (l *BaseLogger) GetLevel() Level { return Level(l.core.level.Load()) }

// Config is the user-facing logging configuration.
type Config struct {
	// Level is one of debug, info, warn, error, fatal.
	Level string `json:"level" toml:"level" yaml:"level"`
	// Format is "text" or "json".
	Format string `json:"format" toml:"format" yaml:"format"`
}

// ApplyConfig builds a logger from a Config. Empty fields keep defaults.
func ApplyConfig(cfg Config) (Logger, error) {
	options := []LoggerOption{}
	if cfg.Level != "" {
		level, err := ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		options = append(options, WithLevel(level))
	}
	switch cfg.Format {
	case "", "text":
		options = append(options, WithFormatter(&TextFormatter{}))
	case "json":
		options = append(options, WithFormatter(&JSONFormatter{}))
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return NewLogger(options...), nil
}
