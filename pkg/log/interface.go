// Package log provides a structured logging interface for the stream-count
// prediction pipeline.
//
// The package defines a minimal, slog-compatible logging interface backed by
// zerolog by default. Standard ML attribute keys (model name, operation,
// data shape) keep log output consistent across packages, and a TestLogger
// implementation captures output in memory for assertions in tests.
package log

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are passed as alternating key/value pairs. The With method returns a
// child logger with the given fields pre-populated, allowing contextual
// loggers per model or pipeline stage.
type Logger interface {
	// Debug logs detailed diagnostic information.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	Info(msg string, fields ...any)

	// Warn logs potentially problematic situations that do not stop execution.
	Warn(msg string, fields ...any)

	// Error logs failures.
	Error(msg string, fields ...any)

	// With returns a child logger with the given fields attached to every record.
	With(fields ...any) Logger
}

// Level represents a logging level, value-compatible with slog.Level.
type Level int

// Standard logging levels.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers. It exists so tests can
// inject a capturing implementation in place of the zerolog default.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum level for loggers created by this provider.
	SetLevel(level Level)
}
