package log

import (
	"fmt"
	"sync"
)

// TestLogger captures log records in memory for later inspection in tests.
type TestLogger struct {
	mu      sync.Mutex
	level   Level
	fields  map[string]any
	entries *[]TestEntry
}

// TestEntry is one captured log record.
type TestEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// NewTestLogger creates a TestLogger with the specified minimum level.
func NewTestLogger(level Level) *TestLogger {
	entries := make([]TestEntry, 0)
	return &TestLogger{
		level:   level,
		fields:  make(map[string]any),
		entries: &entries,
	}
}

// Debug implements Logger.Debug.
func (t *TestLogger) Debug(msg string, fields ...any) { t.write(LevelDebug, msg, fields) }

// Info implements Logger.Info.
func (t *TestLogger) Info(msg string, fields ...any) { t.write(LevelInfo, msg, fields) }

// Warn implements Logger.Warn.
func (t *TestLogger) Warn(msg string, fields ...any) { t.write(LevelWarn, msg, fields) }

// Error implements Logger.Error.
func (t *TestLogger) Error(msg string, fields ...any) { t.write(LevelError, msg, fields) }

// With implements Logger.With.
func (t *TestLogger) With(fields ...any) Logger {
	t.mu.Lock()
	defer t.mu.Unlock()

	child := &TestLogger{
		level:   t.level,
		fields:  make(map[string]any, len(t.fields)),
		entries: t.entries,
	}
	for k, v := range t.fields {
		child.fields[k] = v
	}
	for i := 0; i+1 < len(fields); i += 2 {
		child.fields[fmt.Sprintf("%v", fields[i])] = fields[i+1]
	}
	return child
}

// Entries returns a copy of all captured records.
func (t *TestLogger) Entries() []TestEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TestEntry, len(*t.entries))
	copy(out, *t.entries)
	return out
}

// ContainsField reports whether any captured record carries the field with
// the given value.
func (t *TestLogger) ContainsField(key string, value any) bool {
	for _, e := range t.Entries() {
		if v, ok := e.Fields[key]; ok && v == value {
			return true
		}
	}
	return false
}

// Clear discards all captured records.
func (t *TestLogger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	*t.entries = (*t.entries)[:0]
}

func (t *TestLogger) write(level Level, msg string, fields []any) {
	if level < t.level {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := TestEntry{
		Level:   level.String(),
		Message: msg,
		Fields:  make(map[string]any, len(t.fields)+len(fields)/2),
	}
	for k, v := range t.fields {
		entry.Fields[k] = v
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if err, ok := fields[i+1].(error); ok {
			entry.Fields[key] = err.Error()
			continue
		}
		entry.Fields[key] = fields[i+1]
	}
	*t.entries = append(*t.entries, entry)
}

// TestLoggerProvider implements LoggerProvider for tests.
type TestLoggerProvider struct {
	logger *TestLogger
}

// NewTestLoggerProvider creates a provider whose loggers all share one
// capture buffer.
func NewTestLoggerProvider(level Level) *TestLoggerProvider {
	return &TestLoggerProvider{logger: NewTestLogger(level)}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *TestLoggerProvider) GetLogger() Logger { return p.logger }

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.logger.With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *TestLoggerProvider) SetLevel(level Level) { p.logger.level = level }

// Captured returns the underlying TestLogger for assertions.
func (p *TestLoggerProvider) Captured() *TestLogger { return p.logger }
