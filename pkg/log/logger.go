package log

import "time"

// Logger provides structured logging capabilities.
// Implementations can wrap zerolog, zap, logrus, or any other logging library.
type Logger interface {
	// Trace logs a trace-level message with fields.
	// Per-frame protocol chatter goes here.
	Trace(msg string, fields ...Field)

	// Debug logs a debug-level message with fields.
	Debug(msg string, fields ...Field)

	// Info logs an info-level message with fields.
	Info(msg string, fields ...Field)

	// Warn logs a warning-level message with fields.
	Warn(msg string, fields ...Field)

	// Error logs an error-level message with fields.
	Error(msg string, fields ...Field)
}

// Namer is implemented by loggers that can derive a child logger
// tagged with a component name.
type Namer interface {
	Named(component string) Logger
}

// Named returns a logger tagged with the given component name.
// Loggers that do not implement Namer are returned unchanged.
func Named(l Logger, component string) Logger {
	if l == nil {
		return NewNoopLogger()
	}
	if n, ok := l.(Namer); ok {
		return n.Named(component)
	}
	return l
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Peer creates a field carrying a peer identity.
func Peer(identity string) Field {
	return Field{Key: "peer", Value: identity}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error".
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}
