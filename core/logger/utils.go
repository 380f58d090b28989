package logger

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Event names.
const (
	EventSyntaxError    = "syntax_error"
	EventBuiltin        = "builtin"
	EventBuiltinError   = "builtin_error"
	EventRunCommand     = "run_command"
	EventUnknownCommand = "unknown_command"
	EventLaunchError    = "launch_error"
	EventExitStatus     = "exit_status"
)

// Well known fields.
const (
	FieldTimestampMicros = "timestamp_micros"
	FieldSessionID       = "session_id"
	FieldEvent           = "event"
	FieldCommand         = "command"
	FieldResolvedPath    = "resolved_path"
	FieldPid             = "pid"
	FieldStatus          = "status"
	FieldError           = "error"
	FieldLine            = "line"
)

// LogEntry is a single event.
type LogEntry = structpb.Struct

// Fields holds event specific values. Values must be representable as JSON.
type Fields map[string]interface{}

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger captures events for the shell.
type Logger struct {
	Record LogRecorder
}

// NewJsonLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	var mu sync.Mutex
	return &Logger{
		Record: func(le *LogEntry) error {
			entry, err := protojson.Marshal(le)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

// NewNopLogger creates a Logger that discards all events.
func NewNopLogger() *Logger {
	return &Logger{
		Record: func(*LogEntry) error {
			return nil
		},
	}
}

func (l *Logger) recordEvent(sessionID string, now time.Time, event string, fields Fields) error {
	values := map[string]interface{}{
		FieldTimestampMicros: now.UnixNano() / int64(time.Microsecond),
		FieldSessionID:       sessionID,
		FieldEvent:           event,
	}
	for k, v := range fields {
		values[k] = v
	}

	le, err := structpb.NewStruct(values)
	if err != nil {
		return err
	}

	return l.Record(le)
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: fmt.Sprintf("%d", rand.Uint64()), now: time.Now}
}

// SessionLogger logs messages with a shared session ID.
type SessionLogger struct {
	*Logger
	sessionID string
	now       func() time.Time
}

// SessionID returns the ID attached to every event.
func (l *SessionLogger) SessionID() string {
	return l.sessionID
}

// Record stores an event.
func (l *SessionLogger) Record(event string, fields Fields) error {
	return l.recordEvent(l.sessionID, l.now(), event, fields)
}

// Strings converts a string slice to a value Fields can hold.
func Strings(vals []string) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
