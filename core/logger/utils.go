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

// LogEntry is a single record in the event log.
type LogEntry struct {
	TimestampMicros int64
	SessionID       string
	Type            string
	Event           *structpb.Struct
}

// GetString returns a string field of the event, or "" if it isn't set.
func (le *LogEntry) GetString(name string) string {
	return le.Event.GetFields()[name].GetStringValue()
}

// GetInt returns a numeric field of the event.
func (le *LogEntry) GetInt(name string) int {
	return int(le.Event.GetFields()[name].GetNumberValue())
}

// GetStrings returns a list of strings field of the event.
func (le *LogEntry) GetStrings(name string) []string {
	return listStrings(le.Event.GetFields()[name])
}

func listStrings(v *structpb.Value) []string {
	var out []string
	for _, item := range v.GetListValue().GetValues() {
		out = append(out, item.GetStringValue())
	}
	return out
}

func (le *LogEntry) toStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"timestamp_micros": structpb.NewNumberValue(float64(le.TimestampMicros)),
		"session_id":       structpb.NewStringValue(le.SessionID),
		"type":             structpb.NewStringValue(le.Type),
		"event":            structpb.NewStructValue(le.Event),
	}}
}

func entryFromStruct(s *structpb.Struct) (*LogEntry, error) {
	fields := s.GetFields()
	le := &LogEntry{
		TimestampMicros: int64(fields["timestamp_micros"].GetNumberValue()),
		SessionID:       fields["session_id"].GetStringValue(),
		Type:            fields["type"].GetStringValue(),
		Event:           fields["event"].GetStructValue(),
	}
	if le.Type == "" {
		return nil, fmt.Errorf("log entry has no type")
	}
	return le, nil
}

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger records shell events.
type Logger struct {
	Record LogRecorder
}

// NewJsonLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	var mu sync.Mutex
	return &Logger{
		Record: func(le *LogEntry) error {
			entry, err := protojson.Marshal(le.toStruct())
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

// NewNopLogger creates a Logger that drops every event.
func NewNopLogger() *Logger {
	return &Logger{
		Record: func(*LogEntry) error { return nil },
	}
}

func (l *Logger) recordLogType(sessionID string, event LogType) error {
	fields, err := structpb.NewStruct(event.fields())
	if err != nil {
		return err
	}

	return l.Record(&LogEntry{
		TimestampMicros: time.Now().UnixNano() / int64(time.Microsecond),
		SessionID:       sessionID,
		Type:            event.Type(),
		Event:           fields,
	})
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: fmt.Sprintf("%d", rand.Uint64())}
}

// SessionLogger logs messages with a shared session ID.
type SessionLogger struct {
	*Logger
	sessionID string
}

// SessionID returns the ID attached to every event.
func (l *SessionLogger) SessionID() string {
	return l.sessionID
}

func (l *SessionLogger) Record(event LogType) error {
	return l.recordLogType(l.sessionID, event)
}
