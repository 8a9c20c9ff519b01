// Package models provides data structures for the logkeeper service.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Stream identifies one of the append-only log collections.
type Stream string

const (
	// StreamActivity holds admin activity records.
	StreamActivity Stream = "activityLogs"
	// StreamSystem holds system events, including retention audit records.
	StreamSystem Stream = "systemLogs"
)

// Streams lists every stream in purge order.
var Streams = []Stream{StreamActivity, StreamSystem}

// ParseStream accepts either the collection name or the short export subject.
func ParseStream(s string) (Stream, error) {
	switch strings.TrimSpace(s) {
	case "activityLogs", "activity", "activity-logs", "activity_logs":
		return StreamActivity, nil
	case "systemLogs", "system", "system-logs", "system_logs":
		return StreamSystem, nil
	}
	return "", fmt.Errorf("unknown log stream %q", s)
}

// Table returns the SQL table backing the stream.
func (s Stream) Table() string {
	switch s {
	case StreamActivity:
		return "activity_logs"
	case StreamSystem:
		return "system_logs"
	}
	return ""
}

// Subject returns the short name used in export filenames.
func (s Stream) Subject() string {
	switch s {
	case StreamActivity:
		return "activity"
	case StreamSystem:
		return "system"
	}
	return string(s)
}

// Level classifies a log entry.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Levels lists all valid levels.
var Levels = []Level{LevelInfo, LevelSuccess, LevelWarning, LevelError}

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelSuccess, LevelWarning, LevelError:
		return true
	}
	return false
}

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// LogEntry is a single immutable record in either stream.
type LogEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     Level           `json:"level"`
	Module    string          `json:"module,omitempty"`
	SubModule string          `json:"subModule,omitempty"`
	Action    string          `json:"action,omitempty"`
	Message   string          `json:"message"`
	Actor     Actor           `json:"-"`
	Details   json.RawMessage `json:"details,omitempty"`
	Status    string          `json:"status,omitempty"`
	IPAddress string          `json:"ipAddress,omitempty"`
	UserAgent string          `json:"userAgent,omitempty"`
}

// ValidationError describes an invalid field on a log entry.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks the fields every entry must carry.
func (e *LogEntry) Validate() error {
	if e.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "timestamp is required"}
	}
	if !e.Level.Valid() {
		return &ValidationError{Field: "level", Message: fmt.Sprintf("invalid level %q", e.Level)}
	}
	if strings.TrimSpace(e.Message) == "" {
		return &ValidationError{Field: "message", Message: "message is required"}
	}
	return nil
}

// logEntryJSON is the wire shape. The actor is split into either performedBy or the
// legacy flat user/userId pair.
type logEntryJSON struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Level       Level           `json:"level"`
	Module      string          `json:"module,omitempty"`
	SubModule   string          `json:"subModule,omitempty"`
	Action      string          `json:"action,omitempty"`
	Message     string          `json:"message"`
	Description string          `json:"description,omitempty"`
	PerformedBy *Performer      `json:"performedBy,omitempty"`
	User        string          `json:"user,omitempty"`
	UserID      string          `json:"userId,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	Status      string          `json:"status,omitempty"`
	IPAddress   string          `json:"ipAddress,omitempty"`
	UserAgent   string          `json:"userAgent,omitempty"`
}

// MarshalJSON emits exactly one actor representation.
func (e LogEntry) MarshalJSON() ([]byte, error) {
	out := logEntryJSON{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Level:     e.Level,
		Module:    e.Module,
		SubModule: e.SubModule,
		Action:    e.Action,
		Message:   e.Message,
		Details:   e.Details,
		Status:    e.Status,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
	}
	switch e.Actor.Kind() {
	case ActorStructured:
		p, _ := e.Actor.Performer()
		out.PerformedBy = &p
	case ActorLegacy:
		l, _ := e.Actor.Legacy()
		out.User = l.User
		out.UserID = l.UserID
	case ActorNone:
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both actor shapes. When both are present the structured
// performer wins.
func (e *LogEntry) UnmarshalJSON(data []byte) error {
	var in logEntryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	msg := in.Message
	if msg == "" {
		msg = in.Description
	}
	*e = LogEntry{
		ID:        in.ID,
		Timestamp: in.Timestamp,
		Level:     in.Level,
		Module:    in.Module,
		SubModule: in.SubModule,
		Action:    in.Action,
		Message:   msg,
		Details:   in.Details,
		Status:    in.Status,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
	}
	switch {
	case in.PerformedBy != nil:
		e.Actor = StructuredActor(*in.PerformedBy)
	case in.User != "" || in.UserID != "":
		e.Actor = LegacyActor(in.User, in.UserID)
	default:
		e.Actor = NoActor()
	}
	return nil
}
