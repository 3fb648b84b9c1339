// Package logging provides structured JSON access logging for the
// session controller.
package logging

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"
)

// Entry is one structured access-log line, written by LogRequest once per
// completed request/response cycle.
type Entry struct {
	Time       string  `json:"time"`
	SessionID  uint32  `json:"session_id"`
	Method     string  `json:"method"`
	Path       string  `json:"path"`
	Status     int     `json:"status"`
	Bytes      int64   `json:"bytes"`
	DurationMS float64 `json:"duration_ms"`
	KeepAlive  bool    `json:"keep_alive"`
	Error      string  `json:"error,omitempty"`
}

// Logger writes access-log Entries as JSON lines. A plain stderr logger
// carries session lifecycle events (LogSessionEvent) and reports failures
// to encode an Entry.
type Logger struct {
	out    *json.Encoder
	errlog *log.Logger
}

// New returns a Logger writing to w. Pass os.Stdout for the common case.
func New(w io.Writer) *Logger {
	return &Logger{
		out:    json.NewEncoder(w),
		errlog: log.New(os.Stderr, "originhttpd: ", log.LstdFlags),
	}
}

// LogRequest records one completed request/response cycle.
func (l *Logger) LogRequest(sessionID uint32, method, path string, status int, bytes int64, d time.Duration, keepAlive bool, err error) {
	entry := Entry{
		Time:       time.Now().Format(time.RFC3339),
		SessionID:  sessionID,
		Method:     method,
		Path:       path,
		Status:     status,
		Bytes:      bytes,
		DurationMS: float64(d.Microseconds()) / 1000.0,
		KeepAlive:  keepAlive,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if encErr := l.out.Encode(entry); encErr != nil {
		l.errlog.Printf("failed to write access log: %v", encErr)
	}
}

// LogSessionEvent records a session lifecycle event outside the normal
// request/response accounting, e.g. a connection-timer expiry, as a
// plain-text line on stderr rather than a JSON Entry.
func (l *Logger) LogSessionEvent(sessionID uint32, msg string) {
	l.errlog.Printf("session %d: %s", sessionID, msg)
}
