// Package monitoring provides the structured logger the store reports scan,
// write and garbage collection events through.
package monitoring

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// Level classifies log entries.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Entry is one structured log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component"`
	EventType string         `json:"event_type"`
	Details   map[string]any `json:"details,omitempty"`
}

// Logger receives structured events.
type Logger interface {
	Log(level Level, eventType string, message string, details map[string]any)
}

// JSON is a Logger that writes one JSON object per line.
type JSON struct {
	component string
	enc       *json.Encoder
}

// NewJSON creates a JSON logger for component. A nil w writes to stdout.
func NewJSON(component string, w io.Writer) *JSON {
	if w == nil {
		w = os.Stdout
	}
	return &JSON{component: component, enc: json.NewEncoder(w)}
}

func (l *JSON) Log(level Level, eventType string, message string, details map[string]any) {
	_ = l.enc.Encode(Entry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   message,
		Component: l.component,
		EventType: eventType,
		Details:   details,
	})
}

// Nop is a Logger that discards everything.
type Nop struct{}

func (Nop) Log(Level, string, string, map[string]any) {}
