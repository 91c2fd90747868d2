package logging

import "time"

const (
	DebugLevel = "DEBUG"
	InfoLevel  = "INFO"
	WarnLevel  = "WARN"
	ErrorLevel = "ERROR"
)

// Event is a structured log event. Metadata carries identifiers (realm ino,
// inode number, mds id) rather than being folded into Message, so every
// component logs the same way regardless of backend.
type Event struct {
	Timestamp time.Time
	Message   string
	Metadata  map[string]any
}

type Logger interface {
	Debug(Event)
	Info(Event)
	Warn(Event)
	Error(Event)
}
