package log

import (
	"time"

	"github.com/google/uuid"
)

// Logger is the interface applications implement to receive protocol log events.
// Pass nil or NoopLogger to disable logging.
type Logger interface {
	// Log records a protocol event. Implementations must be thread-safe.
	// The event should be processed quickly or queued; blocking affects performance.
	Log(event Event)
}

// NoopLogger discards all events. Use when logging is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}

// Session stamps events with a session ID and, when unset, a timestamp
// before forwarding them to a Logger.
type Session struct {
	id     string
	logger Logger
	now    func() time.Time
}

// NewSession creates a Session with a random UUID. A nil logger discards
// events; a nil now uses time.Now.
func NewSession(logger Logger, now func() time.Time) *Session {
	if logger == nil {
		logger = NoopLogger{}
	}
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:     uuid.NewString(),
		logger: logger,
		now:    now,
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Log stamps and forwards the event.
func (s *Session) Log(event Event) {
	event.SessionID = s.id
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	s.logger.Log(event)
}

var _ Logger = (*Session)(nil)
