package event

import (
	"time"

	"github.com/google/uuid"
)

// Factory mints events. Construction never fails: commands validate before
// asking for an event, so every record that reaches the log is well-formed.
type Factory struct {
	Now   func() time.Time
	NewID func() string
}

func NewFactory() Factory {
	return Factory{}
}

func (f Factory) now() time.Time {
	if f.Now != nil {
		return f.Now().UTC()
	}
	return time.Now().UTC()
}

func (f Factory) newID() string {
	if f.NewID != nil {
		return f.NewID()
	}
	return uuid.New().String()
}

// ID mints a fresh identifier. Entities share the generator with events so
// tests can pin both at once.
func (f Factory) ID() string { return f.newID() }

// New wraps a payload in a stamped envelope: fresh UUID, current schema
// version, timestamp now.
func (f Factory) New(p Payload) Event {
	return Event{
		ID:        f.newID(),
		Type:      p.EventType(),
		Timestamp: f.now(),
		Version:   Version,
		Payload:   p,
	}
}
