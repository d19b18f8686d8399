package eventstore

import "time"

// Event is one recorded fact about a build.
type Event interface {
	// ID returns the store-assigned identifier, zero before the event is stored.
	ID() int64
	// BuildID returns the build the event belongs to.
	BuildID() string
	// Type returns the event type name.
	Type() string
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
	// Payload returns the JSON-encoded event data.
	Payload() []byte
}

// BaseEvent is the stored form of every event.
type BaseEvent struct {
	EventID        int64
	EventBuildID   string
	EventType      string
	EventTimestamp time.Time
	EventPayload   []byte
}

func (e *BaseEvent) ID() int64            { return e.EventID }
func (e *BaseEvent) BuildID() string      { return e.EventBuildID }
func (e *BaseEvent) Type() string         { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte      { return e.EventPayload }
