package events

import (
	nanoid "github.com/matoous/go-nanoid/v2"
)

// Event is implemented by every client and server event.
type Event interface {
	// EventType returns the wire discriminator, e.g. "session.update".
	EventType() string
	// ID returns the correlation id assigned by the client or the server.
	ID() string
}

// ClientEvent is an event sent from the client to the server.
type ClientEvent interface {
	Event
	base() *BaseEvent
	clientEvent()
}

// ServerEvent is an event received from the server.
type ServerEvent interface {
	Event
	serverEvent()
}

// BaseEvent carries the envelope fields every event has.
type BaseEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

func (b *BaseEvent) ID() string { return b.EventID }

func (b *BaseEvent) base() *BaseEvent { return b }

func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID: NewID(),
		Type:    eventType,
	}
}

// NewID returns a new client event id.
func NewID() string {
	id, err := nanoid.New()
	if err != nil {
		panic(err)
	}
	return "evt_" + id
}

// Ptr returns a pointer to v. Sparse session updates use it to tell an
// explicit value (including "") from an omitted field.
func Ptr[T any](v T) *T {
	return &v
}
