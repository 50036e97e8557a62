package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownEvent is returned for a well-formed message with an
	// unrecognized type discriminator.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrMalformed is returned for messages that are not a JSON object with a
	// type discriminator, or whose payload does not fit the event kind.
	ErrMalformed = errors.New("malformed event")
)

// Encode serializes a client event. The event type is stamped from the Go
// type and a fresh event id is assigned when none is set; both are written
// back into e.
func Encode(e ClientEvent) ([]byte, error) {
	b := e.base()
	b.Type = e.EventType()
	if b.EventID == "" {
		b.EventID = NewID()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", b.Type, err)
	}
	return data, nil
}

// Decode parses an inbound wire message into a typed server event.
func Decode(data []byte) (ServerEvent, error) {
	t, err := peekType(data)
	if err != nil {
		return nil, err
	}
	ctor, ok := serverEvents[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, t)
	}
	evt := ctor()
	if err := json.Unmarshal(data, evt); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, t, err)
	}
	return evt, nil
}

// DecodeClient parses a client event, the inverse of Encode.
func DecodeClient(data []byte) (ClientEvent, error) {
	t, err := peekType(data)
	if err != nil {
		return nil, err
	}
	ctor, ok := clientEvents[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, t)
	}
	evt := ctor()
	if err := json.Unmarshal(data, evt); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, t, err)
	}
	return evt, nil
}

// Marshal serializes any event as is, without touching its envelope.
func Marshal(e Event) ([]byte, error) {
	return json.Marshal(e)
}

func peekType(data []byte) (string, error) {
	var x struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &x); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if x.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return x.Type, nil
}

// ServerTypes lists every server event type Decode understands.
func ServerTypes() []string {
	types := make([]string, 0, len(serverEvents))
	for t := range serverEvents {
		types = append(types, t)
	}
	return types
}
