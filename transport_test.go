package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/codewandler/realtime-go/audio"
	"github.com/codewandler/realtime-go/conn"
	"github.com/codewandler/realtime-go/events"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// memServer is an in-memory realtime endpoint. Every dial yields a new
// memConn the test drives from the server side.
type memServer struct {
	dialed chan *memConn

	mu    sync.Mutex
	fails int
}

func newMemServer() *memServer {
	return &memServer{dialed: make(chan *memConn, 8)}
}

func (s *memServer) Dial(ctx context.Context) (conn.Conn, error) {
	s.mu.Lock()
	if s.fails > 0 {
		s.fails--
		s.mu.Unlock()
		return nil, errors.New("refused")
	}
	s.mu.Unlock()

	c := &memConn{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
	}
	s.dialed <- c
	return c, nil
}

func (s *memServer) next(t *testing.T) *memConn {
	t.Helper()
	select {
	case c := <-s.dialed:
		return c
	case <-time.After(waitFor):
		t.Fatal("no connection dialed")
		return nil
	}
}

type memConn struct {
	in     chan []byte
	out    chan []byte
	once   sync.Once
	closed chan struct{}
}

func (c *memConn) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.closed:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *memConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *memConn) Ping(context.Context) error { return nil }

func (c *memConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// push writes a server event to the client.
func (c *memConn) push(t *testing.T, evt events.ServerEvent) {
	t.Helper()
	data, err := events.Marshal(evt)
	require.NoError(t, err)
	c.pushRaw(t, data)
}

func (c *memConn) pushRaw(t *testing.T, data []byte) {
	t.Helper()
	select {
	case c.in <- data:
	case <-time.After(waitFor):
		t.Fatal("client does not read")
	}
}

// expect reads the next client event and checks its type.
func (c *memConn) expect(t *testing.T, eventType string) events.ClientEvent {
	t.Helper()
	select {
	case data := <-c.out:
		evt, err := events.DecodeClient(data)
		require.NoError(t, err)
		require.Equal(t, eventType, evt.EventType(), string(data))
		return evt
	case <-time.After(waitFor):
		t.Fatalf("no %s received", eventType)
		return nil
	}
}

// silent asserts that the client sends nothing for a while.
func (c *memConn) silent(t *testing.T) {
	t.Helper()
	select {
	case data := <-c.out:
		t.Fatalf("unexpected message %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

// defaultSession is what the server reports before any update.
func defaultSession() events.Session {
	return events.Session{
		ID:                      "sess_1",
		Object:                  "realtime.session",
		Model:                   DefaultModel,
		Modalities:              []events.Modality{events.ModalityText, events.ModalityAudio},
		Voice:                   events.VoiceAlloy,
		InputAudioFormat:        events.AudioFormatPCM16,
		OutputAudioFormat:       events.AudioFormatPCM16,
		TurnDetection:           events.ServerVAD(0.5, 300, 200),
		Temperature:             0.8,
		MaxResponseOutputTokens: events.MaxTokensInf,
		Speed:                   1,
	}
}

// applyUpdate is the server side of session.update.
func applyUpdate(s events.Session, u events.SessionUpdate) events.Session {
	if u.Modalities != nil {
		s.Modalities = u.Modalities
	}
	if u.Instructions != nil {
		s.Instructions = *u.Instructions
	}
	if u.Voice != nil {
		s.Voice = *u.Voice
	}
	if u.InputAudioFormat != nil {
		s.InputAudioFormat = *u.InputAudioFormat
	}
	if u.OutputAudioFormat != nil {
		s.OutputAudioFormat = *u.OutputAudioFormat
	}
	if u.TurnDetection != nil {
		s.TurnDetection = u.TurnDetection
	}
	if u.Tools != nil {
		s.Tools = u.Tools
	}
	if u.Temperature != nil {
		s.Temperature = *u.Temperature
	}
	if u.Speed != nil {
		s.Speed = *u.Speed
	}
	return s
}

func sessionCreated(s events.Session) *events.SessionCreatedEvent {
	return &events.SessionCreatedEvent{BaseEvent: events.NewBaseEvent(events.TypeSessionCreated), Session: s}
}

func sessionUpdated(s events.Session) *events.SessionUpdatedEvent {
	return &events.SessionUpdatedEvent{BaseEvent: events.NewBaseEvent(events.TypeSessionUpdated), Session: s}
}

func responseCreated(id string) *events.ResponseCreatedEvent {
	return &events.ResponseCreatedEvent{
		BaseEvent: events.NewBaseEvent(events.TypeResponseCreated),
		Response:  events.Response{ID: id, Object: "realtime.response", Status: events.ResponseStatusInProgress},
	}
}

func responseDone(id string, status events.ResponseStatus, output ...events.ConversationItem) *events.ResponseDoneEvent {
	return &events.ResponseDoneEvent{
		BaseEvent: events.NewBaseEvent(events.TypeResponseDone),
		Response:  events.Response{ID: id, Object: "realtime.response", Status: status, Output: output},
	}
}

func serverError(eventID, code, message string) *events.ErrorEvent {
	return &events.ErrorEvent{
		BaseEvent: events.NewBaseEvent(events.TypeError),
		ErrorDetail: events.ErrorDetail{
			Type:    "invalid_request_error",
			Code:    code,
			Message: message,
			EventID: eventID,
		},
	}
}

func testClient(srv *memServer, opts ...ClientOption) *Client {
	return New(append([]ClientOption{
		WithTransport(srv),
		WithReconnect(3, time.Millisecond),
		WithKeepalive(0, 0),
		WithSessionTimeout(waitFor),
	}, opts...)...)
}

// connect runs the handshake for cfg from the server side and returns the
// first connection.
func connect(t *testing.T, c *Client, srv *memServer, cfg events.SessionUpdate) *memConn {
	t.Helper()

	errc := make(chan error, 1)
	go func() { errc <- c.Connect(context.Background(), cfg) }()

	mc := srv.next(t)
	mc.push(t, sessionCreated(defaultSession()))
	if !cfg.Empty() {
		upd := mc.expect(t, events.TypeSessionUpdate).(*events.SessionUpdateEvent)
		mc.push(t, sessionUpdated(applyUpdate(defaultSession(), upd.Session)))
	}

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("connect did not return")
	}
	t.Cleanup(func() { _ = c.Close() })
	return mc
}

func functionCall(callID, name string, args any) events.ConversationItem {
	data, _ := json.Marshal(args)
	return events.ConversationItem{
		ID:        "item_" + callID,
		Type:      events.ItemTypeFunctionCall,
		Status:    events.ItemStatusCompleted,
		CallID:    callID,
		Name:      name,
		Arguments: string(data),
	}
}

type memInput struct {
	mu sync.Mutex
	fn func(audio.Frame)
}

func (in *memInput) Format() audio.Format { return audio.WireFormat }

func (in *memInput) Start(_ time.Duration, fn func(audio.Frame)) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.fn = fn
	return nil
}

func (in *memInput) Stop() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.fn = nil
	return nil
}

func (in *memInput) push(data []byte) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.fn == nil {
		return false
	}
	in.fn(audio.Frame{Format: audio.WireFormat, Data: data})
	return true
}

type memOutput struct {
	mu  sync.Mutex
	src io.Reader
}

func (o *memOutput) Format() audio.Format { return audio.WireFormat }

func (o *memOutput) Start(src io.Reader) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.src = src
	return nil
}

func (o *memOutput) Stop() error { return nil }
