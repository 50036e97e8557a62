package realtime

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/codewandler/realtime-go/audio"
	"github.com/codewandler/realtime-go/conn"
	"github.com/codewandler/realtime-go/events"
	"github.com/codewandler/realtime-go/internal/metrics"
	"github.com/codewandler/realtime-go/internal/websocket"
)

// Client is a realtime session: it keeps the connection, mirrors the
// session configuration and the current response, and turns commands into
// client events.
type Client struct {
	config  *clientConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	subs    subscribers
	deltas  *deltaTracker

	mu            sync.Mutex
	conn          *conn.Manager
	desired       events.SessionUpdate
	session       *events.Session
	response      *events.Response
	pendingCreate string
	handshakeID   string
	sessionReady  chan error
	capture       *audio.Capture

	closeOnce sync.Once
	closed    chan struct{}
}

func New(opts ...ClientOption) *Client {
	config := &clientConfig{}
	withDefaults()(config)
	WithOptions(opts...)(config)

	c := &Client{
		config:       config,
		logger:       config.logger,
		metrics:      config.metrics,
		deltas:       newDeltaTracker(config.logger),
		sessionReady: make(chan error, 1),
		closed:       make(chan struct{}),
	}
	for _, s := range config.subscribers {
		c.subs.add(s)
	}
	return c
}

func (c *Client) transport() (conn.Transport, error) {
	if c.config.transport != nil {
		return c.config.transport, nil
	}
	u, err := url.Parse(c.config.url)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if c.config.model != "" {
		q := u.Query()
		q.Set("model", c.config.model)
		u.RawQuery = q.Encode()
	}
	return websocket.NewTransport(websocket.ClientConfig{
		URL:         u.String(),
		DialTimeout: c.config.dialTimeout,
		Headers:     websocket.BearerHeaders(c.config.apiKey),
		Logger:      c.logger,
	}), nil
}

// Connect opens the connection, sends cfg and waits until the server echoed
// the effective configuration. cfg is sent again first thing after every
// reconnect. With an empty cfg Connect waits for session.created instead.
// When Connect fails the client is closed and cannot connect again.
func (c *Client) Connect(ctx context.Context, cfg events.SessionUpdate) error {
	if err := c.config.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	t, err := c.transport()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.conn != nil {
		m := c.conn
		c.mu.Unlock()
		if m.State() == conn.StateClosed {
			return conn.ErrClosed
		}
		return conn.ErrAlreadyStarted
	}
	c.desired = cfg
	m := conn.New(t,
		conn.WithMaxAttempts(c.config.maxAttempts),
		conn.WithRetryDelay(c.config.retryDelay),
		conn.WithKeepalive(c.config.keepaliveInterval, c.config.keepaliveTimeout),
		conn.WithHandshake(c.handshake),
		conn.WithStateFunc(c.onStateChange),
		conn.WithLogger(c.logger),
		conn.WithMetrics(c.metrics),
	)
	c.conn = m
	c.mu.Unlock()

	go c.dispatch(m)

	if err := m.Connect(ctx); err != nil {
		return c.abort(m, fmt.Errorf("connect: %w", err))
	}

	timeout := time.NewTimer(c.config.sessionTimeout)
	defer timeout.Stop()

	select {
	case err := <-c.sessionReady:
		if err != nil {
			return c.abort(m, err)
		}
		return nil
	case <-timeout.C:
		return c.abort(m, ErrSessionTimeout)
	case <-c.closed:
		if err := m.Err(); err != nil {
			return err
		}
		return conn.ErrClosed
	case <-ctx.Done():
		return c.abort(m, ctx.Err())
	}
}

// abort tears down a connection whose handshake failed. The client ends
// closed, as after Close.
func (c *Client) abort(m *conn.Manager, err error) error {
	m.Disconnect()
	<-c.closed
	c.logger.Warn("connect failed", slog.Any("err", err))
	return err
}

// handshake encodes the desired configuration for a fresh connection.
func (c *Client) handshake() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handshakeID = ""
	if c.desired.Empty() {
		return nil
	}
	evt := &events.SessionUpdateEvent{Session: c.desired}
	data, err := events.Encode(evt)
	if err != nil {
		c.logger.Error("failed to encode session update", slog.Any("err", err))
		return nil
	}
	c.handshakeID = evt.EventID
	return [][]byte{data}
}

func (c *Client) onStateChange(from, to conn.State) {
	c.logger.Debug("connection state changed", slog.String("from", from.String()), slog.String("to", to.String()))
	if to != conn.StateReconnecting {
		return
	}
	// the next connection starts a new server session
	c.mu.Lock()
	c.response = nil
	c.pendingCreate = ""
	c.mu.Unlock()
	c.deltas.reset()
}

// Close stops capture and disconnects. It is safe to call more than once.
func (c *Client) Close() error {
	var captureErr error
	c.mu.Lock()
	capture := c.capture
	c.capture = nil
	m := c.conn
	c.mu.Unlock()

	if capture != nil {
		captureErr = capture.Stop()
	}
	if m == nil {
		c.closeOnce.Do(func() { close(c.closed) })
		return captureErr
	}
	m.Disconnect()
	<-c.closed
	return captureErr
}

// Done is closed after the connection closed and the last event was
// dispatched.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// Configuration returns the session configuration last echoed by the
// server, or nil before the first session event.
func (c *Client) Configuration() *events.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Desired returns the merged configuration sent on connect and by updates.
func (c *Client) Desired() events.SessionUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desired
}

// Response returns the current or last response, nil if there is none.
func (c *Client) Response() *events.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.response == nil {
		return nil
	}
	r := *c.response
	return &r
}

func (c *Client) ConnectionState() conn.State {
	c.mu.Lock()
	m := c.conn
	c.mu.Unlock()
	if m == nil {
		return conn.StateDisconnected
	}
	return m.State()
}

// Partial returns the text streamed so far for an unfinished content stream.
func (c *Client) Partial(key events.ContentKey) (string, bool) {
	return c.deltas.get(key)
}

// Send encodes evt and queues it. It never blocks on the network.
func (c *Client) Send(evt events.ClientEvent) error {
	c.mu.Lock()
	m := c.conn
	c.mu.Unlock()
	return c.send(m, evt)
}

func (c *Client) send(m *conn.Manager, evt events.ClientEvent) error {
	if m == nil {
		return ErrNotConnected
	}
	data, err := events.Encode(evt)
	if err != nil {
		return err
	}
	if err := m.Send(data); err != nil {
		return fmt.Errorf("send %s: %w", evt.EventType(), err)
	}
	c.logger.Debug("snd", slog.String("type", evt.EventType()), slog.String("event_id", evt.ID()))
	return nil
}

// UpdateSession sends a sparse update. Only fields set in update change.
func (c *Client) UpdateSession(update events.SessionUpdate) error {
	c.mu.Lock()
	m := c.conn
	if m != nil {
		c.desired = c.desired.Merge(update)
	}
	c.mu.Unlock()
	return c.send(m, &events.SessionUpdateEvent{Session: update})
}

// AppendAudio appends wire audio to the input buffer.
func (c *Client) AppendAudio(chunk []byte) error {
	return c.Send(&events.InputAudioBufferAppendEvent{
		Audio: base64.StdEncoding.EncodeToString(chunk),
	})
}

func (c *Client) CommitAudio() error {
	return c.Send(&events.InputAudioBufferCommitEvent{})
}

func (c *Client) ClearAudio() error {
	return c.Send(&events.InputAudioBufferClearEvent{})
}

// CreateItem inserts item after previousItemID, or at the end when empty.
func (c *Client) CreateItem(item events.ConversationItem, previousItemID string) error {
	return c.Send(&events.ConversationItemCreateEvent{
		PreviousItemID: previousItemID,
		Item:           item,
	})
}

func (c *Client) RetrieveItem(itemID string) error {
	return c.Send(&events.ConversationItemRetrieveEvent{ItemID: itemID})
}

func (c *Client) DeleteItem(itemID string) error {
	return c.Send(&events.ConversationItemDeleteEvent{ItemID: itemID})
}

// TruncateItem cuts the audio of an assistant item at audioEndMs, e.g. to
// what was actually played before an interruption.
func (c *Client) TruncateItem(itemID string, contentIndex, audioEndMs int) error {
	return c.Send(&events.ConversationItemTruncateEvent{
		ItemID:       itemID,
		ContentIndex: contentIndex,
		AudioEndMs:   audioEndMs,
	})
}

// CreateResponse asks for a response. It fails with ErrResponseInProgress
// while a previous request is unanswered or a response is in progress.
func (c *Client) CreateResponse(payload *events.ResponseCreatePayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pendingCreate != "" || c.response.InProgress() {
		return ErrResponseInProgress
	}
	evt := &events.ResponseCreateEvent{Response: payload}
	if err := c.send(c.conn, evt); err != nil {
		return err
	}
	c.pendingCreate = evt.EventID
	return nil
}

// CancelResponse cancels the requested or running response. Without one it
// does nothing.
func (c *Client) CancelResponse() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	evt := &events.ResponseCancelEvent{}
	switch {
	case c.response.InProgress():
		evt.ResponseID = c.response.ID
	case c.pendingCreate != "":
	default:
		c.logger.Debug("cancel ignored, no response in progress")
		return nil
	}
	return c.send(c.conn, evt)
}

// UserInput adds a user text message and optionally asks for a response.
func (c *Client) UserInput(text string, respond bool) error {
	if err := c.CreateItem(events.UserText(text), ""); err != nil {
		return err
	}
	if respond {
		return c.CreateResponse(nil)
	}
	return nil
}

// SendFunctionOutput answers the function call callID.
func (c *Client) SendFunctionOutput(callID, output string) error {
	return c.CreateItem(events.FunctionOutput(callID, output), "")
}

// StartCapture streams in to the input buffer until ctx is done, Close is
// called or the returned capture is stopped.
func (c *Client) StartCapture(ctx context.Context, in audio.Input, opts ...audio.CaptureOption) (*audio.Capture, error) {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	if c.capture != nil && c.capture.Running() {
		c.mu.Unlock()
		return nil, audio.ErrCaptureRunning
	}
	if f := c.desired.InputAudioFormat; f != nil && *f != events.AudioFormatPCM16 {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: capture streams pcm16, session expects %s", audio.ErrFormat, *f)
	}
	c.mu.Unlock()

	opts = append([]audio.CaptureOption{
		audio.WithCaptureLogger(c.logger),
		audio.WithCaptureMetrics(c.metrics),
	}, opts...)
	capture := audio.NewCapture(in, opts...)
	chunks, err := capture.Start(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.capture = capture
	c.mu.Unlock()

	go func() {
		for chunk := range chunks {
			if err := c.AppendAudio(chunk); err != nil {
				c.logger.Error("failed to append captured audio", slog.Any("err", err))
				if errors.Is(err, conn.ErrClosed) {
					_ = capture.Stop()
				}
			}
		}
	}()
	return capture, nil
}
