package websocket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/codewandler/realtime-go/conn"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// ErrClosed is returned once the websocket is closed.
var ErrClosed = errors.New("websocket closed")

const (
	closeTimeout   = time.Second
	controlTimeout = time.Second
)

type ClientConfig struct {
	URL         string
	DialTimeout time.Duration
	Headers     http.Header
	Logger      *slog.Logger
}

// BearerHeaders returns the handshake headers authenticating with key.
func BearerHeaders(key string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+key)
	h.Set("OpenAI-Beta", "realtime=v1")
	return h
}

// Transport dials websocket connections for a conn.Manager.
type Transport struct {
	config ClientConfig
}

func NewTransport(config ClientConfig) *Transport {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 10 * time.Second
	}
	return &Transport{config: config}
}

func (t *Transport) Dial(ctx context.Context) (conn.Conn, error) {
	return Connect(ctx, t.config)
}

// Client is one websocket connection. Text and binary payloads are
// delivered by Receive; control frames are answered by the read loop.
type Client struct {
	conn   net.Conn
	logger *slog.Logger

	// one slot: holding it means owning the writer
	writeSem chan struct{}

	in    chan []byte
	pongs chan struct{}

	done     chan struct{}
	doneOnce sync.Once
	errMu    sync.Mutex
	err      error
}

func (c *Client) setDone(err error) {
	c.doneOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		close(c.done)
	})
}

func (c *Client) closeErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		return ErrClosed
	}
	return fmt.Errorf("%w: %w", ErrClosed, c.err)
}

// withWriter runs fn while owning the connection writer. ctx bounds both
// the wait for the writer and the write: once ctx is done the write
// deadline is moved to now, which fails a write stuck on a peer that
// stopped reading.
func (c *Client) withWriter(ctx context.Context, fn func(w io.Writer) error) error {
	select {
	case c.writeSem <- struct{}{}:
	case <-c.done:
		return c.closeErr()
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.writeSem }()

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		_ = c.conn.SetWriteDeadline(time.Now())
	})
	defer func() {
		if !stop() {
			<-fired
		}
	}()

	return fn(c.conn)
}

func (c *Client) write(ctx context.Context, opcode ws.OpCode, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return c.closeErr()
	default:
	}

	err := c.withWriter(ctx, func(w io.Writer) error {
		return wsutil.WriteClientMessage(w, opcode, data)
	})
	if err != nil {
		if cerr := ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
			return fmt.Errorf("ws write: %w: %w", cerr, err)
		}
		return fmt.Errorf("ws write: %w", err)
	}
	return nil
}

func (c *Client) Send(ctx context.Context, data []byte) error {
	return c.write(ctx, ws.OpText, data)
}

// Receive returns the next data message. Messages read before the
// connection closed are still delivered.
func (c *Client) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.done:
		select {
		case data := <-c.in:
			return data, nil
		default:
			return nil, c.closeErr()
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ping writes a ping frame and waits for the pong.
func (c *Client) Ping(ctx context.Context) error {
	select {
	case <-c.pongs:
	default:
	}
	if err := c.write(ctx, ws.OpPing, []byte("ping")); err != nil {
		return err
	}
	select {
	case <-c.pongs:
		return nil
	case <-c.done:
		return c.closeErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close sends a close frame and tears the connection down. The net.Conn
// is closed even when the close frame cannot be written in time, which
// also fails a write blocked on the peer.
func (c *Client) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := c.write(ctx, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, "closing")); err != nil {
		c.logger.Debug("close frame not sent", slog.Any("err", err))
	}
	c.setDone(nil)
	return c.conn.Close()
}

func Connect(ctx context.Context, config ClientConfig) (*Client, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(
		slog.String("url", config.URL),
	)

	dialTimeout := config.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 10 * time.Second
	}

	// handshake timeout only
	hsCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	d := ws.Dialer{
		Timeout: dialTimeout,
		Header:  ws.HandshakeHeaderHTTP(config.Headers),
	}
	nc, buf, hs, err := d.Dial(hsCtx, config.URL)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	logger.Debug("handshake complete", slog.String("protocol", hs.Protocol))

	// frames sent right behind the handshake response are already buffered
	var r io.Reader = nc
	if buf != nil {
		pending := make([]byte, buf.Buffered())
		_, _ = io.ReadFull(buf, pending)
		ws.PutReader(buf)
		r = io.MultiReader(bytes.NewReader(pending), nc)
	}

	logger.Info("connected to websocket")

	client := &Client{
		conn:     nc,
		logger:   logger,
		in:       make(chan []byte, 1000),
		pongs:    make(chan struct{}, 1),
		done:     make(chan struct{}),
		writeSem: make(chan struct{}, 1),
	}
	go client.readLoop(r)

	return client, nil
}

func (c *Client) readLoop(r io.Reader) {
	for {
		messages, err := wsutil.ReadServerMessage(r, nil)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				c.setDone(nil)
				return
			}
			c.logger.Error("ws read failed", slog.Any("err", err))
			c.setDone(err)
			return
		}

		for _, msg := range messages {
			if msg.OpCode.IsControl() {
				if !c.handleControl(msg) {
					return
				}
				continue
			}

			switch msg.OpCode {
			case ws.OpText, ws.OpBinary:
				select {
				case c.in <- msg.Payload:
				case <-c.done:
					return
				}
			}
		}
	}
}

// handleControl answers a control frame and reports whether reading
// should go on.
func (c *Client) handleControl(msg wsutil.Message) bool {
	c.logger.Debug("rcv: control", slog.Any("opcode", msg.OpCode))

	switch msg.OpCode {
	case ws.OpPong:
		select {
		case c.pongs <- struct{}{}:
		default:
		}
		return true
	case ws.OpClose:
		c.logger.Debug("rcv: close", slog.String("reason", string(msg.Payload)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	err := c.withWriter(ctx, func(w io.Writer) error {
		return wsutil.HandleServerControlMessage(w, msg)
	})
	cancel()

	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		c.setDone(fmt.Errorf("closed by server: %d %s", closed.Code, closed.Reason))
		_ = c.conn.Close()
		return false
	}
	if err != nil {
		c.logger.Error("handling of control message failed", slog.Any("err", err))
	}
	return true
}
