package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codewandler/realtime-go/internal/metrics"
)

var (
	// ErrClosed is returned by operations on a manager that has been closed.
	ErrClosed = errors.New("connection closed")
	// ErrRetriesExhausted ends the manager when no dial attempt succeeded.
	ErrRetriesExhausted = errors.New("connection retries exhausted")
	// ErrKeepaliveTimeout marks a connection dropped for an unanswered probe.
	ErrKeepaliveTimeout = errors.New("keepalive timeout")
	// ErrAlreadyStarted is returned by a second Connect.
	ErrAlreadyStarted = errors.New("connection already started")
)

const (
	DefaultMaxAttempts       = 5
	DefaultRetryDelay        = time.Second
	DefaultKeepaliveInterval = 15 * time.Second
	DefaultKeepaliveTimeout  = 5 * time.Second
	DefaultInboundBuffer     = 256
)

// HandshakeFunc returns messages to send on every new connection before
// the queue is drained.
type HandshakeFunc func() [][]byte

// Manager owns one logical connection across any number of transport
// connections. A single goroutine performs all state transitions.
type Manager struct {
	transport         Transport
	maxAttempts       int
	retryDelay        time.Duration
	keepaliveInterval time.Duration
	keepaliveTimeout  time.Duration
	inboundBuffer     int
	handshake         HandshakeFunc
	onState           StateFunc
	log               *slog.Logger
	metrics           *metrics.Metrics

	queue queue
	kick  chan struct{}
	msgs  chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	started bool
	ready   chan struct{}
	done    chan struct{}
	err     error
}

type Option func(*Manager)

// WithMaxAttempts bounds the dial attempts of one connect or reconnect cycle.
func WithMaxAttempts(n int) Option {
	return func(m *Manager) { m.maxAttempts = n }
}

// WithRetryDelay sets the fixed delay between dial attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(m *Manager) { m.retryDelay = d }
}

// WithKeepalive sets the probe interval and the time allowed for the
// acknowledgement. A zero interval disables probing.
func WithKeepalive(interval, timeout time.Duration) Option {
	return func(m *Manager) {
		m.keepaliveInterval = interval
		m.keepaliveTimeout = timeout
	}
}

func WithInboundBuffer(n int) Option {
	return func(m *Manager) { m.inboundBuffer = n }
}

func WithHandshake(fn HandshakeFunc) Option {
	return func(m *Manager) { m.handshake = fn }
}

func WithStateFunc(fn StateFunc) Option {
	return func(m *Manager) { m.onState = fn }
}

func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func New(t Transport, opts ...Option) *Manager {
	m := &Manager{
		transport:         t,
		maxAttempts:       DefaultMaxAttempts,
		retryDelay:        DefaultRetryDelay,
		keepaliveInterval: DefaultKeepaliveInterval,
		keepaliveTimeout:  DefaultKeepaliveTimeout,
		inboundBuffer:     DefaultInboundBuffer,
		log:               slog.New(slog.DiscardHandler),
		metrics:           metrics.Discard(),
		kick:              make(chan struct{}, 1),
		ready:             make(chan struct{}),
		done:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.maxAttempts < 1 {
		m.maxAttempts = 1
	}
	m.msgs = make(chan []byte, m.inboundBuffer)
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Connect starts the manager and waits until the first connection is up
// or every attempt failed. If ctx ends first the manager is shut down.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	go m.run()

	select {
	case <-m.ready:
		return nil
	case <-m.done:
		if err := m.Err(); err != nil {
			return err
		}
		return ErrClosed
	case <-ctx.Done():
		m.Disconnect()
		return ctx.Err()
	}
}

// Send enqueues a message. It never blocks; queued messages survive
// reconnects and are written in order.
func (m *Manager) Send(data []byte) error {
	if m.State() == StateClosed {
		return ErrClosed
	}
	n := m.queue.push(data)
	m.metrics.QueueDepth.Set(float64(n))
	select {
	case m.kick <- struct{}{}:
	default:
	}
	return nil
}

// Messages returns the inbound stream. It is closed when the manager closes.
func (m *Manager) Messages() <-chan []byte {
	return m.msgs
}

// Disconnect closes the manager. It is safe to call from any state and
// more than once. Messages still queued are kept, see Pending.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	started := m.started
	if !started && m.state != StateClosed {
		m.started = true
		m.mu.Unlock()
		m.cancel()
		m.setState(StateClosed)
		close(m.msgs)
		close(m.done)
		return
	}
	m.mu.Unlock()

	m.cancel()
	<-m.done
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Done is closed once the manager reached StateClosed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Err returns why the manager closed: nil after Disconnect, otherwise the
// error that ended the last reconnect cycle.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// QueueLen returns the number of messages waiting to be sent.
func (m *Manager) QueueLen() int {
	return m.queue.len()
}

// Pending returns a copy of the queued messages, oldest first.
func (m *Manager) Pending() [][]byte {
	return m.queue.snapshot()
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	from := m.state
	m.state = s
	m.mu.Unlock()
	if from == s {
		return
	}

	m.metrics.ConnectionState.Set(float64(s))
	m.log.Debug("connection state", slog.String("from", from.String()), slog.String("to", s.String()))
	if m.onState != nil {
		m.onState(from, s)
	}
}

func (m *Manager) run() {
	var readyOnce sync.Once
	defer func() {
		m.setState(StateClosed)
		close(m.msgs)
		close(m.done)
	}()

	m.setState(StateConnecting)
	for {
		c, err := m.dial()
		if err != nil {
			if m.ctx.Err() == nil {
				m.log.Error("giving up on connection", slog.Any("err", err))
				m.mu.Lock()
				m.err = err
				m.mu.Unlock()
			}
			return
		}

		m.setState(StateConnected)
		readyOnce.Do(func() { close(m.ready) })

		err = m.serve(c)
		if m.ctx.Err() != nil {
			m.log.Info("disconnected", slog.Int("queued", m.queue.len()))
			return
		}

		m.log.Warn("connection lost, reconnecting", slog.Any("err", err))
		m.metrics.Reconnects.Inc()
		m.setState(StateReconnecting)
	}
}

// dial runs one cycle of at most maxAttempts attempts.
func (m *Manager) dial() (Conn, error) {
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(m.retryDelay):
			case <-m.ctx.Done():
				return nil, ErrClosed
			}
		}

		m.metrics.DialAttempts.Inc()
		c, err := m.transport.Dial(m.ctx)
		if err == nil {
			m.log.Info("connected", slog.Int("attempt", attempt))
			return c, nil
		}
		if m.ctx.Err() != nil {
			return nil, ErrClosed
		}

		lastErr = err
		m.metrics.DialFailures.Inc()
		m.log.Warn("dial failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", m.maxAttempts),
			slog.Any("err", err),
		)
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, m.maxAttempts, lastErr)
}

// serve runs reader, keepalive and drainer on c until one of them fails or
// the manager is disconnected. c is closed on return.
func (m *Manager) serve(c Conn) error {
	ctx, cancel := context.WithCancel(m.ctx)
	defer cancel()

	if m.handshake != nil {
		for _, msg := range m.handshake() {
			if err := c.Send(ctx, msg); err != nil {
				m.metrics.SendFailures.Inc()
				_ = c.Close()
				return fmt.Errorf("handshake: %w", err)
			}
			m.metrics.MessagesSent.Inc()
		}
	}

	errc := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		errc <- m.readLoop(ctx, c)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		errc <- m.drainLoop(ctx, c)
	}()

	if m.keepaliveInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errc <- m.keepaliveLoop(ctx, c)
		}()
	}

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
	}
	cancel()
	if cerr := c.Close(); cerr != nil {
		m.log.Debug("close connection", slog.Any("err", cerr))
	}
	wg.Wait()
	return err
}

func (m *Manager) readLoop(ctx context.Context, c Conn) error {
	for {
		data, err := c.Receive(ctx)
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		m.metrics.MessagesReceived.Inc()
		select {
		case m.msgs <- data:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drainLoop is the only writer of queued messages on c. It drains when the
// connection comes up and on every kick from Send.
func (m *Manager) drainLoop(ctx context.Context, c Conn) error {
	for {
		if err := m.drain(ctx, c); err != nil {
			return err
		}
		select {
		case <-m.kick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) drain(ctx context.Context, c Conn) error {
	for {
		msg, ok := m.queue.pop()
		if !ok {
			m.metrics.QueueDepth.Set(0)
			return nil
		}
		if err := c.Send(ctx, msg); err != nil {
			n := m.queue.pushFront(msg)
			m.metrics.QueueDepth.Set(float64(n))
			m.metrics.SendFailures.Inc()
			return fmt.Errorf("send: %w", err)
		}
		m.metrics.MessagesSent.Inc()
	}
}

func (m *Manager) keepaliveLoop(ctx context.Context, c Conn) error {
	ticker := time.NewTicker(m.keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		pctx, cancel := context.WithTimeout(ctx, m.keepaliveTimeout)
		err := c.Ping(pctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.metrics.KeepaliveFailure.Inc()
			return fmt.Errorf("%w: %w", ErrKeepaliveTimeout, err)
		}
	}
}
