package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codewandler/realtime-go/internal/metrics"
)

// Input is a hardware capture tap.
type Input interface {
	// Format is the native format of the delivered frames.
	Format() Format
	// Start begins calling fn with native buffers of about frameDuration.
	// fn runs on the device callback goroutine and never blocks.
	Start(frameDuration time.Duration, fn func(Frame)) error
	// Stop halts the tap. No callback runs after Stop returns.
	Stop() error
}

// DefaultFrameDuration is the native buffer size requested from the device:
// half a chunk, so two callbacks fill one chunk.
const DefaultFrameDuration = ChunkDuration / 2

var ErrCaptureRunning = errors.New("capture already running")

// Capture feeds an Input through an Accumulator and publishes the chunks.
type Capture struct {
	in            Input
	acc           *Accumulator
	frameDuration time.Duration
	backlog       int
	log           *slog.Logger
	metrics       *metrics.Metrics

	mu      sync.Mutex
	out     chan Chunk
	stop    context.CancelFunc
	running bool

	dropped atomic.Int64
	err     atomic.Pointer[error]
}

type CaptureOption func(*Capture)

// WithFrameDuration sets the requested native buffer duration.
func WithFrameDuration(d time.Duration) CaptureOption {
	return func(c *Capture) { c.frameDuration = d }
}

// WithBacklog sets how many chunks may wait for the consumer before new
// chunks are dropped.
func WithBacklog(n int) CaptureOption {
	return func(c *Capture) { c.backlog = n }
}

func WithAccumulator(acc *Accumulator) CaptureOption {
	return func(c *Capture) { c.acc = acc }
}

func WithCaptureLogger(log *slog.Logger) CaptureOption {
	return func(c *Capture) { c.log = log }
}

func WithCaptureMetrics(m *metrics.Metrics) CaptureOption {
	return func(c *Capture) { c.metrics = m }
}

func NewCapture(in Input, opts ...CaptureOption) *Capture {
	c := &Capture{
		in:            in,
		frameDuration: DefaultFrameDuration,
		backlog:       50,
		log:           slog.New(slog.DiscardHandler),
		metrics:       metrics.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.acc == nil {
		c.acc = NewAccumulator(WithAccumulatorLogger(c.log), WithAccumulatorMetrics(c.metrics))
	}
	return c
}

// Start opens the tap and returns the chunk stream. The stream is closed by
// Stop or when ctx is done. A format the accumulator cannot convert is
// reported here, before the tap opens.
func (c *Capture) Start(ctx context.Context) (<-chan Chunk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil, ErrCaptureRunning
	}
	if err := c.acc.Prepare(c.in.Format()); err != nil {
		return nil, err
	}

	out := make(chan Chunk, c.backlog)
	if err := c.in.Start(c.frameDuration, func(f Frame) { c.onFrame(out, f) }); err != nil {
		c.acc.Reset()
		return nil, fmt.Errorf("start input: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.out = out
	c.stop = cancel
	c.running = true
	c.dropped.Store(0)
	c.err.Store(nil)

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.out != out {
			return
		}
		if err := c.stopLocked(); err != nil {
			c.log.Error("stop capture", slog.Any("err", err))
		}
	}()

	c.log.Info("capture started",
		slog.String("format", c.in.Format().String()),
		slog.Duration("frame", c.frameDuration),
	)
	return out, nil
}

func (c *Capture) onFrame(out chan<- Chunk, f Frame) {
	chunk, ok, err := c.acc.Process(f)
	if err != nil {
		if c.err.CompareAndSwap(nil, &err) {
			c.log.Error("capture frame rejected", slog.Any("err", err))
		}
		return
	}
	if !ok {
		return
	}
	select {
	case out <- chunk:
	default:
		c.dropped.Add(1)
		c.metrics.CaptureDropped.Inc()
	}
}

// Stop closes the tap, the chunk stream and discards any partial chunk.
// Stopping a stopped capture is a no-op.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Capture) stopLocked() error {
	if !c.running {
		return nil
	}
	c.running = false
	c.stop()

	err := c.in.Stop()
	c.acc.Reset()
	close(c.out)
	c.log.Info("capture stopped", slog.Int64("dropped", c.dropped.Load()))
	if err != nil {
		return fmt.Errorf("stop input: %w", err)
	}
	return nil
}

// Running reports whether the tap is open.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Dropped returns the number of chunks discarded because the consumer was
// behind.
func (c *Capture) Dropped() int64 {
	return c.dropped.Load()
}

// Err returns the first frame error since Start, if any.
func (c *Capture) Err() error {
	if p := c.err.Load(); p != nil {
		return *p
	}
	return nil
}
