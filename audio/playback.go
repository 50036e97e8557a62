package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codewandler/realtime-go/internal/metrics"
	"github.com/smallnest/ringbuffer"
)

// Output is a hardware playback device that pulls native audio.
type Output interface {
	// Format is the native format the device plays.
	Format() Format
	// Start begins pulling from src. Reads never block.
	Start(src io.Reader) error
	Stop() error
}

// DefaultPlaybackBuffer is the amount of audio the sink schedules ahead.
const DefaultPlaybackBuffer = 10 * time.Second

// Sink converts wire audio to the output format and schedules it without
// blocking. While the sink is stopped, chunks are dropped.
type Sink struct {
	out     Output
	native  Format
	kind    ConverterKind
	quality int
	log     *slog.Logger
	metrics *metrics.Metrics

	codec   atomic.Int32
	running atomic.Bool
	dropped atomic.Int64

	mu      sync.Mutex // serializes Play and Interrupt
	conv    converter
	convFor Format
	samples []float64
	scratch []byte

	rb *ringbuffer.RingBuffer
}

type SinkOption func(*Sink)

func WithSinkConverter(kind ConverterKind) SinkOption {
	return func(s *Sink) { s.kind = kind }
}

func WithSinkLogger(log *slog.Logger) SinkOption {
	return func(s *Sink) { s.log = log }
}

func WithSinkMetrics(m *metrics.Metrics) SinkOption {
	return func(s *Sink) { s.metrics = m }
}

// WithCodec sets the payload encoding of incoming chunks.
func WithCodec(c Codec) SinkOption {
	return func(s *Sink) { s.codec.Store(int32(c)) }
}

func NewSink(out Output, opts ...SinkOption) (*Sink, error) {
	native := out.Format()
	if err := native.Validate(); err != nil {
		return nil, err
	}
	s := &Sink{
		out:     out,
		native:  native,
		kind:    ConverterBeep,
		quality: DefaultQuality,
		log:     slog.New(slog.DiscardHandler),
		metrics: metrics.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rb = ringbuffer.New(native.Bytes(DefaultPlaybackBuffer))
	return s, nil
}

// SetCodec switches the payload encoding, e.g. after the session output
// format changed.
func (s *Sink) SetCodec(c Codec) {
	s.codec.Store(int32(c))
}

func (s *Sink) Codec() Codec {
	return Codec(s.codec.Load())
}

// Start begins playback.
func (s *Sink) Start() error {
	if s.running.Load() {
		return nil
	}
	if err := s.out.Start(s); err != nil {
		return fmt.Errorf("start output: %w", err)
	}
	s.running.Store(true)
	s.log.Info("playback started", slog.String("format", s.native.String()))
	return nil
}

// Stop halts playback and drops scheduled audio.
func (s *Sink) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.Interrupt()
	if err := s.out.Stop(); err != nil {
		return fmt.Errorf("stop output: %w", err)
	}
	s.log.Info("playback stopped", slog.Int64("dropped", s.dropped.Load()))
	return nil
}

func (s *Sink) Running() bool {
	return s.running.Load()
}

// PlayBase64 decodes a base64 payload and plays it.
func (s *Sink) PlayBase64(payload string) error {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}
	return s.Play(data)
}

// Play schedules one wire chunk. It returns immediately; audio that arrives
// while the sink is stopped, or that does not fit the buffer, is dropped.
func (s *Sink) Play(payload []byte) error {
	if !s.running.Load() {
		s.drop("not running", len(payload))
		return nil
	}
	codec := s.Codec()
	src := codec.Format()
	pcm := codec.Decode(payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv == nil || s.convFor != src {
		conv, err := newConverter(s.kind, s.quality, src, s.native.SampleRate)
		if err != nil {
			return fmt.Errorf("build playback converter: %w", err)
		}
		s.conv, s.convFor = conv, src
	}

	var err error
	s.samples, err = s.conv.convert(s.samples[:0], newSampleReader(src, pcm))
	if err != nil {
		return fmt.Errorf("convert playback audio: %w", err)
	}
	s.scratch = appendSamples(s.scratch[:0], s.native, s.samples)

	if s.rb.Free() < len(s.scratch) {
		s.drop("buffer full", len(payload))
		return nil
	}
	if _, err := s.rb.Write(s.scratch); err != nil {
		return fmt.Errorf("schedule audio: %w", err)
	}
	s.metrics.PlaybackQueued.Set(float64(s.rb.Length()))
	return nil
}

func (s *Sink) drop(reason string, n int) {
	s.dropped.Add(1)
	s.metrics.PlaybackDropped.Inc()
	s.log.Debug("playback chunk dropped", slog.String("reason", reason), slog.Int("bytes", n))
}

// Interrupt discards all scheduled audio at once.
func (s *Sink) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rb.Reset()
	s.metrics.PlaybackQueued.Set(0)
}

// Buffered returns the scheduled play time.
func (s *Sink) Buffered() time.Duration {
	return s.native.Duration(s.rb.Length())
}

// Dropped returns the number of chunks dropped.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Read implements the device pull. It always fills p, padding with silence
// when not enough audio is scheduled, and reads whole frames only.
func (s *Sink) Read(p []byte) (int, error) {
	fb := s.native.FrameBytes()
	whole := p[:len(p)/fb*fb]
	n, err := s.rb.Read(whole)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
		return 0, err
	}
	clear(p[n:])
	return len(p), nil
}
