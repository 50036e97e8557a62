// Package pcmfile stands in for a microphone and a speaker: it plays raw
// PCM or WAV files into a session and records what would have been played.
package pcmfile

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/codewandler/realtime-go/audio"
)

var ErrRunning = errors.New("already started")

// chunkReader cuts r into chunks of exactly size bytes; only the last one
// may be shorter.
type chunkReader struct {
	r    io.Reader
	buf  []byte
	size int
	eof  bool
}

func newChunkReader(r io.Reader, size int) *chunkReader {
	return &chunkReader{
		r:    r,
		size: size,
		buf:  make([]byte, 0, size*2),
	}
}

func (c *chunkReader) next() ([]byte, error) {
	tmp := make([]byte, c.size)
	for len(c.buf) < c.size && !c.eof {
		n, err := c.r.Read(tmp)
		c.buf = append(c.buf, tmp[:n]...)
		if errors.Is(err, io.EOF) {
			c.eof = true
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if len(c.buf) == 0 && c.eof {
		return nil, io.EOF
	}

	n := min(c.size, len(c.buf))
	out := make([]byte, n)
	copy(out, c.buf[:n])
	c.buf = c.buf[n:]
	return out, nil
}

// Input delivers a PCM stream as capture frames, paced like a device.
type Input struct {
	r        io.Reader
	format   audio.Format
	realtime bool
	log      *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	done    chan struct{}
	err     error
	started bool
}

type InputOption func(*Input)

// WithRealtime paces frames at their duration. It is on by default; tests
// turn it off to deliver the whole stream at once.
func WithRealtime(on bool) InputOption {
	return func(in *Input) { in.realtime = on }
}

func WithInputLogger(log *slog.Logger) InputOption {
	return func(in *Input) { in.log = log }
}

func NewInput(r io.Reader, f audio.Format, opts ...InputOption) *Input {
	in := &Input{
		r:        r,
		format:   f,
		realtime: true,
		log:      slog.New(slog.DiscardHandler),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

func (in *Input) Format() audio.Format { return in.format }

// Start delivers frames of frameDuration to fn until the stream ends or
// Stop is called. An Input can be started once.
func (in *Input) Start(frameDuration time.Duration, fn func(audio.Frame)) error {
	if err := in.format.Validate(); err != nil {
		return err
	}
	size := in.format.Bytes(frameDuration)
	if size <= 0 {
		size = in.format.FrameBytes()
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.started {
		return ErrRunning
	}
	in.started = true
	in.stop = make(chan struct{})

	in.wg.Add(1)
	go in.run(newChunkReader(in.r, size), frameDuration, fn, in.stop)
	return nil
}

func (in *Input) run(cr *chunkReader, d time.Duration, fn func(audio.Frame), stop <-chan struct{}) {
	defer in.wg.Done()
	defer close(in.done)

	var tick <-chan time.Time
	if in.realtime && d > 0 {
		t := time.NewTicker(d)
		defer t.Stop()
		tick = t.C
	}

	frames := 0
	for {
		data, err := cr.next()
		if errors.Is(err, io.EOF) {
			in.log.Debug("input finished", slog.Int("frames", frames))
			return
		}
		if err != nil {
			in.log.Error("input read failed", slog.Any("err", err))
			in.mu.Lock()
			in.err = err
			in.mu.Unlock()
			return
		}

		// a torn trailing sample is not audio
		data = data[:len(data)-len(data)%in.format.FrameBytes()]
		if len(data) == 0 {
			return
		}

		if tick != nil {
			select {
			case <-tick:
			case <-stop:
				return
			}
		}
		select {
		case <-stop:
			return
		default:
		}
		fn(audio.Frame{Format: in.format, Data: data})
		frames++
	}
}

func (in *Input) Stop() error {
	in.mu.Lock()
	stop := in.stop
	in.stop = nil
	in.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	in.wg.Wait()
	return nil
}

// Done is closed once every frame was delivered or the input stopped.
func (in *Input) Done() <-chan struct{} {
	return in.done
}

func (in *Input) Err() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.err
}
