package pcmfile

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/codewandler/realtime-go/audio"
)

// Output pulls from a playback source at device pace and writes the audio
// to w.
type Output struct {
	w         io.Writer
	format    audio.Format
	frame     time.Duration
	skipQuiet bool
	log       *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	written int64
	err     error
}

type OutputOption func(*Output)

func WithFrame(d time.Duration) OutputOption {
	return func(o *Output) { o.frame = d }
}

// WithSkipSilence drops frames that are entirely silent, so only what was
// actually spoken ends up in the file.
func WithSkipSilence() OutputOption {
	return func(o *Output) { o.skipQuiet = true }
}

func WithOutputLogger(log *slog.Logger) OutputOption {
	return func(o *Output) { o.log = log }
}

func NewOutput(w io.Writer, f audio.Format, opts ...OutputOption) *Output {
	o := &Output{
		w:      w,
		format: f,
		frame:  audio.DefaultFrameDuration,
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Output) Format() audio.Format { return o.format }

func (o *Output) Start(src io.Reader) error {
	if err := o.format.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stop != nil {
		return ErrRunning
	}
	o.stop = make(chan struct{})

	o.wg.Add(1)
	go o.run(src, o.stop)
	return nil
}

func (o *Output) run(src io.Reader, stop <-chan struct{}) {
	defer o.wg.Done()

	t := time.NewTicker(o.frame)
	defer t.Stop()

	buf := make([]byte, o.format.Bytes(o.frame))
	silence := make([]byte, len(buf))
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}

		n, err := src.Read(buf)
		if err != nil {
			o.fail(err)
			return
		}
		if o.skipQuiet && bytes.Equal(buf[:n], silence[:n]) {
			continue
		}
		if _, err := o.w.Write(buf[:n]); err != nil {
			o.fail(err)
			return
		}

		o.mu.Lock()
		o.written += int64(n)
		o.mu.Unlock()
	}
}

func (o *Output) fail(err error) {
	o.log.Error("output failed", slog.Any("err", err))
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
}

func (o *Output) Stop() error {
	o.mu.Lock()
	stop := o.stop
	o.stop = nil
	o.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	o.wg.Wait()
	return o.Err()
}

// Written returns the number of bytes written to w.
func (o *Output) Written() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.written
}

func (o *Output) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}
