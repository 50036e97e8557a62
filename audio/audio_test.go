package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"
)

// tone returns d of a 440 Hz sine in f.
func tone(f Format, d time.Duration) []byte {
	n := f.Samples(d)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(f.SampleRate))
	}
	return appendSamples(nil, f, samples)
}

func pcm16(values ...int16) []byte {
	out := make([]byte, 0, 2*len(values))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint16(out, uint16(v))
	}
	return out
}

type fakeInput struct {
	format Format

	mu       sync.Mutex
	fn       func(Frame)
	started  int
	stopped  int
	startErr error
	frameDur time.Duration
}

func (in *fakeInput) Format() Format { return in.format }

func (in *fakeInput) Start(d time.Duration, fn func(Frame)) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.startErr != nil {
		return in.startErr
	}
	in.fn = fn
	in.frameDur = d
	in.started++
	return nil
}

func (in *fakeInput) Stop() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.fn = nil
	in.stopped++
	return nil
}

// push delivers one native buffer the way a device callback would.
func (in *fakeInput) push(data []byte) {
	in.mu.Lock()
	fn := in.fn
	in.mu.Unlock()
	if fn != nil {
		fn(Frame{Format: in.format, Data: data})
	}
}

type fakeOutput struct {
	format Format

	mu      sync.Mutex
	src     io.Reader
	stopped bool
}

func (o *fakeOutput) Format() Format { return o.format }

func (o *fakeOutput) Start(src io.Reader) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.src = src
	return nil
}

func (o *fakeOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = true
	return nil
}
