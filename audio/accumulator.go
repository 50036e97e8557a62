package audio

import (
	"fmt"
	"log/slog"

	"github.com/codewandler/realtime-go/internal/metrics"
)

// Accumulator converts native frames to the wire format and cuts the result
// into chunks of exactly ChunkDuration.
//
// The converter is built on the first frame and rebuilt whenever the frame
// format changes. Audio shorter than a chunk stays buffered; it is never
// flushed as a short chunk. An Accumulator is not safe for concurrent use.
type Accumulator struct {
	kind    ConverterKind
	quality int
	log     *slog.Logger
	metrics *metrics.Metrics

	conv    converter
	convFor Format

	samples   []float64
	buf       []byte
	chunkSize int

	converted int64
	emitted   int64
}

type AccumulatorOption func(*Accumulator)

func WithConverter(kind ConverterKind) AccumulatorOption {
	return func(a *Accumulator) { a.kind = kind }
}

// WithQuality sets the beep.Resample quality, 1 to 64.
func WithQuality(q int) AccumulatorOption {
	return func(a *Accumulator) { a.quality = q }
}

func WithAccumulatorLogger(log *slog.Logger) AccumulatorOption {
	return func(a *Accumulator) { a.log = log }
}

func WithAccumulatorMetrics(m *metrics.Metrics) AccumulatorOption {
	return func(a *Accumulator) { a.metrics = m }
}

func NewAccumulator(opts ...AccumulatorOption) *Accumulator {
	a := &Accumulator{
		kind:      ConverterBeep,
		quality:   DefaultQuality,
		log:       slog.New(slog.DiscardHandler),
		metrics:   metrics.Discard(),
		chunkSize: ChunkBytes(),
	}
	for _, opt := range opts {
		opt(a)
	}
	// room for one chunk plus one oversized native buffer
	a.buf = make([]byte, 0, 2*a.chunkSize)
	a.samples = make([]float64, 0, a.chunkSize)
	return a
}

// Prepare builds the converter for f ahead of the first frame.
func (a *Accumulator) Prepare(f Format) error {
	if a.conv != nil && a.convFor == f {
		return nil
	}
	conv, err := newConverter(a.kind, a.quality, f, WireFormat.SampleRate)
	if err != nil {
		return fmt.Errorf("build %s converter for %s: %w", a.kind, f, err)
	}
	if a.conv != nil {
		a.log.Debug("input format changed, converter rebuilt",
			slog.String("from", a.convFor.String()),
			slog.String("to", f.String()),
		)
	}
	a.conv = conv
	a.convFor = f
	return nil
}

// Process converts frame and appends it to the pending audio. When the
// pending audio reaches a full chunk, the chunk is returned with true.
// At most one chunk is returned per call; a frame longer than a chunk
// leaves the excess buffered for the next call.
//
// On error nothing is consumed and no chunk is returned. The returned chunk
// is a new slice owned by the caller; the working buffers are reused.
func (a *Accumulator) Process(frame Frame) (Chunk, bool, error) {
	if err := a.Prepare(frame.Format); err != nil {
		return nil, false, err
	}
	if fb := frame.Format.FrameBytes(); len(frame.Data)%fb != 0 {
		return nil, false, fmt.Errorf("%w: %d bytes is not a multiple of %d byte frames", ErrFormat, len(frame.Data), fb)
	}

	var err error
	a.samples, err = a.conv.convert(a.samples[:0], newSampleReader(frame.Format, frame.Data))
	if err != nil {
		return nil, false, fmt.Errorf("convert %s: %w", frame.Format, err)
	}
	a.buf = appendSamples(a.buf, WireFormat, a.samples)
	a.converted += int64(len(a.samples))

	if len(a.buf) < a.chunkSize {
		return nil, false, nil
	}

	chunk := make(Chunk, a.chunkSize)
	copy(chunk, a.buf)
	n := copy(a.buf, a.buf[a.chunkSize:])
	a.buf = a.buf[:n]
	a.emitted += int64(chunk.Samples())
	a.metrics.ChunksEmitted.Inc()
	return chunk, true, nil
}

// Buffered returns the number of wire samples waiting for a full chunk.
func (a *Accumulator) Buffered() int {
	return len(a.buf) / WireFormat.FrameBytes()
}

// Converted returns the number of wire samples produced since the last Reset.
func (a *Accumulator) Converted() int64 {
	return a.converted
}

// Emitted returns the number of wire samples returned in chunks since the
// last Reset. Emitted()+Buffered() always equals Converted().
func (a *Accumulator) Emitted() int64 {
	return a.emitted
}

// Reset drops buffered audio and the converter.
func (a *Accumulator) Reset() {
	if dropped := a.Buffered(); dropped > 0 {
		a.log.Debug("dropping partial chunk", slog.Int("samples", dropped))
	}
	a.buf = a.buf[:0]
	a.conv = nil
	a.convFor = Format{}
	a.converted = 0
	a.emitted = 0
}
