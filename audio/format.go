package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Encoding is the sample encoding of a PCM stream.
type Encoding int

const (
	Int16 Encoding = iota + 1
	Float32
)

func (e Encoding) String() string {
	switch e {
	case Int16:
		return "int16"
	case Float32:
		return "float32"
	}
	return fmt.Sprintf("encoding(%d)", int(e))
}

// BytesPerSample returns the size of one sample of one channel.
func (e Encoding) BytesPerSample() int {
	switch e {
	case Int16:
		return 2
	case Float32:
		return 4
	}
	return 0
}

// Format describes interleaved little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
	Encoding   Encoding
}

// WireFormat is the encoding the connection carries: 24 kHz mono int16.
var WireFormat = Format{SampleRate: 24000, Channels: 1, Encoding: Int16}

// ChunkDuration is the amount of audio in one wire chunk.
const ChunkDuration = 100 * time.Millisecond

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", f.SampleRate, f.Channels, f.Encoding)
}

// Validate reports an ErrFormat for formats the pipeline cannot convert.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrFormat, f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: %d channels", ErrFormat, f.Channels)
	}
	if f.Encoding.BytesPerSample() == 0 {
		return fmt.Errorf("%w: %s", ErrFormat, f.Encoding)
	}
	return nil
}

// FrameBytes returns the size of one sample frame across all channels.
func (f Format) FrameBytes() int {
	return f.Encoding.BytesPerSample() * f.Channels
}

// Samples returns the number of sample frames in d.
func (f Format) Samples(d time.Duration) int {
	return int(float64(f.SampleRate) * d.Seconds())
}

// Bytes returns the byte length of d worth of audio.
func (f Format) Bytes(d time.Duration) int {
	return f.Samples(d) * f.FrameBytes()
}

// Duration returns the play time of n bytes.
func (f Format) Duration(n int) time.Duration {
	fb := f.FrameBytes()
	if fb == 0 || f.SampleRate == 0 {
		return 0
	}
	return time.Duration(n/fb) * time.Second / time.Duration(f.SampleRate)
}

// ChunkBytes is the byte size of one wire chunk.
func ChunkBytes() int {
	return WireFormat.Bytes(ChunkDuration)
}

// Frame is one native hardware buffer.
type Frame struct {
	Format Format
	Data   []byte
}

// Chunk is exactly ChunkDuration of wire format audio.
type Chunk []byte

// Samples returns the number of wire samples in c.
func (c Chunk) Samples() int {
	return len(c) / WireFormat.FrameBytes()
}

// Base64 returns the payload for an input_audio_buffer.append event.
func (c Chunk) Base64() string {
	return base64.StdEncoding.EncodeToString(c)
}

// sampleReader walks a native buffer frame by frame, mixing all channels
// down to one value in [-1, 1]. It reads the source in place.
type sampleReader struct {
	f    Format
	data []byte
	pos  int
}

func newSampleReader(f Format, data []byte) *sampleReader {
	return &sampleReader{f: f, data: data}
}

func (r *sampleReader) len() int {
	return len(r.data) / r.f.FrameBytes()
}

func (r *sampleReader) next() (float64, bool) {
	fb := r.f.FrameBytes()
	if r.pos+fb > len(r.data) {
		return 0, false
	}
	var sum float64
	bps := r.f.Encoding.BytesPerSample()
	for ch := 0; ch < r.f.Channels; ch++ {
		sum += decodeSample(r.f.Encoding, r.data[r.pos+ch*bps:])
	}
	r.pos += fb
	return sum / float64(r.f.Channels), true
}

// Stream makes sampleReader a beep.Streamer; mono is duplicated to both sides.
func (r *sampleReader) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) {
		v, more := r.next()
		if !more {
			break
		}
		samples[n][0] = v
		samples[n][1] = v
		n++
	}
	return n, n > 0
}

func (r *sampleReader) Err() error { return nil }

func decodeSample(e Encoding, b []byte) float64 {
	switch e {
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768.0
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return 0
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}

func toInt16(s float64) int16 {
	v := math.Round(s * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(v)
}

// appendSamples encodes mono samples into f, duplicating across channels.
func appendSamples(dst []byte, f Format, samples []float64) []byte {
	for _, s := range samples {
		s = clamp(s)
		for ch := 0; ch < f.Channels; ch++ {
			switch f.Encoding {
			case Int16:
				dst = binary.LittleEndian.AppendUint16(dst, uint16(toInt16(s)))
			case Float32:
				dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(s)))
			}
		}
	}
	return dst
}
