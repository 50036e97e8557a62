package audio

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T, f Format, opts ...SinkOption) (*Sink, *fakeOutput) {
	t.Helper()
	out := &fakeOutput{format: f}
	s, err := NewSink(out, opts...)
	require.NoError(t, err)
	return s, out
}

func TestSink_DropsWhileStopped(t *testing.T) {
	s, _ := newTestSink(t, WireFormat)

	require.NoError(t, s.Play(tone(WireFormat, ChunkDuration)))
	require.EqualValues(t, 1, s.Dropped())
	require.Zero(t, s.Buffered())
}

func TestSink_PlaysWireAudio(t *testing.T) {
	s, out := newTestSink(t, WireFormat)
	require.NoError(t, s.Start())
	require.Same(t, s, out.src)

	chunk := tone(WireFormat, ChunkDuration)
	require.NoError(t, s.PlayBase64(base64.StdEncoding.EncodeToString(chunk)))
	require.Equal(t, ChunkDuration, s.Buffered())

	p := make([]byte, len(chunk))
	n, err := out.src.Read(p)
	require.NoError(t, err)
	require.Equal(t, len(chunk), n)
	require.Equal(t, chunk, p)

	// nothing scheduled: silence
	p[0], p[1] = 1, 1
	n, err = out.src.Read(p)
	require.NoError(t, err)
	require.Equal(t, len(p), n)
	require.Equal(t, make([]byte, len(p)), p)
}

func TestSink_InterruptDiscardsScheduledAudio(t *testing.T) {
	s, _ := newTestSink(t, WireFormat)
	require.NoError(t, s.Start())

	for range 3 {
		require.NoError(t, s.Play(tone(WireFormat, ChunkDuration)))
	}
	require.Equal(t, 300*time.Millisecond, s.Buffered())

	s.Interrupt()
	require.Zero(t, s.Buffered())

	require.NoError(t, s.Play(tone(WireFormat, ChunkDuration)))
	require.Equal(t, ChunkDuration, s.Buffered())
}

func TestSink_ConvertsToNativeFormat(t *testing.T) {
	native := Format{SampleRate: 48000, Channels: 2, Encoding: Float32}
	s, _ := newTestSink(t, native)
	require.NoError(t, s.Start())

	require.NoError(t, s.Play(tone(WireFormat, ChunkDuration)))
	require.InDelta(t, float64(ChunkDuration), float64(s.Buffered()), float64(5*time.Millisecond))
}

func TestSink_DecodesG711(t *testing.T) {
	native := Format{SampleRate: 8000, Channels: 1, Encoding: Int16}
	s, out := newTestSink(t, native, WithCodec(CodecG711ULaw))
	require.NoError(t, s.Start())

	payload := CodecG711ULaw.Encode(tone(native, ChunkDuration))
	require.Len(t, payload, 800)
	require.NoError(t, s.Play(payload))
	require.Equal(t, ChunkDuration, s.Buffered())

	p := make([]byte, 1600)
	_, err := out.src.Read(p)
	require.NoError(t, err)
	require.Equal(t, CodecG711ULaw.Decode(payload), p)
}

func TestSink_DropsWhenFull(t *testing.T) {
	s, _ := newTestSink(t, WireFormat)
	require.NoError(t, s.Start())

	chunk := tone(WireFormat, ChunkDuration)
	for range int(DefaultPlaybackBuffer / ChunkDuration) {
		require.NoError(t, s.Play(chunk))
	}
	require.Zero(t, s.Dropped())

	require.NoError(t, s.Play(chunk))
	require.EqualValues(t, 1, s.Dropped())
	require.Equal(t, DefaultPlaybackBuffer, s.Buffered())
}

func TestSink_ReadsWholeFrames(t *testing.T) {
	s, out := newTestSink(t, WireFormat)
	require.NoError(t, s.Start())
	require.NoError(t, s.Play(pcm16(1, 2, 3)))

	p := make([]byte, 3)
	n, err := out.src.Read(p)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte{1, 0, 0}, p)

	p = make([]byte, 4)
	_, err = out.src.Read(p)
	require.NoError(t, err)
	require.Equal(t, pcm16(2, 3), p)
}

func TestSink_StopDropsAndIsIdempotent(t *testing.T) {
	s, out := newTestSink(t, WireFormat)
	require.NoError(t, s.Start())
	require.NoError(t, s.Play(tone(WireFormat, ChunkDuration)))

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	require.True(t, out.stopped)
	require.False(t, s.Running())
	require.Zero(t, s.Buffered())
}

func TestNewSink_RejectsFormat(t *testing.T) {
	_, err := NewSink(&fakeOutput{format: Format{SampleRate: 48000}})
	require.ErrorIs(t, err, ErrFormat)
}
