package pcmfile

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/codewandler/realtime-go/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []byte {
	out := make([]byte, 0, 2*n)
	for i := range n {
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(i%2000-1000)))
	}
	return out
}

func TestChunkReader(t *testing.T) {
	data := []byte("abcdefghij")
	cr := newChunkReader(iotest.OneByteReader(bytes.NewReader(data)), 4)

	var got []string
	for {
		c, err := cr.next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, string(c))
	}
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, got)
}

func TestChunkReader_Error(t *testing.T) {
	cr := newChunkReader(iotest.ErrReader(io.ErrUnexpectedEOF), 4)
	_, err := cr.next()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestInput_FeedsCapture(t *testing.T) {
	// 250ms of wire audio: two full chunks, the rest is dropped on stop
	pcm := ramp(audio.WireFormat.Samples(250 * time.Millisecond))
	in := NewInput(bytes.NewReader(pcm), audio.WireFormat, WithRealtime(false))

	capture := audio.NewCapture(in, audio.WithBacklog(10))
	chunks, err := capture.Start(context.Background())
	require.NoError(t, err)

	select {
	case <-in.Done():
	case <-time.After(time.Second):
		t.Fatal("input not finished")
	}
	require.NoError(t, capture.Stop())

	var got []byte
	for c := range chunks {
		assert.Len(t, c, audio.ChunkBytes())
		got = append(got, c...)
	}
	assert.Equal(t, pcm[:2*audio.ChunkBytes()], got)
	assert.NoError(t, in.Err())
}

func TestInput_TornTrailingSample(t *testing.T) {
	pcm := append(ramp(10), 0x01)
	in := NewInput(bytes.NewReader(pcm), audio.WireFormat, WithRealtime(false))

	var mu sync.Mutex
	var got []byte
	require.NoError(t, in.Start(time.Millisecond, func(f audio.Frame) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, f.Data...)
	}))
	<-in.Done()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, pcm[:20], got)
}

func TestInput_StartTwice(t *testing.T) {
	in := NewInput(bytes.NewReader(nil), audio.WireFormat, WithRealtime(false))
	require.NoError(t, in.Start(audio.DefaultFrameDuration, func(audio.Frame) {}))
	require.ErrorIs(t, in.Start(audio.DefaultFrameDuration, func(audio.Frame) {}), ErrRunning)
	require.NoError(t, in.Stop())
	require.NoError(t, in.Stop())
}

func TestInput_StopWhilePaced(t *testing.T) {
	pcm := ramp(audio.WireFormat.Samples(10 * time.Second))
	in := NewInput(bytes.NewReader(pcm), audio.WireFormat)

	frames := 0
	var mu sync.Mutex
	require.NoError(t, in.Start(50*time.Millisecond, func(audio.Frame) {
		mu.Lock()
		defer mu.Unlock()
		frames++
	}))
	time.Sleep(120 * time.Millisecond)
	require.NoError(t, in.Stop())

	mu.Lock()
	n := frames
	mu.Unlock()
	assert.Less(t, n, 10)

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, n, frames)
}

func TestOutput_RecordsSink(t *testing.T) {
	var rec bytes.Buffer
	out := NewOutput(&rec, audio.WireFormat, WithFrame(5*time.Millisecond), WithSkipSilence())

	sink, err := audio.NewSink(out)
	require.NoError(t, err)
	require.NoError(t, sink.Start())

	speech := ramp(audio.WireFormat.Samples(20 * time.Millisecond))
	for i := 0; i < len(speech); i += 2 {
		if speech[i] == 0 && speech[i+1] == 0 {
			speech[i] = 1
		}
	}
	require.NoError(t, sink.Play(speech))

	require.Eventually(t, func() bool { return out.Written() >= int64(len(speech)) }, time.Second, time.Millisecond)
	require.NoError(t, sink.Stop())
	assert.Equal(t, speech, rec.Bytes()[:len(speech)])
}

func TestWAV_Roundtrip(t *testing.T) {
	f := audio.Format{SampleRate: 16000, Channels: 1, Encoding: audio.Int16}
	pcm := ramp(1600)

	path := filepath.Join(t.TempDir(), "out.wav")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, EncodeWAV(file, f, pcm))
	require.NoError(t, file.Close())

	file, err = os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	got, gotFormat, err := DecodeWAV(file)
	require.NoError(t, err)
	assert.Equal(t, f, gotFormat)
	require.Len(t, got, len(pcm))

	// beep scales by 2^15-1, so samples may be off by one step
	for i := 0; i < len(pcm); i += 2 {
		want := int16(binary.LittleEndian.Uint16(pcm[i:]))
		have := int16(binary.LittleEndian.Uint16(got[i:]))
		require.InDelta(t, want, have, 2, "sample %d", i/2)
	}
}

func TestWAV_RejectsFloat(t *testing.T) {
	f := audio.Format{SampleRate: 16000, Channels: 1, Encoding: audio.Float32}
	err := EncodeWAV(nil, f, nil)
	require.ErrorIs(t, err, audio.ErrFormat)
}
