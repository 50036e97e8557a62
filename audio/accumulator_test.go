package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAccumulator_FiveHalfChunkFrames(t *testing.T) {
	acc := NewAccumulator()
	frame := Frame{Format: WireFormat, Data: tone(WireFormat, 50*time.Millisecond)}

	var chunks []Chunk
	for range 5 {
		chunk, ok, err := acc.Process(frame)
		require.NoError(t, err)
		if ok {
			chunks = append(chunks, chunk)
		}
	}

	require.Len(t, chunks, 2)
	for _, c := range chunks {
		require.Len(t, c, ChunkBytes())
		require.Equal(t, 2400, c.Samples())
	}
	require.Equal(t, 1200, acc.Buffered())
	require.EqualValues(t, 6000, acc.Converted())
	require.EqualValues(t, 4800, acc.Emitted())
}

func TestAccumulator_Conservation(t *testing.T) {
	formats := []Format{
		{SampleRate: 48000, Channels: 2, Encoding: Float32},
		{SampleRate: 44100, Channels: 1, Encoding: Int16},
		{SampleRate: 16000, Channels: 1, Encoding: Int16},
		{SampleRate: 24000, Channels: 2, Encoding: Int16},
	}
	durations := []time.Duration{10 * time.Millisecond, 23 * time.Millisecond, 50 * time.Millisecond, 170 * time.Millisecond}

	for _, kind := range []ConverterKind{ConverterBeep, ConverterSoxr} {
		for _, f := range formats {
			t.Run(kind.String()+"/"+f.String(), func(t *testing.T) {
				acc := NewAccumulator(WithConverter(kind))
				chunks := 0
				for i := range 40 {
					d := durations[i%len(durations)]
					chunk, ok, err := acc.Process(Frame{Format: f, Data: tone(f, d)})
					require.NoError(t, err)
					if ok {
						chunks++
						require.Len(t, chunk, ChunkBytes())
					}
					require.Equal(t, acc.Converted(), acc.Emitted()+int64(acc.Buffered()))
				}
				require.EqualValues(t, chunks*ChunkBytes()/2, acc.Emitted())
				require.Positive(t, chunks)
			})
		}
	}
}

func TestAccumulator_OneChunkPerCall(t *testing.T) {
	acc := NewAccumulator()

	chunk, ok, err := acc.Process(Frame{Format: WireFormat, Data: tone(WireFormat, 250*time.Millisecond)})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, chunk, ChunkBytes())
	require.Equal(t, 3600, acc.Buffered())

	// an empty frame still releases what is already buffered, one chunk at a time
	_, ok, err = acc.Process(Frame{Format: WireFormat})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1200, acc.Buffered())

	_, ok, err = acc.Process(Frame{Format: WireFormat})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAccumulator_Passthrough(t *testing.T) {
	acc := NewAccumulator()
	in := make([]int16, 2400)
	for i := range in {
		in[i] = int16(i*13 - 16000)
	}
	in[0], in[1] = -32768, 32767

	chunk, ok, err := acc.Process(Frame{Format: WireFormat, Data: pcm16(in...)})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pcm16(in...), []byte(chunk))
}

func TestAccumulator_DownmixesChannels(t *testing.T) {
	stereo := Format{SampleRate: 24000, Channels: 2, Encoding: Int16}
	acc := NewAccumulator()

	data := make([]int16, 0, 2*2400)
	for range 2400 {
		data = append(data, 1000, 3000)
	}
	chunk, ok, err := acc.Process(Frame{Format: stereo, Data: pcm16(data...)})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pcm16(2000, 2000), []byte(chunk[:4]))
}

func TestAccumulator_FormatChangeRebuildsConverter(t *testing.T) {
	acc := NewAccumulator()
	hi := Format{SampleRate: 48000, Channels: 1, Encoding: Int16}

	_, _, err := acc.Process(Frame{Format: WireFormat, Data: tone(WireFormat, 50*time.Millisecond)})
	require.NoError(t, err)
	require.Equal(t, WireFormat, acc.convFor)

	_, _, err = acc.Process(Frame{Format: hi, Data: tone(hi, 50*time.Millisecond)})
	require.NoError(t, err)
	require.Equal(t, hi, acc.convFor)

	// buffered audio from the first format survives the switch
	require.Equal(t, acc.Converted(), acc.Emitted()+int64(acc.Buffered()))
	require.Greater(t, acc.Converted(), int64(1200))
}

func TestAccumulator_FormatErrors(t *testing.T) {
	tests := []struct {
		name  string
		acc   *Accumulator
		frame Frame
	}{
		{"zero format", NewAccumulator(), Frame{Data: []byte{1, 2}}},
		{"unknown encoding", NewAccumulator(), Frame{Format: Format{SampleRate: 16000, Channels: 1, Encoding: Encoding(9)}}},
		{"partial frame", NewAccumulator(), Frame{Format: WireFormat, Data: []byte{1, 2, 3}}},
		{"bad quality", NewAccumulator(WithQuality(0)), Frame{Format: Format{SampleRate: 16000, Channels: 1, Encoding: Int16}, Data: []byte{0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk, ok, err := tt.acc.Process(tt.frame)
			require.ErrorIs(t, err, ErrFormat)
			require.False(t, ok)
			require.Nil(t, chunk)
			require.Zero(t, tt.acc.Buffered())
			require.Zero(t, tt.acc.Converted())
		})
	}
}

// Audio shorter than a chunk is dropped on reset rather than flushed as a
// short chunk.
func TestAccumulator_PartialChunkDroppedOnReset(t *testing.T) {
	acc := NewAccumulator()
	_, ok, err := acc.Process(Frame{Format: WireFormat, Data: tone(WireFormat, 150*time.Millisecond)})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1200, acc.Buffered())

	acc.Reset()
	require.Zero(t, acc.Buffered())
	require.Zero(t, acc.Converted())
	require.Zero(t, acc.Emitted())

	_, ok, err = acc.Process(Frame{Format: WireFormat, Data: tone(WireFormat, 50*time.Millisecond)})
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1200, acc.Buffered())
}
