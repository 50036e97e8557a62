package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCapture_EmitsChunks(t *testing.T) {
	in := &fakeInput{format: Format{SampleRate: 24000, Channels: 1, Encoding: Int16}}
	c := NewCapture(in)

	chunks, err := c.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, in.started)
	require.Equal(t, DefaultFrameDuration, in.frameDur)

	for range 5 {
		in.push(tone(in.format, 50*time.Millisecond))
	}
	require.Len(t, chunks, 2)
	require.Equal(t, 1200, c.acc.Buffered())

	require.NoError(t, c.Stop())
	require.Equal(t, 1, in.stopped)
	require.Zero(t, c.acc.Buffered(), "partial chunk is discarded on stop")

	var got int
	for chunk := range chunks {
		require.Len(t, chunk, ChunkBytes())
		got++
	}
	require.Equal(t, 2, got)
}

func TestCapture_RejectsFormatBeforeOpening(t *testing.T) {
	in := &fakeInput{format: Format{SampleRate: 0, Channels: 1, Encoding: Int16}}
	c := NewCapture(in)

	_, err := c.Start(context.Background())
	require.ErrorIs(t, err, ErrFormat)
	require.Zero(t, in.started)
	require.False(t, c.Running())
}

func TestCapture_InputStartFailure(t *testing.T) {
	boom := errors.New("device busy")
	in := &fakeInput{format: WireFormat, startErr: boom}
	c := NewCapture(in)

	_, err := c.Start(context.Background())
	require.ErrorIs(t, err, boom)
	require.False(t, c.Running())
}

func TestCapture_StartTwice(t *testing.T) {
	in := &fakeInput{format: WireFormat}
	c := NewCapture(in)

	_, err := c.Start(context.Background())
	require.NoError(t, err)
	_, err = c.Start(context.Background())
	require.ErrorIs(t, err, ErrCaptureRunning)

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
	require.Equal(t, 1, in.stopped)
}

func TestCapture_DropsWhenConsumerIsBehind(t *testing.T) {
	in := &fakeInput{format: WireFormat}
	c := NewCapture(in, WithBacklog(1))

	chunks, err := c.Start(context.Background())
	require.NoError(t, err)
	defer c.Stop()

	for range 3 {
		in.push(tone(WireFormat, ChunkDuration))
	}
	require.Len(t, chunks, 1)
	require.EqualValues(t, 2, c.Dropped())
}

func TestCapture_ContextCancelStops(t *testing.T) {
	in := &fakeInput{format: WireFormat}
	c := NewCapture(in)

	ctx, cancel := context.WithCancel(context.Background())
	chunks, err := c.Start(ctx)
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-chunks:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	require.False(t, c.Running())
}

func TestCapture_RestartAfterStop(t *testing.T) {
	in := &fakeInput{format: WireFormat}
	c := NewCapture(in)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := c.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Stop())
	cancel()

	chunks, err := c.Start(context.Background())
	require.NoError(t, err)
	defer c.Stop()

	// the first run's context going away must not stop the second run
	time.Sleep(20 * time.Millisecond)
	require.True(t, c.Running())

	in.push(tone(WireFormat, ChunkDuration))
	require.Len(t, chunks, 1)
}

func TestCapture_FrameErrorIsRecorded(t *testing.T) {
	in := &fakeInput{format: WireFormat}
	c := NewCapture(in)

	chunks, err := c.Start(context.Background())
	require.NoError(t, err)
	defer c.Stop()

	in.push([]byte{1, 2, 3})
	require.ErrorIs(t, c.Err(), ErrFormat)
	require.Empty(t, chunks)

	in.push(tone(WireFormat, ChunkDuration))
	require.Len(t, chunks, 1)
}
