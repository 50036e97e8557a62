package main

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"

	"github.com/MarkKremer/microphone/v2"
	"github.com/codewandler/realtime-go/audio"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

const playLatency = 200 * time.Millisecond

// Mic is the default microphone as float32 mono capture input.
type Mic struct {
	format audio.Format

	mu     sync.Mutex
	stream *microphone.Streamer
	fn     func(audio.Frame)
}

func NewMic(sampleRate int) *Mic {
	return &Mic{format: audio.Format{SampleRate: sampleRate, Channels: 1, Encoding: audio.Float32}}
}

func (m *Mic) Format() audio.Format { return m.format }

func (m *Mic) Start(frameDuration time.Duration, fn func(audio.Frame)) error {
	sr := beep.SampleRate(m.format.SampleRate)
	stream, _, err := microphone.OpenDefaultStream(sr, 1)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		return err
	}

	m.mu.Lock()
	m.stream = stream
	m.fn = fn
	m.mu.Unlock()

	go m.captureLoop(stream, sr.N(frameDuration))
	return nil
}

func (m *Mic) captureLoop(stream *microphone.Streamer, n int) {
	frames := make([][2]float64, n)
	for {
		n, ok := stream.Stream(frames)
		if !ok {
			return
		}

		data := make([]byte, 0, 4*n)
		for _, s := range frames[:n] {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(float32(s[0])))
		}

		m.mu.Lock()
		fn := m.fn
		if fn != nil {
			fn(audio.Frame{Format: m.format, Data: data})
		}
		m.mu.Unlock()
		if fn == nil {
			return
		}
	}
}

func (m *Mic) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = nil
	if m.stream == nil {
		return nil
	}
	err := m.stream.Close()
	m.stream = nil
	return err
}

// Speaker plays int16 mono pulled from the sink through the beep speaker.
type Speaker struct {
	format audio.Format
	once   sync.Once
	player *pullStreamer
}

func NewSpeaker(sampleRate int) *Speaker {
	return &Speaker{format: audio.Format{SampleRate: sampleRate, Channels: 1, Encoding: audio.Int16}}
}

func (s *Speaker) Format() audio.Format { return s.format }

func (s *Speaker) Start(src io.Reader) error {
	sr := beep.SampleRate(s.format.SampleRate)
	var err error
	s.once.Do(func() { err = speaker.Init(sr, sr.N(playLatency)) })
	if err != nil {
		return err
	}
	s.player = &pullStreamer{src: src}
	speaker.Play(s.player)
	return nil
}

func (s *Speaker) Stop() error {
	speaker.Clear()
	return nil
}

// pullStreamer reads int16 mono from the sink, which pads with silence and
// never blocks.
type pullStreamer struct {
	src io.Reader
	buf []byte
}

func (p *pullStreamer) Stream(samples [][2]float64) (int, bool) {
	if cap(p.buf) < 2*len(samples) {
		p.buf = make([]byte, 2*len(samples))
	}
	buf := p.buf[:2*len(samples)]
	if _, err := io.ReadFull(p.src, buf); err != nil {
		return 0, false
	}
	for i := range samples {
		v := float64(int16(binary.LittleEndian.Uint16(buf[2*i:]))) / 32768
		samples[i] = [2]float64{v, v}
	}
	return len(samples), true
}

func (p *pullStreamer) Err() error { return nil }
