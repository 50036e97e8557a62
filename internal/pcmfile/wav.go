package pcmfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/codewandler/realtime-go/audio"
	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// pcmStreamer streams interleaved int16 PCM as beep samples.
type pcmStreamer struct {
	data     []byte
	channels int
	pos      int
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	frame := 2 * s.channels
	for n < len(samples) && s.pos+frame <= len(s.data) {
		l := float64(int16(binary.LittleEndian.Uint16(s.data[s.pos:]))) / 32768
		r := l
		if s.channels > 1 {
			r = float64(int16(binary.LittleEndian.Uint16(s.data[s.pos+2:]))) / 32768
		}
		samples[n] = [2]float64{l, r}
		s.pos += frame
		n++
	}
	return n, n > 0
}

func (s *pcmStreamer) Err() error { return nil }

// EncodeWAV writes int16 PCM in f as a WAV file.
func EncodeWAV(w io.WriteSeeker, f audio.Format, pcm []byte) error {
	if f.Encoding != audio.Int16 || f.Channels > 2 {
		return fmt.Errorf("%w: wav output needs int16 mono or stereo, got %s", audio.ErrFormat, f)
	}
	return wav.Encode(w, &pcmStreamer{data: pcm, channels: f.Channels}, beep.Format{
		SampleRate:  beep.SampleRate(f.SampleRate),
		NumChannels: f.Channels,
		Precision:   2,
	})
}

// DecodeWAV reads a whole WAV file as int16 PCM.
func DecodeWAV(r io.Reader) ([]byte, audio.Format, error) {
	s, bf, err := wav.Decode(r)
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("decode wav: %w", err)
	}
	defer s.Close()

	f := audio.Format{SampleRate: int(bf.SampleRate), Channels: bf.NumChannels, Encoding: audio.Int16}
	if f.Channels > 2 {
		f.Channels = 2
	}

	var out []byte
	buf := make([][2]float64, 512)
	for {
		n, ok := s.Stream(buf)
		for _, smp := range buf[:n] {
			out = binary.LittleEndian.AppendUint16(out, uint16(toInt16(smp[0])))
			if f.Channels == 2 {
				out = binary.LittleEndian.AppendUint16(out, uint16(toInt16(smp[1])))
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, audio.Format{}, fmt.Errorf("decode wav: %w", err)
	}
	return out, f, nil
}

func toInt16(v float64) int16 {
	v = math.Round(max(-1, min(1, v)) * 32768)
	if v > math.MaxInt16 {
		v = math.MaxInt16
	}
	return int16(v)
}
