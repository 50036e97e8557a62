package audio

import (
	"encoding/binary"
	"fmt"
)

// Codec is the payload encoding of wire audio.
type Codec int

const (
	CodecPCM16 Codec = iota
	CodecG711ULaw
	CodecG711ALaw
)

// ParseCodec maps a session audio format name to a Codec.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "pcm16":
		return CodecPCM16, nil
	case "g711_ulaw":
		return CodecG711ULaw, nil
	case "g711_alaw":
		return CodecG711ALaw, nil
	}
	return 0, fmt.Errorf("%w: codec %q", ErrFormat, name)
}

func (c Codec) String() string {
	switch c {
	case CodecPCM16:
		return "pcm16"
	case CodecG711ULaw:
		return "g711_ulaw"
	case CodecG711ALaw:
		return "g711_alaw"
	}
	return fmt.Sprintf("codec(%d)", int(c))
}

// Format is the PCM format a payload decodes to. G.711 runs at 8 kHz.
func (c Codec) Format() Format {
	if c == CodecPCM16 {
		return WireFormat
	}
	return Format{SampleRate: 8000, Channels: 1, Encoding: Int16}
}

// Decode expands a payload to little-endian int16 PCM.
func (c Codec) Decode(payload []byte) []byte {
	switch c {
	case CodecG711ULaw:
		return expand(payload, ULawToLinear)
	case CodecG711ALaw:
		return expand(payload, ALawToLinear)
	}
	return payload
}

// Encode compresses little-endian int16 PCM to the payload encoding.
func (c Codec) Encode(pcm []byte) []byte {
	switch c {
	case CodecG711ULaw:
		return compress(pcm, LinearToULaw)
	case CodecG711ALaw:
		return compress(pcm, LinearToALaw)
	}
	return pcm
}

func expand(in []byte, fn func(byte) int16) []byte {
	out := make([]byte, 0, 2*len(in))
	for _, b := range in {
		out = binary.LittleEndian.AppendUint16(out, uint16(fn(b)))
	}
	return out
}

func compress(in []byte, fn func(int16) byte) []byte {
	out := make([]byte, len(in)/2)
	for i := range out {
		out[i] = fn(int16(binary.LittleEndian.Uint16(in[2*i:])))
	}
	return out
}

const (
	ulawBias = 0x84
	ulawClip = 32635
)

func LinearToULaw(s int16) byte {
	v := int(s)
	sign := 0
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > ulawClip {
		v = ulawClip
	}
	v += ulawBias

	exp := 7
	for mask := 0x4000; v&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mant := (v >> (exp + 3)) & 0x0F
	return ^byte(sign | exp<<4 | mant)
}

func ULawToLinear(u byte) int16 {
	u = ^u
	exp := int(u>>4) & 0x07
	mant := int(u) & 0x0F
	v := ((mant<<3)+ulawBias)<<exp - ulawBias
	if u&0x80 != 0 {
		return int16(-v)
	}
	return int16(v)
}

var alawSegEnd = [8]int{0x1F, 0x3F, 0x7F, 0xFF, 0x1FF, 0x3FF, 0x7FF, 0xFFF}

func LinearToALaw(s int16) byte {
	v := int(s) >> 3
	mask := 0xD5
	if v < 0 {
		mask = 0x55
		v = -v - 1
	}

	seg := 0
	for seg < len(alawSegEnd) && v > alawSegEnd[seg] {
		seg++
	}
	if seg >= len(alawSegEnd) {
		return byte(0x7F ^ mask)
	}

	a := seg << 4
	if seg < 2 {
		a |= (v >> 1) & 0x0F
	} else {
		a |= (v >> seg) & 0x0F
	}
	return byte(a ^ mask)
}

func ALawToLinear(a byte) int16 {
	a ^= 0x55
	t := int(a&0x0F) << 4
	seg := int(a&0x70) >> 4
	switch seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= seg - 1
	}
	if a&0x80 != 0 {
		return int16(t)
	}
	return int16(-t)
}
