package audio

import (
	"errors"
	"fmt"

	"github.com/faiface/beep"
	resampling "github.com/tphakala/go-audio-resampling"
)

// ErrFormat is returned when a format is unsupported or no converter can be
// built for it.
var ErrFormat = errors.New("unsupported audio format")

// ConverterKind selects the sample rate converter implementation.
type ConverterKind int

const (
	// ConverterBeep resamples every buffer on its own with beep.Resample.
	// Output starts with the first buffer, but each buffer is filtered with
	// zero padded edges, which can be heard as faint seams at buffer
	// boundaries, and each call allocates a new resampler.
	ConverterBeep ConverterKind = iota
	// ConverterSoxr keeps filter state across buffers, trading a short
	// startup delay for seamless buffer boundaries. The config layer
	// defaults to it.
	ConverterSoxr
)

func (k ConverterKind) String() string {
	switch k {
	case ConverterBeep:
		return "beep"
	case ConverterSoxr:
		return "soxr"
	}
	return fmt.Sprintf("converter(%d)", int(k))
}

// ParseConverterKind maps a config value to a ConverterKind.
func ParseConverterKind(s string) (ConverterKind, error) {
	switch s {
	case "", "beep":
		return ConverterBeep, nil
	case "soxr":
		return ConverterSoxr, nil
	}
	return 0, fmt.Errorf("%w: converter %q", ErrFormat, s)
}

// DefaultQuality is the beep.Resample quality used unless overridden.
const DefaultQuality = 3

// converter turns the samples of src into mono samples at the target rate
// and appends them to dst.
type converter interface {
	convert(dst []float64, src *sampleReader) ([]float64, error)
}

func newConverter(kind ConverterKind, quality int, from Format, toRate int) (converter, error) {
	if err := from.Validate(); err != nil {
		return nil, err
	}
	if from.SampleRate == toRate {
		return passthrough{}, nil
	}
	switch kind {
	case ConverterBeep:
		if quality < 1 || quality > 64 {
			return nil, fmt.Errorf("%w: resample quality %d", ErrFormat, quality)
		}
		return &beepConverter{
			from:    beep.SampleRate(from.SampleRate),
			to:      beep.SampleRate(toRate),
			quality: quality,
			scratch: make([][2]float64, 512),
		}, nil
	case ConverterSoxr:
		r, err := resampling.New(&resampling.Config{
			InputRate:  float64(from.SampleRate),
			OutputRate: float64(toRate),
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return &soxrConverter{r: r}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrFormat, kind)
}

type passthrough struct{}

func (passthrough) convert(dst []float64, src *sampleReader) ([]float64, error) {
	for {
		v, ok := src.next()
		if !ok {
			return dst, nil
		}
		dst = append(dst, v)
	}
}

type beepConverter struct {
	from, to beep.SampleRate
	quality  int
	scratch  [][2]float64
}

func (c *beepConverter) convert(dst []float64, src *sampleReader) ([]float64, error) {
	s := beep.Resample(c.quality, c.from, c.to, src)
	for {
		n, ok := s.Stream(c.scratch)
		for i := 0; i < n; i++ {
			dst = append(dst, c.scratch[i][0])
		}
		if !ok {
			break
		}
	}
	return dst, s.Err()
}

type soxrConverter struct {
	r  resampling.Resampler
	in []float64
}

func (c *soxrConverter) convert(dst []float64, src *sampleReader) ([]float64, error) {
	c.in = c.in[:0]
	for {
		v, ok := src.next()
		if !ok {
			break
		}
		c.in = append(c.in, v)
	}
	if len(c.in) == 0 {
		return dst, nil
	}
	out, err := c.r.Process(c.in)
	if err != nil {
		return dst, fmt.Errorf("resample: %w", err)
	}
	return append(dst, out...), nil
}
