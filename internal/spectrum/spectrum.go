// Package spectrum turns a complex sample stream into frames of per-bin
// power in dB, the input expected by the power meter.
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/tphakala/simd/c128"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/tphakala/go-sdr-dsp/internal/pipeline"
)

// ErrInvalidConfig is returned for unusable transform settings.
var ErrInvalidConfig = errors.New("invalid spectrum config")

const (
	// DefaultSize is the frame length of the spectrum and antenna programs.
	DefaultSize = 4096
	// DefaultReference is full scale for 8-bit receivers.
	DefaultReference = 127.0

	maxSize      = 1 << 22
	dbMultiplier = 20.0
)

// Config configures a Transform.
type Config struct {
	// Size is the number of complex samples (and bins) per frame.
	Size int
	// Shift moves the zero-frequency bin to the centre of the frame.
	Shift bool
	Window Window
	// Reference is the magnitude reported as 0 dB.
	Reference float64
}

// DefaultConfig returns a shifted, unwindowed 4096-point transform.
func DefaultConfig() Config {
	return Config{Size: DefaultSize, Shift: true, Window: WindowRect, Reference: DefaultReference}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Size <= 0 || c.Size > maxSize {
		return fmt.Errorf("%w: size %d outside (0, %d]", ErrInvalidConfig, c.Size, maxSize)
	}
	if _, ok := windowNames[c.Window]; !ok {
		return fmt.Errorf("%w: unknown window %d", ErrInvalidConfig, int(c.Window))
	}
	if !(c.Reference > 0) || math.IsInf(c.Reference, 0) {
		return fmt.Errorf("%w: reference %g must be positive and finite", ErrInvalidConfig, c.Reference)
	}
	return nil
}

// Transform is a block converting frames of Size complex samples into
// Size dB values. Incomplete frames stay unconsumed.
type Transform struct {
	cfg      Config
	fft      *fourier.CmplxFFT
	window   []complex128
	seq      []complex128
	coeffs   []complex128
	finished bool
}

var _ pipeline.Block[complex64, float32] = (*Transform)(nil)

// New returns a Transform for cfg.
func New(cfg Config) (*Transform, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Transform{
		cfg:    cfg,
		fft:    fourier.NewCmplxFFT(cfg.Size),
		seq:    make([]complex128, cfg.Size),
		coeffs: make([]complex128, cfg.Size),
	}
	if cfg.Window != WindowRect {
		w := cfg.Window.Coefficients(cfg.Size)
		t.window = make([]complex128, len(w))
		for i, v := range w {
			t.window[i] = complex(v, 0)
		}
	}
	return t, nil
}

// Config returns the transform configuration.
func (t *Transform) Config() Config { return t.cfg }

// Bins returns the complex spectrum of one frame, shifted when configured.
// The result is only valid until the next call.
func (t *Transform) Bins(frame []complex64) []complex128 {
	for i, v := range frame[:t.cfg.Size] {
		t.seq[i] = complex128(v)
	}
	if t.window != nil {
		c128.Mul(t.seq, t.seq, t.window)
	}
	t.coeffs = t.fft.Coefficients(t.coeffs, t.seq)
	if t.cfg.Shift {
		Shift(t.coeffs)
	}
	return t.coeffs
}

// Frame writes the dB spectrum of one frame into dst, which must hold Size values.
// Empty bins become -Inf.
func (t *Transform) Frame(dst []float32, frame []complex64) {
	for i, c := range t.Bins(frame) {
		dst[i] = float32(dbMultiplier * math.Log10(cmplx.Abs(c)/t.cfg.Reference))
	}
}

// Process transforms every complete frame in input.
func (t *Transform) Process(input []complex64) ([]float32, int, error) {
	if t.finished {
		return nil, 0, pipeline.ErrFinished
	}
	size := t.cfg.Size
	frames := len(input) / size
	if frames == 0 {
		return nil, 0, nil
	}
	out := make([]float32, frames*size)
	for f := range frames {
		t.Frame(out[f*size:(f+1)*size], input[f*size:(f+1)*size])
	}
	return out, frames * size, nil
}

// Drain marks the transform finished. A partial frame is never transformed.
func (t *Transform) Drain() ([]float32, error) {
	t.finished = true
	return nil, nil
}

// Finished reports whether the transform was drained.
func (t *Transform) Finished() bool { return t.finished }

// Reset clears the finished flag. The transform keeps no sample state.
func (t *Transform) Reset() { t.finished = false }

// Stages describes the transform as a unity-rate framing stage.
func (t *Transform) Stages() []pipeline.StageInfo {
	return []pipeline.StageInfo{{Name: "fft", Interp: 1, Decim: 1, Latency: float64(t.cfg.Size)}}
}

// Shift rotates s in place so the zero-frequency bin moves to index len(s)/2.
func Shift[T any](s []T) {
	n := len(s)
	if n < 2 {
		return
	}
	k := (n + 1) / 2
	reverse(s[:k])
	reverse(s[k:])
	reverse(s)
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
