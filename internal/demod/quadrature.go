// Package demod implements the quadrature FM demodulator.
package demod

import (
	"math"

	"github.com/tphakala/go-sdr-dsp/internal/pipeline"
)

// Quadrature converts complex baseband to instantaneous frequency.
//
// Output i is gain·arg(x[i]·conj(x[i-1])), an angle in (-π, π]. The
// previous sample starts at zero, so the first output of a stream is 0.
// A zero or non-finite product yields 0 rather than NaN.
type Quadrature struct {
	gain     float32
	prev     complex64
	finished bool
}

// NewQuadrature returns a demodulator scaling its radian output by gain.
// A gain of 0 is treated as 1.
func NewQuadrature(gain float32) *Quadrature {
	if gain == 0 {
		gain = 1
	}
	return &Quadrature{gain: gain}
}

// GainForDeviation returns the gain that maps a frequency deviation of
// deviation Hz at sampleRate to an output of ±1.
func GainForDeviation(sampleRate, deviation float64) float32 {
	if sampleRate <= 0 || deviation <= 0 {
		return 1
	}
	return float32(sampleRate / (2 * math.Pi * deviation))
}

// Demodulate returns the phase step from prev to x in (-π, π].
func Demodulate(x, prev complex64) float32 {
	p := complex128(x) * complex(float64(real(prev)), -float64(imag(prev)))
	re, im := real(p), imag(p)
	if re == 0 && im == 0 {
		return 0
	}
	if math.IsNaN(re) || math.IsNaN(im) || math.IsInf(re, 0) || math.IsInf(im, 0) {
		return 0
	}
	// Compare after narrowing: angles just above -π round onto -π in float32.
	angle := float32(math.Atan2(im, re))
	if angle <= -math.Pi {
		angle = math.Pi
	}
	return angle
}

// Process demodulates every input sample. consumed always equals len(input).
func (q *Quadrature) Process(input []complex64) ([]float32, int, error) {
	if q.finished {
		return nil, 0, pipeline.ErrFinished
	}

	out := make([]float32, len(input))
	prev := q.prev
	for i, x := range input {
		out[i] = q.gain * Demodulate(x, prev)
		prev = x
	}
	q.prev = prev
	return out, len(input), nil
}

// Drain marks the demodulator finished. It buffers nothing.
func (q *Quadrature) Drain() ([]float32, error) {
	q.finished = true
	return nil, nil
}

// Finished reports whether Drain was called.
func (q *Quadrature) Finished() bool { return q.finished }

// Reset clears the previous sample, as at stream start.
func (q *Quadrature) Reset() {
	q.prev = 0
	q.finished = false
}

// Stages describes the demodulator.
func (q *Quadrature) Stages() []pipeline.StageInfo {
	return []pipeline.StageInfo{{Name: "quad-demod", Interp: 1, Decim: 1}}
}
