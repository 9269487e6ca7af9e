// Package engine implements the rational polyphase resampler.
package engine

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/tphakala/go-sdr-dsp/internal/filter"
	"github.com/tphakala/go-sdr-dsp/internal/mathutil"
	"github.com/tphakala/go-sdr-dsp/internal/pipeline"
	"github.com/tphakala/go-sdr-dsp/internal/simdops"
)

var (
	// ErrInvalidRatio is returned for non-positive factors, or for explicit
	// taps combined with a ratio that is not in lowest terms.
	ErrInvalidRatio = errors.New("invalid resampling ratio")

	// ErrEmptyFilter is returned for an explicit, zero-length tap set.
	ErrEmptyFilter = errors.New("empty filter")

	// ErrInvalidTaps is returned for taps containing NaN or Inf.
	ErrInvalidTaps = errors.New("non-finite filter taps")
)

// Sample is the set of sample types the resampler accepts.
type Sample interface {
	float32 | complex64
}

// Config configures a rational resampler.
type Config struct {
	// Interp (L) and Decim (M) give the output/input rate ratio L/M.
	Interp int
	Decim  int

	// Taps is an explicit prototype filter running at L times the input
	// rate. Nil means design one: the ratio is then reduced to lowest terms
	// first, since a filter for the reduced ratio is shorter.
	Taps []float64

	// Attenuation is the stopband attenuation (dB) of a designed filter.
	// Zero selects filter.DefaultMultirateAttenuation.
	Attenuation float64

	// Name labels the stage in pipeline descriptions.
	Name string
}

// Validate checks the configuration without designing anything.
func (c *Config) Validate() error {
	if c.Interp < 1 || c.Decim < 1 {
		return fmt.Errorf("%w: %d/%d", ErrInvalidRatio, c.Interp, c.Decim)
	}
	if c.Taps == nil {
		return nil
	}
	if len(c.Taps) == 0 {
		return ErrEmptyFilter
	}
	if g := mathutil.GCD(c.Interp, c.Decim); g != 1 {
		return fmt.Errorf("%w: explicit taps need %d/%d in lowest terms (gcd %d)", ErrInvalidRatio, c.Interp, c.Decim, g)
	}
	for i, h := range c.Taps {
		if math.IsNaN(h) || math.IsInf(h, 0) {
			return fmt.Errorf("%w: tap %d is %g", ErrInvalidTaps, i, h)
		}
	}
	return nil
}

// Rational converts a stream by the exact ratio L/M: conceptually it
// upsamples by L (zero stuffing), lowpass filters and keeps every M-th
// sample. Only the polyphase branch that lands on an output is evaluated:
//
//	y[m] = Σ_j h[p + jL] · x[i - j],  i = ⌊mM/L⌋,  p = mM mod L
//
// Output m is produced as soon as input i is available, so after N inputs
// exactly ⌈N·L/M⌉ outputs have been produced regardless of how the input
// was split into blocks. Complex input is filtered as separate I and Q
// planes with real taps.
type Rational[S Sample] struct {
	name   string
	interp int
	decim  int

	// Branch coefficients, reversed per branch (see filter.Bank).
	branches     [][]float32
	tapsPerPhase int
	filterLength int

	// Input history planes. Initially TapsPerPhase-1 zeros stand in for
	// the samples before the stream starts.
	histRe []float32
	histIm []float32

	// Position of the next output on the L-times rate grid, relative to
	// history[0].
	t int64

	complexInput bool
	ops          *simdops.Ops[float32]
	finished     bool

	samplesIn  int64
	samplesOut int64
}

// New creates a resampler from cfg.
func New[S Sample](cfg Config) (*Rational[S], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	interp, decim := cfg.Interp, cfg.Decim
	taps := cfg.Taps
	if taps == nil {
		interp, decim = mathutil.ReduceRatio(interp, decim)
		designed, err := filter.Multirate(interp, decim, cfg.Attenuation)
		if err != nil {
			return nil, fmt.Errorf("design filter for %d/%d: %w", interp, decim, err)
		}
		taps = designed
	}

	bank, err := filter.Decompose(taps, interp)
	if err != nil {
		return nil, err
	}

	branches := make([][]float32, bank.NumPhases)
	for p, b := range bank.Branches {
		branches[p] = simdops.Convert[float32](b)
	}

	name := cfg.Name
	if name == "" {
		name = "resample"
	}

	var zero S
	_, isComplex := any(zero).(complex64)

	r := &Rational[S]{
		name:         name,
		interp:       interp,
		decim:        decim,
		branches:     branches,
		tapsPerPhase: bank.TapsPerPhase,
		filterLength: bank.TotalTaps,
		complexInput: isComplex,
		ops:          simdops.For[float32](),
	}
	r.Reset()
	return r, nil
}

// NewRational is shorthand for New with explicit factors and optional taps.
func NewRational[S Sample](interp, decim int, taps []float64) (*Rational[S], error) {
	return New[S](Config{Interp: interp, Decim: decim, Taps: taps})
}

// Process appends input to the history and emits every output whose
// newest input is now available. consumed always equals len(input).
func (r *Rational[S]) Process(input []S) ([]S, int, error) {
	if r.finished {
		return nil, 0, pipeline.ErrFinished
	}
	if len(input) == 0 {
		return []S{}, 0, nil
	}

	r.appendInput(input)
	r.samplesIn += int64(len(input))

	re, im := r.run()
	r.samplesOut += int64(len(re))
	return r.pack(re, im), len(input), nil
}

func (r *Rational[S]) appendInput(input []S) {
	switch in := any(input).(type) {
	case []float32:
		r.histRe = append(r.histRe, in...)
	case []complex64:
		n := len(r.histRe)
		r.histRe = slices.Grow(r.histRe, len(in))[:n+len(in)]
		r.histIm = slices.Grow(r.histIm, len(in))[:n+len(in)]
		simdops.SplitComplex(r.histRe[n:], r.histIm[n:], in)
	}
}

func (r *Rational[S]) pack(re, im []float32) []S {
	var out []S
	switch o := any(&out).(type) {
	case *[]float32:
		*o = re
	case *[]complex64:
		c := make([]complex64, len(re))
		for i := range c {
			c[i] = complex(re[i], im[i])
		}
		*o = c
	}
	return out
}

// run evaluates all outputs the current history allows and drops the
// history no future output needs.
func (r *Rational[S]) run() (outRe, outIm []float32) {
	L, M := int64(r.interp), int64(r.decim)
	span := int64(r.tapsPerPhase - 1)
	histLen := int64(len(r.histRe))

	t := r.t
	n := 0
	if t/L < histLen {
		n = int(mathutil.CeilDiv(histLen*L-t, M))
	}

	outRe = make([]float32, n)
	if r.complexInput {
		outIm = make([]float32, n)
	}

	dot := r.ops.DotProductUnsafe
	for k := range n {
		i := t / L
		coeffs := r.branches[t%L]
		start := i - span
		outRe[k] = dot(coeffs, r.histRe[start:i+1])
		if r.complexInput {
			outIm[k] = dot(coeffs, r.histIm[start:i+1])
		}
		t += M
	}

	// Keep the newest TapsPerPhase-1 samples the next output reaches back to.
	drop := min(t/L-span, histLen)
	if drop > 0 {
		keep := histLen - drop
		copy(r.histRe, r.histRe[drop:])
		r.histRe = r.histRe[:keep]
		if r.complexInput {
			copy(r.histIm, r.histIm[drop:])
			r.histIm = r.histIm[:keep]
		}
		t -= drop * L
	}
	r.t = t

	return outRe, outIm
}

// Drain pushes enough zeros through the filter for the complete impulse
// response of the last input sample to reach the output, then finishes.
func (r *Rational[S]) Drain() ([]S, error) {
	if r.finished {
		return nil, nil
	}

	out, _, err := r.Process(make([]S, r.drainLength()))
	r.finished = true
	if err != nil {
		return nil, err
	}
	return out, nil
}

// drainLength is the filter length in input samples.
func (r *Rational[S]) drainLength() int {
	return r.tapsPerPhase
}

// Finished reports whether Drain was called.
func (r *Rational[S]) Finished() bool { return r.finished }

// Reset clears the history as at stream start.
func (r *Rational[S]) Reset() {
	span := r.tapsPerPhase - 1
	r.histRe = make([]float32, span, span+pipeline.DefaultBlockSize)
	if r.complexInput {
		r.histIm = make([]float32, span, span+pipeline.DefaultBlockSize)
	}
	r.t = int64(span) * int64(r.interp)
	r.samplesIn = 0
	r.samplesOut = 0
	r.finished = false
}

// Ratio returns the reduced interpolation and decimation factors in use.
func (r *Rational[S]) Ratio() (interp, decim int) {
	return r.interp, r.decim
}

// Rate returns the output/input rate ratio.
func (r *Rational[S]) Rate() float64 {
	return float64(r.interp) / float64(r.decim)
}

// Latency returns the filter group delay in output samples.
func (r *Rational[S]) Latency() float64 {
	return filter.GroupDelay(r.filterLength) / float64(r.decim)
}

// Statistics returns processing statistics.
func (r *Rational[S]) Statistics() map[string]int64 {
	return map[string]int64{
		"samplesIn":  r.samplesIn,
		"samplesOut": r.samplesOut,
	}
}
