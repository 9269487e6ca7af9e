// Package shift implements the frequency shifter: a numerically controlled
// oscillator that moves a channel offset from the hardware center frequency
// down to DC.
package shift

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/tphakala/go-sdr-dsp/internal/pipeline"
)

// RenormInterval is the number of samples between phasor renormalizations.
// Without it the repeated complex multiply lets |phasor| drift away from 1.
const RenormInterval = 1024

// ErrInvalidRate is returned for a non-positive or non-finite sample rate.
var ErrInvalidRate = errors.New("invalid sample rate")

// ErrInvalidOffset is returned for a non-finite offset or one beyond half
// the sample rate.
var ErrInvalidOffset = errors.New("invalid frequency offset")

// Shifter multiplies each sample by a rotating unit phasor.
//
// Output i is input[i]·phasor[i] with phasor[0] = 1 and
// phasor[i] = phasor[i-1]·exp(-j·2π·offset/rate), so a tone at f leaves the
// shifter at f - offset. The oscillator runs in complex128.
//
// SetFrequency may be called from any goroutine. The new offset is applied
// at the start of the next Process call and the phase stays continuous.
type Shifter struct {
	rate float64

	mu         sync.Mutex
	pending    float64
	hasPending bool

	offset      float64
	phasor      complex128
	incr        complex128
	sinceRenorm int
	finished    bool
}

// New returns a shifter moving offset Hz to DC at the given sample rate.
func New(offset, sampleRate float64) (*Shifter, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidRate, sampleRate)
	}
	if err := checkOffset(offset, sampleRate); err != nil {
		return nil, err
	}

	s := &Shifter{rate: sampleRate, phasor: 1}
	s.setOffset(offset)
	return s, nil
}

func checkOffset(offset, rate float64) error {
	if math.IsNaN(offset) || math.IsInf(offset, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidOffset, offset)
	}
	if math.Abs(offset) > rate/2 {
		return fmt.Errorf("%w: %g Hz exceeds half the %g Hz sample rate", ErrInvalidOffset, offset, rate)
	}
	return nil
}

func (s *Shifter) setOffset(offset float64) {
	s.offset = offset
	s.incr = cmplx.Rect(1, -2*math.Pi*offset/s.rate)
}

// SetFrequency requests a new offset. It is applied at the next block boundary.
func (s *Shifter) SetFrequency(offset float64) error {
	if err := checkOffset(offset, s.rate); err != nil {
		return err
	}
	s.mu.Lock()
	s.pending = offset
	s.hasPending = true
	s.mu.Unlock()
	return nil
}

func (s *Shifter) applyPending() {
	s.mu.Lock()
	if s.hasPending {
		s.setOffset(s.pending)
		s.hasPending = false
	}
	s.mu.Unlock()
}

// Offset returns the offset currently applied to samples.
func (s *Shifter) Offset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// SampleRate returns the sample rate the shifter was built for.
func (s *Shifter) SampleRate() float64 {
	return s.rate
}

// Process shifts every input sample. consumed always equals len(input).
func (s *Shifter) Process(input []complex64) ([]complex64, int, error) {
	if s.finished {
		return nil, 0, pipeline.ErrFinished
	}
	s.applyPending()

	out := make([]complex64, len(input))
	s.shift(out, input)
	return out, len(input), nil
}

func (s *Shifter) shift(dst, src []complex64) {
	p, incr, n := s.phasor, s.incr, s.sinceRenorm
	for i, v := range src {
		dst[i] = complex64(complex128(v) * p)
		p *= incr
		n++
		if n == RenormInterval {
			p /= complex(cmplx.Abs(p), 0)
			n = 0
		}
	}
	s.phasor, s.sinceRenorm = p, n
}

// Drain marks the shifter finished. It buffers nothing.
func (s *Shifter) Drain() ([]complex64, error) {
	s.finished = true
	return nil, nil
}

// Finished reports whether Drain was called.
func (s *Shifter) Finished() bool { return s.finished }

// Reset restarts the oscillator at phase zero. A pending retune is kept.
func (s *Shifter) Reset() {
	s.phasor = 1
	s.sinceRenorm = 0
	s.finished = false
}

// Stages describes the shifter.
func (s *Shifter) Stages() []pipeline.StageInfo {
	return []pipeline.StageInfo{{Name: "shift", Interp: 1, Decim: 1}}
}

// PhasorMagnitude returns |phasor|, which renormalization keeps near 1.
func (s *Shifter) PhasorMagnitude() float64 {
	return cmplx.Abs(s.phasor)
}
