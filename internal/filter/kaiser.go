// Package filter designs the FIR filters used by the DSP chain: Kaiser
// windowed-sinc lowpass filters, multirate prototypes and their polyphase
// decomposition. All design happens once, at construction.
package filter

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/tphakala/go-sdr-dsp/internal/mathutil"
	"github.com/tphakala/go-sdr-dsp/internal/simdops"
)

var (
	// ErrInvalidSpec is returned for filter specifications that cannot be met.
	ErrInvalidSpec = errors.New("invalid filter specification")

	// ErrTooManyTaps is returned when a filter design would need more than MaxTaps taps.
	ErrTooManyTaps = errors.New("filter too long")
)

// KaiserWindow generates a Kaiser window of the specified length and β parameter.
//
//	w[n] = I₀(β·√(1 - ((n - α)/α)²)) / I₀(β),  α = (N-1)/2
//
// The window is symmetric and peaks at 1.0 in the center.
func KaiserWindow(length int, beta float64) []float64 {
	if length < 1 {
		return []float64{}
	}

	window := make([]float64, length)
	if length == 1 {
		window[0] = sincCenterTap
		return window
	}

	alpha := float64(length-1) / windowNormalizationFactor
	i0Beta := mathutil.BesselI0(beta)

	for n := range length {
		x := (float64(n) - alpha) / alpha
		window[n] = mathutil.BesselI0(beta*math.Sqrt(1.0-x*x)) / i0Beta
	}

	return window
}

// Params describes a lowpass filter of explicit length.
type Params struct {
	// NumTaps is the filter length. Odd lengths give an integer group delay.
	NumTaps int

	// Cutoff is the normalized cutoff frequency (0 to 0.5 of the sample rate).
	Cutoff float64

	// Attenuation is the stopband attenuation in dB used to pick the window β.
	Attenuation float64

	// Gain is the DC gain the taps are normalized to.
	Gain float64
}

// Validate checks if filter parameters are valid.
func (p *Params) Validate() error {
	if p.NumTaps < minFilterTaps {
		return fmt.Errorf("%w: %d taps (minimum %d)", ErrInvalidSpec, p.NumTaps, minFilterTaps)
	}
	if p.NumTaps > MaxTaps {
		return fmt.Errorf("%w: %d taps (maximum %d)", ErrTooManyTaps, p.NumTaps, MaxTaps)
	}
	if p.Cutoff <= 0 || p.Cutoff >= nyquist {
		return fmt.Errorf("%w: cutoff %g must be in (0, 0.5)", ErrInvalidSpec, p.Cutoff)
	}
	if p.Attenuation < 0 {
		return fmt.Errorf("%w: attenuation %g dB must not be negative", ErrInvalidSpec, p.Attenuation)
	}
	if p.Gain <= 0 {
		return fmt.Errorf("%w: gain %g must be positive", ErrInvalidSpec, p.Gain)
	}
	return nil
}

// DesignLowPass designs a Kaiser windowed-sinc lowpass FIR filter of
// params.NumTaps taps. The ideal response sin(2πfc·x)/(πx) is truncated,
// windowed and normalized so the taps sum to params.Gain.
func DesignLowPass(params Params) ([]float64, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	beta := mathutil.KaiserBeta(params.Attenuation)
	window := KaiserWindow(params.NumTaps, beta)

	taps := make([]float64, params.NumTaps)
	center := float64(params.NumTaps-1) / windowNormalizationFactor

	for n := range params.NumTaps {
		x := float64(n) - center

		var sinc float64
		if math.Abs(x) < sincZeroThreshold {
			sinc = windowNormalizationFactor * params.Cutoff
		} else {
			sinc = math.Sin(windowNormalizationFactor*sincPiMultiplier*params.Cutoff*x) / (sincPiMultiplier * x)
		}
		taps[n] = sinc * window[n]
	}

	ops := simdops.For[float64]()
	sum := ops.Sum(taps)
	if math.Abs(sum) > sincZeroThreshold {
		ops.Scale(taps, taps, params.Gain/sum)
	}

	return taps, nil
}

// Spec describes a lowpass filter by its band edges. All frequencies are
// normalized to the sample rate the filter runs at.
type Spec struct {
	// Cutoff is the passband edge, in (0, 0.5).
	Cutoff float64

	// Transition is the width of the transition band. The stopband starts
	// at Cutoff + Transition/2 and must stay below Nyquist.
	Transition float64

	// Ripple is the linear stopband ripple in (0, 1). Ignored when
	// Attenuation is set.
	Ripple float64

	// Attenuation is the stopband attenuation in dB. Takes precedence over Ripple.
	Attenuation float64

	// Gain is the DC gain. Zero means unity.
	Gain float64
}

// Validate rejects specifications that cannot be realised. Out-of-range
// values are never clamped.
func (s *Spec) Validate() error {
	if s.Cutoff <= 0 || s.Cutoff >= nyquist || math.IsNaN(s.Cutoff) {
		return fmt.Errorf("%w: cutoff %g must be in (0, 0.5)", ErrInvalidSpec, s.Cutoff)
	}
	if s.Transition <= 0 || math.IsNaN(s.Transition) {
		return fmt.Errorf("%w: transition %g must be positive", ErrInvalidSpec, s.Transition)
	}
	if s.Cutoff+s.Transition/windowNormalizationFactor >= nyquist {
		return fmt.Errorf("%w: stopband edge %g reaches Nyquist", ErrInvalidSpec, s.Cutoff+s.Transition/windowNormalizationFactor)
	}
	if s.Attenuation < 0 || math.IsNaN(s.Attenuation) {
		return fmt.Errorf("%w: attenuation %g dB must not be negative", ErrInvalidSpec, s.Attenuation)
	}
	if s.Attenuation == 0 && (s.Ripple <= 0 || s.Ripple >= 1) {
		return fmt.Errorf("%w: ripple %g must be in (0, 1)", ErrInvalidSpec, s.Ripple)
	}
	if s.Gain < 0 {
		return fmt.Errorf("%w: gain %g must not be negative", ErrInvalidSpec, s.Gain)
	}
	return nil
}

// StopbandAttenuation returns the attenuation in dB the filter asks for.
func (s *Spec) StopbandAttenuation() float64 {
	if s.Attenuation > 0 {
		return s.Attenuation
	}
	return mathutil.AttenuationFromRipple(s.Ripple)
}

// Design designs a lowpass filter from band edges. The length comes from
// Kaiser's formula, always odd, and the taps sum to the requested gain.
func Design(spec Spec) ([]float64, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	att := spec.StopbandAttenuation()
	numTaps := mathutil.KaiserOrder(att, spec.Transition)

	gain := spec.Gain
	if gain == 0 {
		gain = 1
	}

	return DesignLowPass(Params{
		NumTaps:     numTaps,
		Cutoff:      spec.Cutoff,
		Attenuation: att,
		Gain:        gain,
	})
}

// Multirate designs the prototype filter for an interp/decim rational
// resampler. The filter runs at interp times the input rate, band-limits
// to 0.45/max(L, M) with a 0.1/max(L, M) transition, and has DC gain interp
// so zero-stuffing does not lose amplitude.
//
// A 1/1 ratio needs no filtering and returns the identity tap.
func Multirate(interp, decim int, attenuation float64) ([]float64, error) {
	if interp < 1 || decim < 1 {
		return nil, fmt.Errorf("%w: ratio %d/%d", ErrInvalidSpec, interp, decim)
	}
	if interp == 1 && decim == 1 {
		return []float64{1}, nil
	}
	if attenuation <= 0 {
		attenuation = DefaultMultirateAttenuation
	}

	span := float64(max(interp, decim))
	return Design(Spec{
		Cutoff:      multirateCutoff / span,
		Transition:  multirateTransition / span,
		Attenuation: attenuation,
		Gain:        float64(interp),
	})
}

// Response holds the frequency response of a filter.
type Response struct {
	// Frequencies at which the response was evaluated (normalized, 0 to 0.5)
	Frequencies []float64

	// Magnitude response at each frequency (linear scale)
	Magnitude []float64

	// Phase response at each frequency (radians)
	Phase []float64
}

// FrequencyResponse evaluates the DTFT H(e^jω) = Σ h[n]·e^(-jωn) of a FIR
// filter at numPoints frequencies from DC up to (but excluding) Nyquist.
func FrequencyResponse(taps []float64, numPoints int) Response {
	if numPoints <= 0 {
		numPoints = defaultResponsePoints
	}

	response := Response{
		Frequencies: make([]float64, numPoints),
		Magnitude:   make([]float64, numPoints),
		Phase:       make([]float64, numPoints),
	}

	for k := range numPoints {
		freq := float64(k) / float64(windowNormalizationFactor*float64(numPoints))
		response.Frequencies[k] = freq

		omega := windowNormalizationFactor * sincPiMultiplier * freq
		var h complex128
		for n, c := range taps {
			h += complex(c, 0) * cmplx.Rect(1, -omega*float64(n))
		}

		response.Magnitude[k] = cmplx.Abs(h)
		response.Phase[k] = cmplx.Phase(h)
	}

	return response
}

// MagnitudeDB converts linear magnitude to decibels, flooring at -200 dB.
func MagnitudeDB(magnitude float64) float64 {
	if magnitude < minMagnitude {
		magnitude = minMagnitude
	}
	return dbMultiplier * math.Log10(magnitude)
}

// StopbandAttenuation measures the worst-case attenuation in dB of taps
// relative to their DC gain, over frequencies at or above stopbandEdge.
func StopbandAttenuation(taps []float64, stopbandEdge float64, numPoints int) float64 {
	resp := FrequencyResponse(taps, numPoints)
	dc := math.Abs(simdops.For[float64]().Sum(taps))
	if dc < minMagnitude {
		return 0
	}

	worst := minMagnitude
	for k, f := range resp.Frequencies {
		if f >= stopbandEdge && resp.Magnitude[k] > worst {
			worst = resp.Magnitude[k]
		}
	}
	return -MagnitudeDB(worst / dc)
}

// GroupDelay returns the delay, in samples, of a linear-phase filter of n taps.
func GroupDelay(n int) float64 {
	if n < 1 {
		return 0
	}
	return float64(n-1) / windowNormalizationFactor
}
