// Package testutil provides reusable test helpers for the DSP packages:
// assertions over tap sets and sample streams, and synthetic signal generators.
package testutil

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Default tolerances for various test scenarios.
const (
	DefaultTolerance = 1e-10
	DBTolerance      = 0.01
)

const halfDivisor = 2

// AssertSymmetric verifies that a slice is symmetric (s[i] == s[n-1-i]).
func AssertSymmetric(t *testing.T, s []float64, tolerance float64) bool {
	t.Helper()
	n := len(s)
	for i := 0; i < n/halfDivisor; i++ {
		j := n - 1 - i
		if !assert.InDelta(t, s[i], s[j], tolerance,
			"slice not symmetric at i=%d: s[%d]=%f != s[%d]=%f", i, i, s[i], j, s[j]) {
			return false
		}
	}
	return true
}

// AssertFinite verifies that no element of a real or complex sample slice is NaN or Inf.
func AssertFinite[S float32 | float64 | complex64](t *testing.T, s []S) bool {
	t.Helper()
	for i, v := range s {
		var re, im float64
		switch x := any(v).(type) {
		case float32:
			re = float64(x)
		case float64:
			re = x
		case complex64:
			re, im = float64(real(x)), float64(imag(x))
		}
		if math.IsNaN(re) || math.IsNaN(im) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(re, 0) || math.IsInf(im, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertDCGain verifies that the sum of coefficients equals the expected DC gain.
func AssertDCGain(t *testing.T, coeffs []float64, expectedGain, tolerance float64) bool {
	t.Helper()
	var sum float64
	for _, c := range coeffs {
		sum += c
	}
	return assert.InDelta(t, expectedGain, sum, tolerance,
		"DC gain = %f, want %f", sum, expectedGain)
}

// AssertCenterIsMax verifies that the center element is the maximum value.
func AssertCenterIsMax(t *testing.T, s []float64) bool {
	t.Helper()
	if len(s) == 0 {
		return assert.Fail(t, "empty slice")
	}
	centerIdx := len(s) / halfDivisor
	centerValue := s[centerIdx]
	for i, v := range s {
		if v > centerValue {
			return assert.Fail(t, "center is not max",
				"s[%d]=%f > center s[%d]=%f", i, v, centerIdx, centerValue)
		}
	}
	return true
}

// AssertRelativeError verifies that the relative error between actual and expected is within tolerance.
func AssertRelativeError(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	if expected == 0 {
		return assert.InDelta(t, expected, actual, tolerance, msgAndArgs...)
	}
	relError := math.Abs(actual-expected) / math.Abs(expected)
	return assert.LessOrEqual(t, relError, tolerance,
		"relative error %e exceeds tolerance %e (expected=%f, actual=%f)",
		relError, tolerance, expected, actual)
}

// AssertOddLength verifies that a slice has an odd length.
func AssertOddLength(t *testing.T, s []float64) bool {
	t.Helper()
	return assert.Equal(t, 1, len(s)%halfDivisor, "slice length %d is not odd", len(s))
}

// AssertInRange verifies that a value is within [min, max].
func AssertInRange(t *testing.T, value, minVal, maxVal float64) bool {
	t.Helper()
	if value < minVal || value > maxVal {
		return assert.Fail(t, "value out of range",
			"value %f is outside range [%f, %f]", value, minVal, maxVal)
	}
	return true
}

// ComplexTone generates n samples of exp(j·2π·freq·k/rate) with the given amplitude.
func ComplexTone(freq, rate, amplitude float64, n int) []complex64 {
	out := make([]complex64, n)
	w := 2 * math.Pi * freq / rate
	for k := range out {
		out[k] = complex64(cmplx.Rect(amplitude, w*float64(k)))
	}
	return out
}

// RealTone generates n samples of amplitude·sin(2π·freq·k/rate).
func RealTone(freq, rate, amplitude float64, n int) []float32 {
	out := make([]float32, n)
	w := 2 * math.Pi * freq / rate
	for k := range out {
		out[k] = float32(amplitude * math.Sin(w*float64(k)))
	}
	return out
}

// ToneFrequency estimates the frequency of a complex tone from its mean
// phase increment. It is exact for a clean single tone below rate/2.
func ToneFrequency(s []complex64, rate float64) float64 {
	if len(s) < halfDivisor {
		return 0
	}
	var acc complex128
	for i := 1; i < len(s); i++ {
		acc += complex128(s[i]) * cmplx.Conj(complex128(s[i-1]))
	}
	return cmplx.Phase(acc) * rate / (2 * math.Pi)
}

// RMS returns the root mean square of a real signal.
func RMS(s []float32) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(s)))
}

// ComplexRMS returns the root mean square magnitude of a complex signal.
func ComplexRMS(s []complex64) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		re, im := float64(real(v)), float64(imag(v))
		sum += re*re + im*im
	}
	return math.Sqrt(sum / float64(len(s)))
}

// Chunks splits n into consecutive chunk sizes drawn round-robin from sizes.
// Zero sizes are kept so callers exercise empty blocks.
func Chunks(n int, sizes []int) []int {
	var out []int
	for i := 0; n > 0; i++ {
		size := min(sizes[i%len(sizes)], n)
		out = append(out, size)
		n -= size
	}
	return out
}
