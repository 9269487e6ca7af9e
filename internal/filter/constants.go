package filter

import "math"

const (
	// MaxTaps bounds the length of any designed filter. Multirate prototypes
	// for ratios with a large denominator are long (roughly 50 taps per
	// branch times max(L, M)), so the bound is generous.
	MaxTaps = 1 << 20

	minFilterTaps = 3

	// Window normalization
	windowNormalizationFactor = 2.0

	// Sinc function constants
	sincCenterTap     = 1.0
	sincPiMultiplier  = math.Pi
	sincZeroThreshold = 1e-10

	nyquist = 0.5

	// Frequency response
	defaultResponsePoints = 512
	minMagnitude          = 1e-10
	dbMultiplier          = 20.0
)

// Multirate prototype constants: the passband edge sits at 90% of the
// narrower Nyquist and the stopband starts exactly at it.
const (
	multirateCutoff     = 0.45
	multirateTransition = 0.1

	// DefaultMultirateAttenuation is the stopband attenuation (dB) used
	// when a resampler designs its own filter.
	DefaultMultirateAttenuation = 80.0
)
