// Package mathutil provides the numeric helpers behind filter design and
// rational rate conversion.
package mathutil

import (
	"math"
)

// BesselI0 computes the modified Bessel function of the first kind, order zero: I₀(x).
// This function is used in Kaiser window calculation for filter design.
//
// The implementation uses Chebyshev polynomial approximations:
//   - For |x| ≤ 3.75: Direct polynomial series expansion
//   - For |x| > 3.75: Asymptotic expansion with exponential scaling
//
// Reference: Abramowitz & Stegun, "Handbook of Mathematical Functions" 9.8.1, 9.8.2.
func BesselI0(x float64) float64 {
	ax := math.Abs(x)

	if ax < besselSmallArgThreshold {
		t := x / besselSmallArgThreshold
		t *= t
		return 1.0 + t*(besselI0Coeff1+t*(besselI0Coeff2+t*(besselI0Coeff3+
			t*(besselI0Coeff4+t*(besselI0Coeff5+t*besselI0Coeff6)))))
	}

	// I₀(x) ≈ (eˣ / √x) * P(3.75/x)
	t := besselSmallArgThreshold / ax
	result := besselI0AsympCoeff0 + t*(besselI0AsympCoeff1+t*(besselI0AsympCoeff2+
		t*(besselI0AsympCoeff3+t*(besselI0AsympCoeff4+t*(besselI0AsympCoeff5+
			t*(besselI0AsympCoeff6+t*(besselI0AsympCoeff7+t*besselI0AsympCoeff8)))))))

	return math.Exp(ax) * result / math.Sqrt(ax)
}

// KaiserBeta computes the Kaiser window β parameter from the desired
// stopband attenuation in decibels.
//
// Formula from Kaiser & Schafer:
//   - For att > 50 dB: β = 0.1102 * (att - 8.7)
//   - For 21 dB ≤ att ≤ 50 dB: β = 0.5842 * (att - 21)^0.4 + 0.07886 * (att - 21)
//   - For att < 21 dB: β = 0 (rectangular window)
func KaiserBeta(attenuation float64) float64 {
	if attenuation > kaiserAttHigh {
		return kaiserBetaHighCoeff1 * (attenuation - kaiserBetaHighOffset)
	} else if attenuation >= kaiserAttMedium {
		delta := attenuation - kaiserAttMedium
		return kaiserBetaMediumCoeff1*math.Pow(delta, kaiserBetaMediumPower) + kaiserBetaMediumCoeff2*delta
	}
	return 0.0
}

// AttenuationFromRipple converts a linear ripple (0 < ripple < 1) into the
// equivalent attenuation in dB: A = -20·log10(ripple).
func AttenuationFromRipple(ripple float64) float64 {
	return rippleDBMultiplier * math.Log10(ripple)
}

// KaiserOrder returns the Kaiser filter length needed for the given
// attenuation (dB) and transition width (fraction of the sample rate):
//
//	N = ceil((A - 7.95) / (2.285 · 2π · Δf)) + 1
//
// The result is rounded up to an odd length so the filter has an integer
// group delay, and is never shorter than MinFilterLength. The caller is
// responsible for bounding the upper end. A non-positive transition width
// returns MinFilterLength.
func KaiserOrder(attenuation, transition float64) int {
	if transition <= 0 {
		return MinFilterLength
	}

	n := (attenuation - kaiserOrderOffset) / (kaiserOrderMultiplier * kaiserOrderPiFactor * math.Pi * transition)
	taps := int(math.Ceil(n)) + 1
	if taps%2 == 0 {
		taps++
	}

	return max(taps, MinFilterLength)
}
