package mathutil

// GCD returns the greatest common divisor of a and b. GCD(0, 0) is 0.
func GCD(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ReduceRatio reduces interp/decim to lowest terms.
func ReduceRatio(interp, decim int) (reducedInterp, reducedDecim int) {
	g := GCD(interp, decim)
	if g <= 1 {
		return interp, decim
	}
	return interp / g, decim / g
}

// CeilDiv returns ceil(a/b) for non-negative a and positive b.
func CeilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
