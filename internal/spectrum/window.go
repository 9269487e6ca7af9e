package spectrum

import (
	"fmt"
	"math"
	"strings"
)

// Window names a tapering window applied to each frame before the transform.
type Window int

const (
	// WindowRect leaves the frame untouched.
	WindowRect Window = iota
	WindowHann
	WindowHamming
	WindowBlackman
)

// Blackman coefficients (exact form a0 = 0.42).
const (
	blackmanA0 = 0.42
	blackmanA1 = 0.5
	blackmanA2 = 0.08

	hammingA0 = 0.54
	hammingA1 = 0.46
)

var windowNames = map[Window]string{
	WindowRect:     "rect",
	WindowHann:     "hann",
	WindowHamming:  "hamming",
	WindowBlackman: "blackman",
}

func (w Window) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("Window(%d)", int(w))
}

// ParseWindow parses a window name. The empty string selects WindowRect.
func ParseWindow(s string) (Window, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "", "none", "rectangular":
		return WindowRect, nil
	case "hanning":
		return WindowHann, nil
	}
	for w, n := range windowNames {
		if n == name {
			return w, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown window %q", ErrInvalidConfig, s)
}

// Coefficients returns the n window coefficients (symmetric form).
func (w Window) Coefficients(n int) []float64 {
	c := make([]float64, n)
	if n == 1 {
		c[0] = 1
		return c
	}
	den := float64(n - 1)
	for i := range c {
		x := 2 * math.Pi * float64(i) / den
		switch w {
		case WindowHann:
			c[i] = 0.5 - 0.5*math.Cos(x)
		case WindowHamming:
			c[i] = hammingA0 - hammingA1*math.Cos(x)
		case WindowBlackman:
			c[i] = blackmanA0 - blackmanA1*math.Cos(x) + blackmanA2*math.Cos(2*x)
		default:
			c[i] = 1
		}
	}
	return c
}
