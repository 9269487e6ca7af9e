package mathutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/tphakala/go-sdr-dsp/internal/testutil"
)

func TestBesselI0(t *testing.T) {
	// Reference values from Abramowitz & Stegun table 9.8.
	tests := map[float64]float64{
		0:    1,
		0.5:  1.063483344,
		1:    1.266065848,
		2:    2.279585307,
		3:    4.880792565,
		3.75: 9.118945994,
		4:    11.30192217,
		5:    27.23987183,
		10:   2815.716628,
	}
	for x, want := range tests {
		testutil.AssertRelativeError(t, want, BesselI0(x), 1e-7, "I0(%g)", x)
		testutil.AssertRelativeError(t, want, BesselI0(-x), 1e-7, "I0(-%g)", x)
	}
	testutil.AssertRelativeError(t, 4.355826e7, BesselI0(20), 2e-6)
}

func TestBesselI0_EvenAndIncreasing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.Float64Range(0, 30).Draw(t, "x")
		dx := rapid.Float64Range(1e-3, 1).Draw(t, "dx")

		i0 := BesselI0(x)
		if i0 < 1 {
			t.Fatalf("I0(%g) = %g < 1", x, i0)
		}
		if BesselI0(-x) != i0 {
			t.Fatalf("I0 not even at %g", x)
		}
		if next := BesselI0(x + dx); next <= i0 {
			t.Fatalf("I0(%g) = %g not above I0(%g) = %g", x+dx, next, x, i0)
		}
	})
}

func BenchmarkBesselI0(b *testing.B) {
	for _, x := range []float64{1.5, 10} {
		b.Run(fmt.Sprint(x), func(b *testing.B) {
			for b.Loop() {
				_ = BesselI0(x)
			}
		})
	}
}

// TestKaiserBeta tests Kaiser beta calculation.
func TestKaiserBeta(t *testing.T) {
	tests := []struct {
		name        string
		attenuation float64
		expectedMin float64
		expectedMax float64
	}{
		{"20dB", 20.0, 0.0, 0.1},
		{"50dB", 50.0, 4.5, 4.6},
		{"60dB", 60.0, 5.6, 5.7},
		{"80dB", 80.0, 7.8, 7.9},
		{"100dB", 100.0, 10.0, 10.1},
		{"120dB", 120.0, 12.2, 12.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			beta := KaiserBeta(tt.attenuation)
			testutil.AssertInRange(t, beta, tt.expectedMin, tt.expectedMax)
		})
	}
}

// TestKaiserBeta_Monotonic tests KaiserBeta is monotonically increasing.
func TestKaiserBeta_Monotonic(t *testing.T) {
	prevBeta := KaiserBeta(20.0)
	for att := 25.0; att <= 150.0; att += 5.0 {
		beta := KaiserBeta(att)
		assert.GreaterOrEqual(t, beta, prevBeta,
			"KaiserBeta not monotonic at att=%v: %v < %v", att, beta, prevBeta)
		prevBeta = beta
	}
}

// TestKaiserOrder checks the kaiserord length estimate against hand-computed values.
func TestKaiserOrder(t *testing.T) {
	tests := []struct {
		name        string
		attenuation float64
		transition  float64
		want        int
	}{
		{"80dB wide", 80.0, 0.1, 53},
		{"60dB", 60.0, 0.05, 75},
		{"20dB audio filter", 20.0, 10000.0 / 240000.0, 23},
		{"below window floor", 5.0, 0.1, MinFilterLength},
		{"zero transition", 80.0, 0.0, MinFilterLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KaiserOrder(tt.attenuation, tt.transition)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, got%2, "length should be odd")
		})
	}
}

// TestKaiserOrder_NarrowerIsLonger tests that halving the transition roughly doubles the length.
func TestKaiserOrder_NarrowerIsLonger(t *testing.T) {
	wide := KaiserOrder(80, 0.02)
	narrow := KaiserOrder(80, 0.01)
	assert.Greater(t, narrow, wide)
	testutil.AssertRelativeError(t, float64(2*wide), float64(narrow), 0.05)
}

// TestAttenuationFromRipple tests ripple to dB conversion.
func TestAttenuationFromRipple(t *testing.T) {
	assert.InDelta(t, 20.0, AttenuationFromRipple(0.1), 1e-12)
	assert.InDelta(t, 80.0, AttenuationFromRipple(1e-4), 1e-9)
	assert.InDelta(t, 40.0, AttenuationFromRipple(0.01), 1e-12)
}

// BenchmarkKaiserBeta benchmarks KaiserBeta.
func BenchmarkKaiserBeta(b *testing.B) {
	for b.Loop() {
		_ = KaiserBeta(100.0)
	}
}
