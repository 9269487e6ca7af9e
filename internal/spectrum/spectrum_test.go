package spectrum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/go-sdr-dsp/internal/pipeline"
	"github.com/tphakala/go-sdr-dsp/internal/testutil"
)

const testSize = 64

func argmax(s []float32) int {
	best := 0
	for i, v := range s {
		if v > s[best] {
			best = i
		}
	}
	return best
}

func TestShift(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want []int
	}{
		{"even", []int{0, 1, 2, 3}, []int{2, 3, 0, 1}},
		{"odd", []int{0, 1, 2, 3, 4}, []int{3, 4, 0, 1, 2}},
		{"single", []int{0}, []int{0}},
		{"empty", []int{}, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Shift(tt.in)
			assert.Equal(t, tt.want, tt.in)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := []Config{
		{Size: 0, Reference: 1},
		{Size: -4, Reference: 1},
		{Size: 16, Reference: 0},
		{Size: 16, Reference: math.Inf(1)},
		{Size: 16, Reference: 1, Window: 99},
	}
	for _, cfg := range bad {
		_, err := New(cfg)
		require.ErrorIs(t, err, ErrInvalidConfig, "%+v", cfg)
	}
}

func TestTransform_TonePeak(t *testing.T) {
	tests := []struct {
		name  string
		bin   int
		shift bool
		want  int
	}{
		{"unshifted positive", 5, false, 5},
		{"unshifted negative", -3, false, testSize - 3},
		{"shifted positive", 5, true, testSize/2 + 5},
		{"shifted negative", -3, true, testSize/2 - 3},
		{"shifted dc", 0, true, testSize / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(Config{Size: testSize, Shift: tt.shift, Reference: 1})
			require.NoError(t, err)

			tone := testutil.ComplexTone(float64(tt.bin), testSize, 1, testSize)
			out, consumed, err := tr.Process(tone)
			require.NoError(t, err)
			require.Equal(t, testSize, consumed)
			require.Len(t, out, testSize)

			assert.Equal(t, tt.want, argmax(out))
			// Unit amplitude over N samples sums to N.
			assert.InDelta(t, 20*math.Log10(testSize), float64(out[tt.want]), 1e-3)
		})
	}
}

func TestTransform_Reference(t *testing.T) {
	tr, err := New(Config{Size: testSize, Reference: testSize})
	require.NoError(t, err)

	out, _, err := tr.Process(testutil.ComplexTone(0, testSize, 1, testSize))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, float64(out[0]), 1e-3)
	assert.True(t, math.IsInf(float64(out[1]), -1) || out[1] < -100, "off-bin energy of an exact tone is negligible")
}

func TestTransform_WindowReducesLeakage(t *testing.T) {
	// A tone between two bins leaks into the whole spectrum without a window.
	tone := testutil.ComplexTone(10.5, testSize, 1, testSize)

	far := func(w Window) float32 {
		tr, err := New(Config{Size: testSize, Window: w, Reference: 1})
		require.NoError(t, err)
		out, _, err := tr.Process(tone)
		require.NoError(t, err)
		return out[40]
	}

	rect := far(WindowRect)
	for _, w := range []Window{WindowHann, WindowHamming, WindowBlackman} {
		assert.Less(t, far(w), rect-10, "%s", w)
	}
}

func TestTransform_PartialFrames(t *testing.T) {
	tr, err := New(Config{Size: testSize, Reference: 1})
	require.NoError(t, err)

	out, consumed, err := tr.Process(make([]complex64, testSize-1))
	require.NoError(t, err)
	assert.Zero(t, consumed)
	assert.Empty(t, out)

	out, consumed, err = tr.Process(make([]complex64, 2*testSize+7))
	require.NoError(t, err)
	assert.Equal(t, 2*testSize, consumed)
	assert.Len(t, out, 2*testSize)

	tail, err := tr.Drain()
	require.NoError(t, err)
	assert.Empty(t, tail)
	assert.True(t, tr.Finished())

	_, _, err = tr.Process(make([]complex64, testSize))
	require.ErrorIs(t, err, pipeline.ErrFinished)

	tr.Reset()
	assert.False(t, tr.Finished())
}

func TestWindow_Coefficients(t *testing.T) {
	for _, w := range []Window{WindowHann, WindowHamming, WindowBlackman} {
		c := w.Coefficients(33)
		testutil.AssertSymmetric(t, c, 1e-12)
		testutil.AssertCenterIsMax(t, c)
		assert.InDelta(t, 1.0, c[16], 1e-12, "%s peak", w)
	}
	assert.Equal(t, []float64{1, 1, 1}, WindowRect.Coefficients(3))
	assert.Equal(t, []float64{1}, WindowHann.Coefficients(1))
}

func TestParseWindow(t *testing.T) {
	tests := map[string]Window{
		"":         WindowRect,
		"rect":     WindowRect,
		"Hann":     WindowHann,
		"hanning":  WindowHann,
		"hamming":  WindowHamming,
		"blackman": WindowBlackman,
	}
	for in, want := range tests {
		got, err := ParseWindow(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseWindow("kaiser")
	require.ErrorIs(t, err, ErrInvalidConfig)
}
