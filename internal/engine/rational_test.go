package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/go-sdr-dsp/internal/pipeline"
	"github.com/tphakala/go-sdr-dsp/internal/testutil"
	"pgregory.net/rapid"
)

const (
	testSourceRate = 2.4e6
	testAudioRate  = 48000.0
)

func expectedCount(n, interp, decim int) int {
	return (n*interp + decim - 1) / decim
}

// feed runs input through r in the given chunk sizes and returns all output.
func feed[S Sample](t *testing.T, r *Rational[S], input []S, sizes []int) []S {
	t.Helper()
	var out []S
	pos := 0
	for _, n := range testutil.Chunks(len(input), sizes) {
		res, consumed, err := r.Process(input[pos : pos+n])
		require.NoError(t, err)
		require.Equal(t, n, consumed)
		out = append(out, res...)
		pos += n
	}
	return out
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"designed", Config{Interp: 3, Decim: 2}, nil},
		{"designed not reduced", Config{Interp: 240000, Decim: 2400000}, nil},
		{"explicit lowest terms", Config{Interp: 1, Decim: 5, Taps: []float64{0.5, 0.5}}, nil},
		{"zero interp", Config{Interp: 0, Decim: 2}, ErrInvalidRatio},
		{"negative decim", Config{Interp: 1, Decim: -2}, ErrInvalidRatio},
		{"explicit not reduced", Config{Interp: 2, Decim: 4, Taps: []float64{1, 1}}, ErrInvalidRatio},
		{"empty taps", Config{Interp: 1, Decim: 2, Taps: []float64{}}, ErrEmptyFilter},
		{"nan tap", Config{Interp: 1, Decim: 2, Taps: []float64{1, math.NaN()}}, ErrInvalidTaps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)

			_, err = New[complex64](tt.cfg)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNew_ReducesDesignedRatio(t *testing.T) {
	r, err := NewRational[complex64](240000, 2400000, nil)
	require.NoError(t, err)

	l, m := r.Ratio()
	assert.Equal(t, 1, l)
	assert.Equal(t, 10, m)
	assert.InDelta(t, 0.1, r.Rate(), 1e-15)
}

func TestRational_IdentityTaps(t *testing.T) {
	r, err := NewRational[float32](1, 1, []float64{1})
	require.NoError(t, err)

	in := []float32{1, 2, 3, 4, 5}
	out, consumed, err := r.Process(in)
	require.NoError(t, err)
	assert.Equal(t, 5, consumed)
	assert.Equal(t, in, out)
}

func TestRational_DecimateKeepsEveryMth(t *testing.T) {
	r, err := NewRational[float32](1, 3, []float64{1})
	require.NoError(t, err)

	in := make([]float32, 10)
	for i := range in {
		in[i] = float32(i)
	}
	out := feed(t, r, in, []int{1, 2, 4})
	assert.Equal(t, []float32{0, 3, 6, 9}, out)
}

func TestRational_ComplexPlanesStaySeparate(t *testing.T) {
	r, err := NewRational[complex64](1, 2, []float64{1})
	require.NoError(t, err)

	in := make([]complex64, 9)
	for i := range in {
		in[i] = complex(float32(i), -float32(10*i))
	}
	out := feed(t, r, in, []int{1, 3, 2})
	assert.Equal(t, []complex64{0, complex(2, -20), complex(4, -40), complex(6, -60), complex(8, -80)}, out)
}

func TestRational_InterpolateHold(t *testing.T) {
	// Taps [1, 1] at twice the rate hold each input for two outputs.
	r, err := NewRational[complex64](2, 1, []float64{1, 1})
	require.NoError(t, err)

	out, _, err := r.Process([]complex64{1, 2i, 3})
	require.NoError(t, err)
	assert.Equal(t, []complex64{1, 1, 2i, 2i, 3, 3}, out)
}

func TestRational_FractionalWeights(t *testing.T) {
	// 3/2 with a linear-interpolation kernel at 3x the rate.
	taps := []float64{1.0 / 3, 2.0 / 3, 1, 2.0 / 3, 1.0 / 3}
	r, err := NewRational[float32](3, 2, taps)
	require.NoError(t, err)

	in := []float32{3, 6, 9, 12}
	out, _, err := r.Process(in)
	require.NoError(t, err)
	require.Len(t, out, expectedCount(len(in), 3, 2))

	// y[m] = Σ_j h[p+3j]·x[i-j] with i = ⌊2m/3⌋, p = 2m mod 3.
	want := []float32{
		1.0 / 3 * 3,            // m=0: p=0, h0·x0
		1 * 3,                  // m=1: p=2, h2·x0
		2.0/3*6 + 1.0/3*3,      // m=2: p=1, h1·x1 + h4·x0
		1.0/3*9 + 2.0/3*6,      // m=3: p=0, h0·x2 + h3·x1
		1 * 9,                  // m=4: p=2, h2·x2
		2.0/3*12 + 1.0/3*9,     // m=5: p=1, h1·x3 + h4·x2
	}
	for i := range want {
		assert.InDelta(t, want[i], out[i], 1e-5, "output %d", i)
	}
}

func TestRational_CountExactAcrossCalls(t *testing.T) {
	tests := []struct {
		name          string
		interp, decim int
		n             int
		sizes         []int
	}{
		{"fm front end", 1, 10, 10007, []int{1, 999, 4096}},
		{"upsample 3/2", 3, 2, 1001, []int{7, 1, 64}},
		{"downsample 2/3", 2, 3, 1000, []int{3, 5}},
		{"odd 147/160", 147, 160, 2000, []int{11, 0, 333}},
		{"single samples", 5, 7, 300, []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRational[complex64](tt.interp, tt.decim, nil)
			require.NoError(t, err)

			out := feed(t, r, make([]complex64, tt.n), tt.sizes)
			assert.Len(t, out, expectedCount(tt.n, tt.interp, tt.decim))

			stats := r.Statistics()
			assert.Equal(t, int64(tt.n), stats["samplesIn"])
			assert.Equal(t, int64(len(out)), stats["samplesOut"])
		})
	}
}

func TestRational_ChunkingDoesNotChangeOutput(t *testing.T) {
	in := testutil.ComplexTone(30e3, testSourceRate, 1, 5000)

	a, err := NewRational[complex64](3, 40, nil)
	require.NoError(t, err)
	b, err := NewRational[complex64](3, 40, nil)
	require.NoError(t, err)

	whole := feed(t, a, in, []int{len(in)})
	chunked := feed(t, b, in, []int{1, 17, 0, 500, 3})
	assert.Equal(t, whole, chunked)
}

func TestRational_PreservesInBandTone(t *testing.T) {
	const tone = 20e3

	r, err := NewRational[complex64](1, 10, nil)
	require.NoError(t, err)

	in := testutil.ComplexTone(tone, testSourceRate, 1, 48000)
	out := feed(t, r, in, []int{4096})
	settled := out[200:]

	outRate := testSourceRate / 10
	assert.InDelta(t, tone, testutil.ToneFrequency(settled, outRate), 1.0)
	assert.InDelta(t, 1.0, testutil.ComplexRMS(settled), 1e-3)
}

func TestRational_RejectsAliases(t *testing.T) {
	// 200 kHz lies beyond the 120 kHz output Nyquist and inside the stopband.
	r, err := NewRational[complex64](1, 10, nil)
	require.NoError(t, err)

	out := feed(t, r, testutil.ComplexTone(200e3, testSourceRate, 1, 48000), []int{4096})
	assert.Less(t, testutil.ComplexRMS(out[200:]), 1e-3)
}

func TestRational_UpsampleRealTone(t *testing.T) {
	r, err := NewRational[float32](3, 2, nil)
	require.NoError(t, err)

	out := feed(t, r, testutil.RealTone(1000, testAudioRate, 1, 9600), []int{480})
	testutil.AssertFinite(t, out)
	testutil.AssertRelativeError(t, 1/math.Sqrt2, testutil.RMS(out[500:len(out)-500]), 0.01)
}

func TestRational_DrainFlushesTail(t *testing.T) {
	const n = 5

	r, err := NewRational[float32](2, 3, nil)
	require.NoError(t, err)

	in := []float32{1, 1, 1, 1, 1}
	out, _, err := r.Process(in)
	require.NoError(t, err)

	tail, err := r.Drain()
	require.NoError(t, err)
	assert.True(t, r.Finished())
	out = append(out, tail...)

	assert.Len(t, out, expectedCount(n+r.drainLength(), 2, 3))

	// Every input contributes its full (decimated) impulse response: L/M each.
	var sum float64
	for _, v := range out {
		sum += float64(v)
	}
	assert.InDelta(t, n*2.0/3.0, sum, 1e-2)

	more, err := r.Drain()
	require.NoError(t, err)
	assert.Empty(t, more)

	_, _, err = r.Process(in)
	require.ErrorIs(t, err, pipeline.ErrFinished)
}

func TestRational_ResetMatchesFresh(t *testing.T) {
	in := testutil.ComplexTone(5e3, testSourceRate, 1, 3000)

	r, err := NewRational[complex64](1, 10, nil)
	require.NoError(t, err)
	first := feed(t, r, in, []int{1000})
	_, err = r.Drain()
	require.NoError(t, err)

	r.Reset()
	assert.False(t, r.Finished())
	second := feed(t, r, in, []int{777})
	assert.Equal(t, first, second)
}

func TestRational_EmptyInput(t *testing.T) {
	r, err := NewRational[float32](1, 2, nil)
	require.NoError(t, err)

	out, consumed, err := r.Process(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, consumed)
}

func TestRational_Info(t *testing.T) {
	r, err := NewRational[complex64](3, 40, nil)
	require.NoError(t, err)

	info := r.Info()
	assert.Equal(t, 3, info.Interp)
	assert.Equal(t, 40, info.Decim)
	assert.Equal(t, 3, info.Phases)
	assert.Equal(t, (info.FilterLength+2)/3, info.TapsPerPhase)
	assert.InDelta(t, float64(info.FilterLength-1)/2/40, info.Latency, 1e-12)
	assert.Positive(t, info.MemoryUsage)
	assert.NotEmpty(t, info.SIMD)

	stages := r.Stages()
	require.Len(t, stages, 1)
	assert.Equal(t, "resample", stages[0].Name)
	assert.Equal(t, info.FilterLength, stages[0].FilterLength)
}

func TestRational_CountProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		interp := rapid.IntRange(1, 7).Draw(t, "interp")
		decim := rapid.IntRange(1, 7).Draw(t, "decim")
		sizes := rapid.SliceOfN(rapid.IntRange(0, 50), 1, 8).Draw(t, "sizes")
		total := rapid.IntRange(0, 400).Draw(t, "total")

		r, err := NewRational[float32](interp, decim, nil)
		if err != nil {
			t.Fatal(err)
		}

		got, pos, calls := 0, 0, 0
		for pos < total {
			n := min(sizes[calls%len(sizes)], total-pos)
			calls++
			if calls > 10*total+len(sizes) {
				break
			}
			out, consumed, err := r.Process(make([]float32, n))
			if err != nil {
				t.Fatal(err)
			}
			if consumed != n {
				t.Fatalf("consumed %d of %d", consumed, n)
			}
			got += len(out)
			pos += n
		}
		if pos == total && got != expectedCount(total, interp, decim) {
			t.Fatalf("%d/%d: %d inputs gave %d outputs, want %d", interp, decim, total, got, expectedCount(total, interp, decim))
		}
	})
}

func BenchmarkRational_FMFrontEnd(b *testing.B) {
	r, err := NewRational[complex64](1, 10, nil)
	require.NoError(b, err)
	in := testutil.ComplexTone(10e3, testSourceRate, 1, 16384)

	b.ReportAllocs()
	for b.Loop() {
		_, _, _ = r.Process(in)
	}
}
