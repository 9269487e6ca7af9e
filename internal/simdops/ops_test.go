package simdops

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor_Float32(t *testing.T) {
	ops := For[float32]()
	a := []float32{1, 2, 3, 4, 5}
	b := []float32{2, 2, 2, 2, 2}

	assert.InDelta(t, 30.0, float64(ops.DotProductUnsafe(a, b)), 1e-6)
	assert.InDelta(t, 15.0, float64(ops.Sum(a)), 1e-6)

	dst := make([]float32, len(a))
	ops.Scale(dst, a, 0.5)
	assert.Equal(t, []float32{0.5, 1, 1.5, 2, 2.5}, dst)
}

func TestFor_Float64(t *testing.T) {
	ops := For[float64]()
	a := []float64{1, -1, 0.5}
	assert.InDelta(t, 2.25, ops.DotProductUnsafe(a, a), 1e-12)
	assert.InDelta(t, 0.5, ops.Sum(a), 1e-12)
}

func TestConvert(t *testing.T) {
	got := Convert[float32]([]float64{0.25, -1.5})
	assert.Equal(t, []float32{0.25, -1.5}, got)
}

func TestSplitComplex(t *testing.T) {
	re := make([]float32, 2)
	im := make([]float32, 2)
	SplitComplex(re, im, []complex64{complex(1, 2), complex(-3, 4)})
	assert.Equal(t, []float32{1, -3}, re)
	assert.Equal(t, []float32{2, 4}, im)
}

// BenchmarkIndirectF32DotProduct measures the call through the Ops table.
func BenchmarkIndirectF32DotProduct(b *testing.B) {
	ops := For[float32]()
	x := make([]float32, 64)
	y := make([]float32, 64)
	for i := range x {
		x[i] = float32(i) * 0.01
		y[i] = float32(i) * 0.02
	}

	b.ReportAllocs()
	for b.Loop() {
		_ = ops.DotProductUnsafe(x, y)
	}
}
