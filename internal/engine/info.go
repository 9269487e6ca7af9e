package engine

import (
	"github.com/tphakala/go-sdr-dsp/internal/pipeline"
	"github.com/tphakala/simd/cpu"
)

const bytesPerFloat32 = 4

// Info describes a configured resampler.
type Info struct {
	Interp       int
	Decim        int
	FilterLength int
	Phases       int
	TapsPerPhase int
	Latency      float64
	MemoryUsage  int64
	SIMD         string
}

// Info returns a description of the resampler.
func (r *Rational[S]) Info() Info {
	return Info{
		Interp:       r.interp,
		Decim:        r.decim,
		FilterLength: r.filterLength,
		Phases:       len(r.branches),
		TapsPerPhase: r.tapsPerPhase,
		Latency:      r.Latency(),
		MemoryUsage:  r.MemoryUsage(),
		SIMD:         cpu.Info(),
	}
}

// MemoryUsage returns approximate memory usage in bytes.
func (r *Rational[S]) MemoryUsage() int64 {
	var usage int64
	for _, branch := range r.branches {
		usage += int64(len(branch)) * bytesPerFloat32
	}
	usage += int64(cap(r.histRe)+cap(r.histIm)) * bytesPerFloat32
	return usage
}

// Stages describes the resampler as one pipeline stage.
func (r *Rational[S]) Stages() []pipeline.StageInfo {
	return []pipeline.StageInfo{{
		Name:         r.name,
		Interp:       r.interp,
		Decim:        r.decim,
		Latency:      r.Latency(),
		FilterLength: r.filterLength,
		Phases:       len(r.branches),
	}}
}
