// Package power reduces frames of per-bin power values to scalar readings.
//
// An Aggregator is configured with exactly one policy. The mean policy
// averages a band of bins per frame and reports the running average once per
// window of frames. The peak policy reports the strongest bin of every frame,
// optionally only when it clears a threshold.
package power

import (
	"errors"
	"fmt"
	"math"
	"strings"

	vecmath "github.com/cwbudde/algo-vecmath"
)

// ErrInvalidConfig is returned for aggregator configurations that cannot work.
var ErrInvalidConfig = errors.New("invalid power aggregator config")

// Policy selects how frames are reduced.
type Policy int

const (
	// PolicyMean averages the finite bins of a band and reports the average
	// over Window frames.
	PolicyMean Policy = iota
	// PolicyPeak reports the largest finite bin of each frame.
	PolicyPeak
)

// String returns the policy name used in configuration files.
func (p Policy) String() string {
	switch p {
	case PolicyMean:
		return "mean"
	case PolicyPeak:
		return "peak"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "mean" or "peak" (case insensitive).
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean", "average", "avg":
		return PolicyMean, nil
	case "peak", "max":
		return PolicyPeak, nil
	default:
		return 0, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, s)
	}
}

// Config configures an Aggregator.
type Config struct {
	// BlockSize is the only frame length accepted. Other frames are dropped.
	BlockSize int

	Policy Policy

	// BinStart and BinCount select the band that is reduced. A zero
	// BinCount selects every bin from BinStart to the end of the frame.
	BinStart int
	BinCount int

	// Window is the number of valid frames per mean reading.
	Window int

	// Threshold gates peak readings when Gated is set: only peaks strictly
	// above it are reported.
	Threshold float64
	Gated     bool

	// Reference is the full-scale magnitude used by ObserveBins.
	Reference float64
}

// DefaultConfig returns the antenna meter configuration for policy.
// The mean policy watches bins 2000..2045 of a 4096-bin frame; the peak
// policy watches the whole frame and reports peaks above -40 dB.
func DefaultConfig(policy Policy) Config {
	cfg := Config{
		BlockSize: DefaultBlockSize,
		Policy:    policy,
		Window:    DefaultWindow,
		Threshold: DefaultThreshold,
		Reference: DefaultReference,
	}
	switch policy {
	case PolicyMean:
		cfg.BinStart = DefaultBinStart
		cfg.BinCount = DefaultBinCount
	case PolicyPeak:
		cfg.Gated = true
	}
	return cfg
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BlockSize <= 0 {
		return fmt.Errorf("%w: block size %d must be positive", ErrInvalidConfig, c.BlockSize)
	}
	if c.Policy != PolicyMean && c.Policy != PolicyPeak {
		return fmt.Errorf("%w: unknown policy %d", ErrInvalidConfig, int(c.Policy))
	}
	if c.BinStart < 0 || c.BinStart >= c.BlockSize {
		return fmt.Errorf("%w: bin start %d outside [0, %d)", ErrInvalidConfig, c.BinStart, c.BlockSize)
	}
	if c.BinCount < 0 || c.BinStart+c.BinCount > c.BlockSize {
		return fmt.Errorf("%w: bins [%d, %d) exceed block size %d",
			ErrInvalidConfig, c.BinStart, c.BinStart+c.BinCount, c.BlockSize)
	}
	if c.Policy == PolicyMean && c.Window <= 0 {
		return fmt.Errorf("%w: window %d must be positive", ErrInvalidConfig, c.Window)
	}
	if math.IsNaN(c.Threshold) {
		return fmt.Errorf("%w: threshold is NaN", ErrInvalidConfig)
	}
	if !(c.Reference > 0) || math.IsInf(c.Reference, 0) {
		return fmt.Errorf("%w: reference %g must be positive and finite", ErrInvalidConfig, c.Reference)
	}
	return nil
}

// band returns the selected bins of a validated frame.
func (c Config) band(frame []float32) []float32 {
	if c.BinCount == 0 {
		return frame[c.BinStart:]
	}
	return frame[c.BinStart : c.BinStart+c.BinCount]
}

// Reading is one reported measurement in dB.
type Reading struct {
	Value float64

	// Observations is the number of frames behind the value: Window for a
	// full mean window, fewer for a flushed one, 1 for a peak.
	Observations int

	Policy Policy
}

// Partial reports whether a mean reading covers less than window frames.
func (r Reading) Partial(window int) bool {
	return r.Policy == PolicyMean && r.Observations < window
}

// Stats counts frames seen by an Aggregator.
type Stats struct {
	// Accepted frames had the configured size.
	Accepted int64
	// Discarded frames had any other size.
	Discarded int64
	// Empty frames had no finite value in the band.
	Empty int64
	// Reported is the number of readings returned.
	Reported int64
}

// Aggregator reduces frames to readings according to its Config.
// It is not safe for concurrent use.
type Aggregator struct {
	cfg Config

	total float64
	count int

	stats Stats

	re, im, mag []float64
	db          []float32
}

// NewAggregator validates cfg and returns an Aggregator.
func NewAggregator(cfg Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{cfg: cfg}, nil
}

// Config returns the aggregator configuration.
func (a *Aggregator) Config() Config { return a.cfg }

// Observe feeds one frame of per-bin dB values. It returns a reading and
// true when the frame completes a report. Frames whose length differs from
// BlockSize are ignored.
func (a *Aggregator) Observe(frame []float32) (Reading, bool) {
	if len(frame) != a.cfg.BlockSize {
		a.stats.Discarded++
		return Reading{}, false
	}
	a.stats.Accepted++

	band := a.cfg.band(frame)
	switch a.cfg.Policy {
	case PolicyPeak:
		return a.observePeak(band)
	default:
		return a.observeMean(band)
	}
}

func (a *Aggregator) observeMean(band []float32) (Reading, bool) {
	avg, ok := finiteMean(band)
	if !ok {
		a.stats.Empty++
		return Reading{}, false
	}
	a.total += avg
	a.count++
	if a.count < a.cfg.Window {
		return Reading{}, false
	}
	return a.report(), true
}

func (a *Aggregator) observePeak(band []float32) (Reading, bool) {
	peak, ok := finiteMax(band)
	if !ok {
		a.stats.Empty++
		return Reading{}, false
	}
	if a.cfg.Gated && !(peak > a.cfg.Threshold) {
		return Reading{}, false
	}
	a.stats.Reported++
	return Reading{Value: peak, Observations: 1, Policy: PolicyPeak}, true
}

// report returns the mean over the accumulated frames and restarts the window.
func (a *Aggregator) report() Reading {
	r := Reading{
		Value:        a.total / float64(a.count),
		Observations: a.count,
		Policy:       PolicyMean,
	}
	a.total, a.count = 0, 0
	a.stats.Reported++
	return r
}

// ObserveBins converts complex frequency bins to 20·log10(|x|/Reference)
// and observes the result. Zero bins become -Inf and are skipped like any
// other non-finite value.
func (a *Aggregator) ObserveBins(bins []complex64) (Reading, bool) {
	if len(bins) != a.cfg.BlockSize {
		a.stats.Discarded++
		return Reading{}, false
	}
	n := len(bins)
	if cap(a.re) < n {
		a.re = make([]float64, n)
		a.im = make([]float64, n)
		a.mag = make([]float64, n)
		a.db = make([]float32, n)
	}
	re, im, mag, db := a.re[:n], a.im[:n], a.mag[:n], a.db[:n]
	for i, v := range bins {
		re[i] = float64(real(v))
		im[i] = float64(imag(v))
	}
	vecmath.Magnitude(mag, re, im)
	for i, m := range mag {
		db[i] = float32(LinearToDB(m, a.cfg.Reference))
	}
	return a.Observe(db)
}

// Flush reports the frames accumulated in an incomplete mean window.
// It returns false when nothing is pending or the policy is peak.
func (a *Aggregator) Flush() (Reading, bool) {
	if a.cfg.Policy != PolicyMean || a.count == 0 {
		return Reading{}, false
	}
	return a.report(), true
}

// Pending returns the number of frames in the current mean window.
func (a *Aggregator) Pending() int { return a.count }

// Stats returns frame counters since construction or the last Reset.
func (a *Aggregator) Stats() Stats { return a.stats }

// Reset discards the current window and clears the counters.
func (a *Aggregator) Reset() {
	a.total, a.count = 0, 0
	a.stats = Stats{}
}

// LinearToDB returns 20·log10(mag/ref). A zero magnitude yields -Inf.
func LinearToDB(mag, ref float64) float64 {
	return dbMultiplier * math.Log10(mag/ref)
}

// finiteMean averages the finite values of s in float64.
func finiteMean(s []float32) (float64, bool) {
	var sum float64
	var n int
	for _, v := range s {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// finiteMax returns the largest finite value of s.
func finiteMax(s []float32) (float64, bool) {
	best := math.Inf(-1)
	found := false
	for _, v := range s {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		if !found || f > best {
			best = f
			found = true
		}
	}
	return best, found
}
