package sdrdsp

import (
	"fmt"
	"math"
	"slices"

	"github.com/tphakala/go-sdr-dsp/internal/mathutil"
)

// FMPlan holds the rates derived for an FM receiver.
type FMPlan struct {
	SampleRate int

	// AudioRate is the output rate, chosen from the configured rates.
	AudioRate int

	// AudioMult is the demodulator rate divided by AudioRate.
	AudioMult int

	// HardwareOffset is how far above the station tunable hardware is tuned.
	HardwareOffset float64

	// Interp and Decim are the channel resampler factors in lowest terms.
	Interp int
	Decim  int
}

// DemodRate returns the rate the demodulator runs at.
func (p FMPlan) DemodRate() int { return p.AudioRate * p.AudioMult }

// PlanFM derives the receiver rates from cfg.
//
// The audio rate is the configured rate sharing the largest common divisor
// with the sample rate, which keeps the channel resampler short. The
// demodulator runs at AudioMult times the audio rate, where AudioMult is the
// largest value up to MaxAudioMult whose rate does not exceed the hardware
// offset plus the channel margin.
func PlanFM(cfg Config) (FMPlan, error) {
	if err := cfg.Source.Validate(); err != nil {
		return FMPlan{}, err
	}
	if err := cfg.FM.Validate(); err != nil {
		return FMPlan{}, err
	}

	rate := cfg.Source.SampleRate
	if rate != math.Trunc(rate) || rate > math.MaxInt32 {
		return FMPlan{}, fmt.Errorf("%w: sample rate %g must be a whole number of Hz", ErrInvalidConfig, rate)
	}

	p := FMPlan{SampleRate: int(rate)}
	p.AudioRate = SelectAudioRate(p.SampleRate, cfg.FM.AudioRates)
	p.HardwareOffset = rate * cfg.FM.OffsetFraction
	p.AudioMult = audioMult(p.AudioRate, cfg.FM.MaxAudioMult, p.HardwareOffset+cfg.FM.ChannelMargin)
	p.Interp, p.Decim = mathutil.ReduceRatio(p.DemodRate(), p.SampleRate)
	return p, nil
}

// SelectAudioRate returns the rate in rates with the largest common divisor
// with sampleRate. Ties go to the earlier entry.
func SelectAudioRate(sampleRate int, rates []int) int {
	ranked := slices.Clone(rates)
	slices.SortStableFunc(ranked, func(a, b int) int {
		return mathutil.GCD(b, sampleRate) - mathutil.GCD(a, sampleRate)
	})
	if len(ranked) == 0 {
		return 0
	}
	return ranked[0]
}

// audioMult lowers maxMult until maxMult·audioRate fits within limit Hz.
// It never goes below 1.
func audioMult(audioRate, maxMult int, limit float64) int {
	mult := maxMult
	for mult > 1 && float64(mult*audioRate) > limit {
		mult--
	}
	return mult
}
