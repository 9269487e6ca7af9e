// Command firdes designs Kaiser low-pass filters and prints their
// properties.
//
// Usage:
//
//	firdes --rate 240000 --cutoff 2000 --transition 10000 --ripple 0.1
//	firdes --interp 2 --decim 5                     # resampler prototype
//	firdes --interp 1 --decim 10 --taps > taps.txt  # coefficients, one per line
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/tphakala/go-sdr-dsp/internal/filter"
	"github.com/tphakala/go-sdr-dsp/internal/mathutil"
)

const (
	responsePoints = 4096

	// Display limits
	maxPhasesToShow = 8
)

func main() {
	if err := run(); err != nil {
		log.Fatal("firdes", "err", err)
	}
}

func run() error {
	rate := pflag.Float64P("rate", "r", 1, "Sample rate the filter runs at; band edges are in the same unit")
	cutoff := pflag.Float64("cutoff", 0, "Passband edge")
	transition := pflag.Float64("transition", 0, "Transition band width")
	ripple := pflag.Float64("ripple", 0, "Linear stopband ripple in (0, 1)")
	attenuation := pflag.Float64P("attenuation", "a", 0, "Stopband attenuation in dB, overrides --ripple")
	interp := pflag.IntP("interp", "L", 0, "Design a resampler prototype for L/M instead")
	decim := pflag.IntP("decim", "M", 0, "Decimation factor of the resampler prototype")
	printTaps := pflag.Bool("taps", false, "Print the coefficients instead of the summary")
	help := pflag.BoolP("help", "h", false, "Display help text")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return nil
	}

	var (
		taps     []float64
		phases   = 1
		stopband float64
		err      error
	)
	switch {
	case *interp > 0 || *decim > 0:
		if *interp < 1 || *decim < 1 {
			return errors.New("--interp and --decim go together")
		}
		phases, *decim = mathutil.ReduceRatio(*interp, *decim)
		taps, err = filter.Multirate(phases, *decim, *attenuation)
		stopband = 0.5 / float64(max(phases, *decim))
	case *cutoff > 0:
		spec := filter.Spec{
			Cutoff:      *cutoff / *rate,
			Transition:  *transition / *rate,
			Ripple:      *ripple,
			Attenuation: *attenuation,
		}
		taps, err = filter.Design(spec)
		stopband = spec.Cutoff + spec.Transition/2
	default:
		pflag.Usage()
		return errors.New("give --cutoff or --interp/--decim")
	}
	if err != nil {
		return err
	}

	out := bufio.NewWriter(os.Stdout)
	defer func() { _ = out.Flush() }()

	if *printTaps {
		for _, h := range taps {
			_, _ = fmt.Fprintf(out, "%.12e\n", h)
		}
		return nil
	}

	var dc float64
	for _, h := range taps {
		dc += h
	}
	_, _ = fmt.Fprintf(out, "taps:        %d\n", len(taps))
	_, _ = fmt.Fprintf(out, "group delay: %.1f samples\n", filter.GroupDelay(len(taps)))
	_, _ = fmt.Fprintf(out, "dc gain:     %.10f\n", dc)
	_, _ = fmt.Fprintf(out, "stopband:    %.4f (%.1f dB measured)\n",
		stopband, filter.StopbandAttenuation(taps, stopband, responsePoints))

	if phases == 1 {
		return nil
	}

	bank, err := filter.Decompose(taps, phases)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "\nDC gain per branch (%d branches of %d taps):\n", bank.NumPhases, bank.TapsPerPhase)
	for p := range min(bank.NumPhases, maxPhasesToShow) {
		_, _ = fmt.Fprintf(out, "  branch %2d: %.10f\n", p, bank.BranchGain(p))
	}
	if bank.NumPhases > maxPhasesToShow {
		_, _ = fmt.Fprintf(out, "  ... (%d more branches)\n", bank.NumPhases-maxPhasesToShow)
	}
	return nil
}
