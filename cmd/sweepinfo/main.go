// Command sweepinfo summarises rtl_power / hackrf_sweep CSV output and
// prints the strongest bin of every sweep.
//
// Usage:
//
//	sweepinfo sweep.csv
//	sweepinfo -T "%H:%M:%S" --threshold -60 sweep.csv
//	hackrf_sweep -f 88:108 | sweepinfo -
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
	"github.com/spf13/pflag"

	"github.com/tphakala/go-sdr-dsp/internal/power"
	"github.com/tphakala/go-sdr-dsp/internal/sweep"
)

const (
	stdio      = "-"
	hzPerMHz   = 1e6
	defaultFmt = "%Y-%m-%d %H:%M:%S"
)

func main() {
	if err := run(); err != nil {
		log.Fatal("sweepinfo", "err", err)
	}
}

func run() error {
	timeFormat := pflag.StringP("time-format", "T", defaultFmt, "strftime format for sweep timestamps")
	threshold := pflag.Float64("threshold", 0, "Only print sweeps whose peak is above this level (dB)")
	gated := pflag.Bool("gate", false, "Apply --threshold (implied when --threshold is given)")
	summary := pflag.BoolP("summary", "s", false, "Print only the summary")
	level := pflag.String("log-level", "warn", "Log level: debug, info, warn, error")
	help := pflag.BoolP("help", "h", false, "Display help text")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] sweep.csv\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return nil
	}
	if pflag.NArg() < 1 {
		pflag.Usage()
		return errors.New("missing input")
	}

	lvl, err := log.ParseLevel(*level)
	if err != nil {
		return err
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: lvl, Prefix: "sweepinfo"})

	stamp, err := strftime.New(*timeFormat)
	if err != nil {
		return fmt.Errorf("time format: %w", err)
	}

	df, err := parse(pflag.Arg(0))
	if err != nil {
		return err
	}
	if df.Skipped > 0 {
		logger.Warn("skipped malformed rows", "rows", df.Skipped)
	}

	out := bufio.NewWriter(os.Stdout)
	defer func() { _ = out.Flush() }()

	sweeps := df.Sweeps()
	_, _ = fmt.Fprintf(out, "range:   %.3f - %.3f MHz\n", float64(df.FreqLow)/hzPerMHz, float64(df.FreqHigh)/hzPerMHz)
	_, _ = fmt.Fprintf(out, "step:    %.2f Hz\n", df.FreqStep)
	_, _ = fmt.Fprintf(out, "hops:    %d per sweep\n", df.SweepSteps)
	_, _ = fmt.Fprintf(out, "records: %d (%d skipped)\n", len(df.Records), df.Skipped)
	_, _ = fmt.Fprintf(out, "sweeps:  %d\n", len(sweeps))
	if *summary || len(sweeps) == 0 {
		return nil
	}

	width := len(df.Row(0))
	if width == 0 {
		return errors.New("sweeps carry no samples")
	}
	agg, err := power.NewAggregator(power.Config{
		BlockSize: width,
		Policy:    power.PolicyPeak,
		Threshold: *threshold,
		Gated:     *gated || pflag.CommandLine.Changed("threshold"),
		Reference: 1,
	})
	if err != nil {
		return err
	}

	for i, recs := range sweeps {
		row := df.Row(i)
		r, ok := agg.Observe(row)
		if !ok {
			continue
		}
		var bins []float64
		for _, rec := range recs {
			bins = append(bins, rec.Bins()...)
		}
		peak := slices.Index(row, float32(r.Value))
		_, _ = fmt.Fprintf(out, "%s\t%.3f MHz\t%.2f dB\n", stamp.FormatString(recs[0].Time), bins[peak]/hzPerMHz, r.Value)
	}

	stats := agg.Stats()
	logger.Info("sweeps measured", "reported", stats.Reported, "incomplete", stats.Discarded, "empty", stats.Empty)
	return nil
}

func parse(path string) (*sweep.DataFrame, error) {
	var r io.Reader = os.Stdin
	if path != stdio {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	return sweep.Parse(bufio.NewReader(r))
}
