// Command powermeter prints spectral power readings of a recorded IQ
// stream, one per line.
//
// Usage:
//
//	powermeter -r 2400000 capture.cu8                    # band average every 1000 frames
//	powermeter --policy peak --threshold -40 capture.cu8 # strongest bin of each frame above -40 dB
//	rtl_sdr -f 1420e6 -s 2.4e6 - | powermeter -
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	sdrdsp "github.com/tphakala/go-sdr-dsp"
	"github.com/tphakala/go-sdr-dsp/internal/iq"
	"github.com/tphakala/go-sdr-dsp/internal/power"
)

const (
	stdio           = "-"
	stdinBufferSize = 1 << 20
)

func main() {
	if err := run(); err != nil {
		log.Fatal("powermeter", "err", err)
	}
}

func run() error {
	defaults := sdrdsp.DefaultConfig().Meter

	configPath := pflag.StringP("config", "c", "", "YAML configuration file")
	rate := pflag.Float64P("rate", "r", sdrdsp.DefaultSampleRate, "Input sample rate in Hz")
	format := pflag.StringP("format", "f", "cu8", "Raw input sample format: cu8, cs8, cs16, cf32")
	policy := pflag.StringP("policy", "p", defaults.Policy, "Aggregation policy: mean or peak")
	fftSize := pflag.IntP("fft-size", "n", defaults.FFTSize, "FFT size in samples")
	fftWindow := pflag.String("fft-window", defaults.FFTWindow, "FFT window: rect, hann, hamming, blackman")
	noShift := pflag.Bool("no-shift", false, "Do not move DC to the centre bin")
	binStart := pflag.Int("bin-start", defaults.BinStart, "First bin of the measured band")
	binCount := pflag.Int("bin-count", defaults.BinCount, "Number of bins in the band, 0 for the rest of the frame")
	window := pflag.IntP("window", "w", defaults.Window, "Frames averaged per mean reading")
	threshold := pflag.Float64P("threshold", "t", defaults.Threshold, "Peak readings at or below this level (dB) are suppressed")
	noGate := pflag.Bool("no-gate", false, "Report every peak reading")
	reference := pflag.Float64("reference", defaults.Reference, "Magnitude reported as 0 dB")
	level := pflag.String("log-level", "warn", "Log level: debug, info, warn, error")
	help := pflag.BoolP("help", "h", false, "Display help text")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] input\n\n", filepath.Base(os.Args[0]))
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
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: lvl, Prefix: "powermeter"})

	cfg := sdrdsp.DefaultConfig()
	if *configPath != "" {
		if cfg, err = sdrdsp.LoadConfig(*configPath); err != nil {
			return err
		}
	}

	flags := pflag.CommandLine
	override := func(name string) bool { return *configPath == "" || flags.Changed(name) }
	if override("rate") {
		cfg.Source.SampleRate = *rate
	}
	if override("format") {
		cfg.Source.Format = *format
	}
	m := &cfg.Meter
	if override("policy") {
		m.Policy = *policy
	}
	if override("fft-size") {
		m.FFTSize = *fftSize
	}
	if override("fft-window") {
		m.FFTWindow = *fftWindow
	}
	if flags.Changed("no-shift") {
		m.FFTShift = !*noShift
	}
	if override("window") {
		m.Window = *window
	}
	if override("threshold") {
		m.Threshold = *threshold
	}
	if flags.Changed("no-gate") {
		m.Gated = !*noGate
	}
	if override("reference") {
		m.Reference = *reference
	}

	// The peak policy looks at the whole frame unless a band was asked for.
	p, err := power.ParsePolicy(m.Policy)
	if err != nil {
		return err
	}
	switch {
	case flags.Changed("bin-start") || flags.Changed("bin-count"):
		m.BinStart, m.BinCount = *binStart, *binCount
	case *configPath == "" && p == power.PolicyPeak:
		m.BinStart, m.BinCount = 0, 0
	case *configPath == "":
		m.BinStart, m.BinCount = *binStart, *binCount
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	src, closeSrc, err := openSource(pflag.Arg(0), cfg.Source.Format)
	if err != nil {
		return err
	}
	defer closeSrc()

	meter, err := sdrdsp.NewPowerMeter(cfg, sdrdsp.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := bufio.NewWriter(os.Stdout)
	defer func() { _ = out.Flush() }()

	_, err = meter.Run(ctx, src, func(r sdrdsp.Reading) {
		_, _ = fmt.Fprintf(out, "%.2f\n", r.Value)
		if p == power.PolicyPeak || r.Partial(m.Window) {
			_ = out.Flush()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := meter.Stats()
	logger.Info("done", "frames", stats.Accepted, "readings", stats.Reported, "empty", stats.Empty)
	return nil
}

func openSource(path, name string) (sdrdsp.Source[complex64], func(), error) {
	format, err := iq.ParseFormat(name)
	if err != nil {
		return nil, nil, err
	}
	if path == stdio {
		r, err := iq.NewReader(bufio.NewReaderSize(os.Stdin, stdinBufferSize), format)
		return r, func() {}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	r, err := iq.NewReader(f, format)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return r, func() { _ = f.Close() }, nil
}
