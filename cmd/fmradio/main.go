// Command fmradio demodulates a wideband FM station from a recorded IQ
// stream into a mono WAV file.
//
// Usage:
//
//	fmradio -r 2400000 --center 100e6 -F 100.3e6 capture.cu8 out.wav
//	fmradio -c radio.yaml capture.wav out.wav
//	rtl_sdr -f 100.6e6 -s 2.4e6 - | fmradio -F 100.3e6 --center 100.6e6 - - | aplay -f FLOAT_LE -r 48000
//
// A stereo WAV input is treated as I/Q and its sample rate replaces --rate.
// An output of "-" writes raw little-endian float32 audio to stdout.
// Interrupting the program stops reading and drains the filters.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	sdrdsp "github.com/tphakala/go-sdr-dsp"
	"github.com/tphakala/go-sdr-dsp/internal/iq"
)

const (
	minRequiredArgs = 2
	stdio           = "-"
	stdinBufferSize = 1 << 20
)

func main() {
	if err := run(); err != nil {
		log.Fatal("fmradio", "err", err)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", "", "YAML configuration file")
	rate := pflag.Float64P("rate", "r", sdrdsp.DefaultSampleRate, "Input sample rate in Hz (ignored for WAV input)")
	center := pflag.Float64("center", sdrdsp.DefaultFrequency, "Frequency at the centre of the input stream in Hz")
	freq := pflag.Float64P("freq", "F", sdrdsp.DefaultFrequency, "Station frequency in Hz")
	format := pflag.StringP("format", "f", "cu8", "Raw input sample format: cu8, cs8, cs16, cf32")
	blockSize := pflag.Int("block-size", 0, "Samples read per iteration (0 for the default)")
	level := pflag.String("log-level", "info", "Log level: debug, info, warn, error")
	help := pflag.BoolP("help", "h", false, "Display help text")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] input output.wav\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return nil
	}
	args := pflag.Args()
	if len(args) < minRequiredArgs {
		pflag.Usage()
		return errors.New("insufficient arguments")
	}

	logger, err := newLogger(*level)
	if err != nil {
		return err
	}

	cfg := sdrdsp.DefaultConfig()
	if *configPath != "" {
		if cfg, err = sdrdsp.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	// Flags given on the command line win over the file.
	if pflag.CommandLine.Changed("rate") || *configPath == "" {
		cfg.Source.SampleRate = *rate
	}
	if pflag.CommandLine.Changed("center") || *configPath == "" {
		cfg.Source.CenterFrequency = *center
	}
	if pflag.CommandLine.Changed("freq") || *configPath == "" {
		cfg.FM.Frequency = *freq
	}
	if pflag.CommandLine.Changed("format") || *configPath == "" {
		cfg.Source.Format = *format
	}

	src, closeSrc, err := openSource(args[0], &cfg, logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	opts := []sdrdsp.Option{sdrdsp.WithLogger(logger)}
	if *blockSize > 0 {
		opts = append(opts, sdrdsp.WithBlockSize(*blockSize))
	}
	rx, err := sdrdsp.NewFMReceiver(cfg, opts...)
	if err != nil {
		return err
	}

	sink, closeSink, err := openSink(args[1], rx.AudioRate())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	stats, err := rx.Run(ctx, src, sink)
	if cerr := closeSink(); err == nil {
		err = cerr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	elapsed := time.Since(start)
	logger.Info("done",
		"samples", stats.In,
		"audio", stats.Out,
		"elapsed", elapsed.Round(time.Millisecond),
		"speed", fmt.Sprintf("%.1fx", float64(stats.In)/cfg.Source.SampleRate/elapsed.Seconds()))
	return nil
}

func newLogger(level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           lvl,
		Prefix:          "fmradio",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	}), nil
}

// openSource opens raw IQ (or stdin) in cfg's format, or a stereo WAV file
// whose rate then overrides cfg.
func openSource(path string, cfg *sdrdsp.Config, logger *log.Logger) (sdrdsp.Source[complex64], func(), error) {
	if path == stdio {
		format, err := iq.ParseFormat(cfg.Source.Format)
		if err != nil {
			return nil, nil, err
		}
		r, err := iq.NewReader(bufio.NewReaderSize(os.Stdin, stdinBufferSize), format)
		return r, func() {}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	closer := func() { _ = f.Close() }

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		r, err := iq.NewWAVReader(f)
		if err != nil {
			closer()
			return nil, nil, err
		}
		cfg.Source.SampleRate = float64(r.SampleRate())
		logger.Info("wav input", "rate", r.SampleRate(), "bits", r.BitDepth())
		return r, closer, nil
	}

	format, err := iq.ParseFormat(cfg.Source.Format)
	if err != nil {
		closer()
		return nil, nil, err
	}
	r, err := iq.NewReader(f, format)
	if err != nil {
		closer()
		return nil, nil, err
	}
	logger.Info("raw input", "format", format, "rate", cfg.Source.SampleRate)
	return r, closer, nil
}

// openSink returns a WAV writer, or a raw float32 writer on stdout for "-".
func openSink(path string, rate int) (sdrdsp.Sink[float32], func() error, error) {
	if path == stdio {
		w := iq.NewFloatWriter(os.Stdout)
		return w, w.Flush, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	w, err := iq.NewWAVWriter(f, rate)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return w, func() error {
		return errors.Join(w.Close(), f.Close())
	}, nil
}
