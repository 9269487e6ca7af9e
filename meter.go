package sdrdsp

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/tphakala/go-sdr-dsp/internal/pipeline"
	"github.com/tphakala/go-sdr-dsp/internal/power"
	"github.com/tphakala/go-sdr-dsp/internal/spectrum"
)

// PowerMeter turns complex samples into power readings:
//
//	spectrum (FFT, window, shift, dB) → aggregator (mean or peak)
type PowerMeter struct {
	cfg    MeterConfig
	logger *log.Logger
	block  int

	meter *power.Meter
	chain *pipeline.Chained[complex64, float32, power.Reading]
}

// NewPowerMeter builds a meter from the meter section of cfg.
func NewPowerMeter(cfg Config, opts ...Option) (*PowerMeter, error) {
	o := newOptions(opts)

	scfg, err := cfg.Meter.spectrumConfig()
	if err != nil {
		return nil, err
	}
	acfg, err := cfg.Meter.aggregatorConfig()
	if err != nil {
		return nil, err
	}

	transform, err := spectrum.New(scfg)
	if err != nil {
		return nil, err
	}
	meter, err := power.NewMeter(acfg)
	if err != nil {
		return nil, err
	}

	m := &PowerMeter{
		cfg:    cfg.Meter,
		logger: o.logger,
		block:  o.blockSize,
		meter:  meter,
		chain:  pipeline.Chain[complex64, float32, power.Reading](transform, meter),
	}

	o.logger.Info("power meter configured",
		"fft_size", scfg.Size,
		"window", scfg.Window,
		"policy", acfg.Policy,
		"bins", acfg.BinCount,
		"frames", acfg.Window)
	return m, nil
}

// Block returns the composed chain.
func (m *PowerMeter) Block() Block[complex64, Reading] { return m.chain }

// Stages describes the transform and aggregator stages.
func (m *PowerMeter) Stages() []StageInfo { return m.chain.Stages() }

// Stats reports how many frames were accepted, discarded and reported.
func (m *PowerMeter) Stats() power.Stats { return m.meter.Aggregator().Stats() }

// Run measures src until it ends or ctx is cancelled, calling fn for every
// reading. A partial mean window is reported when the stream ends.
func (m *PowerMeter) Run(ctx context.Context, src Source[complex64], fn func(Reading)) (Stats, error) {
	if m.chain.Finished() {
		m.chain.Reset()
	}
	sink := SinkFunc[Reading](func(readings []Reading) error {
		for _, r := range readings {
			fn(r)
		}
		return nil
	})
	stats, err := pipeline.Run(ctx, src, pipeline.Block[complex64, Reading](m.chain), sink, pipeline.Options{
		BlockSize: m.block,
		Logger:    m.logger,
	})
	agg := m.Stats()
	m.logger.Debug("power meter finished",
		"samples", stats.In,
		"readings", agg.Reported,
		"discarded", agg.Discarded,
		"empty", agg.Empty)
	return stats, err
}
