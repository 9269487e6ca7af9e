package sdrdsp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/go-sdr-dsp/internal/demod"
	"github.com/tphakala/go-sdr-dsp/internal/engine"
	"github.com/tphakala/go-sdr-dsp/internal/filter"
	"github.com/tphakala/go-sdr-dsp/internal/pipeline"
	"github.com/tphakala/go-sdr-dsp/internal/shift"
)

var (
	// ErrRunning is returned by Start when the receiver is already running.
	ErrRunning = errors.New("receiver already running")

	// ErrNotRunning is returned by Stop and Wait when nothing was started.
	ErrNotRunning = errors.New("receiver not running")
)

// FMReceiver demodulates one wideband FM station to mono audio:
//
//	shift → channel resampler → quadrature demod → audio low-pass/decimate
//
// With tunable hardware (WithTunable) the hardware sits HardwareOffset above
// the station and the shifter moves the station from -HardwareOffset to DC.
// Without it the stream is centred on Source.CenterFrequency and the shifter
// moves the station from Frequency-CenterFrequency to DC.
type FMReceiver struct {
	cfg     Config
	plan    FMPlan
	logger  *log.Logger
	tunable Tunable
	block   int

	shifter *shift.Shifter
	chain   pipeline.Block[complex64, float32]

	mu        sync.Mutex
	frequency float64
	cancel    context.CancelFunc
	group     *errgroup.Group
}

// NewFMReceiver plans and builds the receiver. Any configuration problem,
// including filters that cannot be designed for the derived rates, is
// reported here.
func NewFMReceiver(cfg Config, opts ...Option) (*FMReceiver, error) {
	o := newOptions(opts)

	plan, err := PlanFM(cfg)
	if err != nil {
		return nil, err
	}

	r := &FMReceiver{
		cfg:       cfg,
		plan:      plan,
		logger:    o.logger,
		tunable:   o.tunable,
		block:     o.blockSize,
		frequency: cfg.FM.Frequency,
	}

	r.shifter, err = shift.New(r.shiftOffset(cfg.FM.Frequency), float64(plan.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("%w: station %g Hz: %w", ErrInvalidConfig, cfg.FM.Frequency, err)
	}

	channel, err := engine.New[complex64](engine.Config{
		Interp: plan.Interp,
		Decim:  plan.Decim,
		Name:   "channel",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: channel resampler: %w", ErrInvalidConfig, err)
	}

	gain := float32(1)
	if cfg.FM.Deviation > 0 {
		gain = demod.GainForDeviation(float64(plan.DemodRate()), cfg.FM.Deviation)
	}
	detector := demod.NewQuadrature(gain)

	audioTaps, err := filter.Design(cfg.FM.audioSpec(float64(plan.DemodRate())))
	if err != nil {
		return nil, fmt.Errorf("%w: audio filter: %w", ErrInvalidConfig, err)
	}
	audio, err := engine.New[float32](engine.Config{
		Interp: 1,
		Decim:  plan.AudioMult,
		Taps:   audioTaps,
		Name:   "audio",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: audio decimator: %w", ErrInvalidConfig, err)
	}

	r.chain = pipeline.Chain[complex64, complex64, float32](
		pipeline.Chain[complex64, complex64, complex64](r.shifter, channel),
		pipeline.Chain[complex64, float32, float32](detector, audio),
	)

	if r.tunable != nil {
		if err := r.tunable.SetFrequency(cfg.FM.Frequency + plan.HardwareOffset); err != nil {
			return nil, fmt.Errorf("tune hardware: %w", err)
		}
	}

	r.logPlan(len(audioTaps), channel.Info().FilterLength)
	return r, nil
}

// shiftOffset is the offset of the station within the stream.
func (r *FMReceiver) shiftOffset(freq float64) float64 {
	if r.tunable != nil {
		return -r.plan.HardwareOffset
	}
	return freq - r.cfg.Source.CenterFrequency
}

func (r *FMReceiver) logPlan(audioTaps, channelTaps int) {
	stages := pipeline.Stages(r.chain)
	r.logger.Info("fm receiver planned",
		"sample_rate", r.plan.SampleRate,
		"audio_rate", r.plan.AudioRate,
		"audio_mult", r.plan.AudioMult,
		"hw_offset", r.plan.HardwareOffset)
	r.logger.Debug("fm filters",
		"interp", r.plan.Interp,
		"decim", r.plan.Decim,
		"channel_taps", channelTaps,
		"audio_taps", audioTaps,
		"latency", pipeline.TotalLatency(stages),
		"ratio", pipeline.TotalRatio(stages))
}

// Plan returns the derived rates.
func (r *FMReceiver) Plan() FMPlan { return r.plan }

// AudioRate returns the output sample rate.
func (r *FMReceiver) AudioRate() int { return r.plan.AudioRate }

// Frequency returns the station the receiver is tuned to.
func (r *FMReceiver) Frequency() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frequency
}

// TuneTo switches to another station. It may be called while the receiver
// runs; the change takes effect at the next block boundary.
func (r *FMReceiver) TuneTo(freq float64) error {
	if math.IsNaN(freq) || math.IsInf(freq, 0) {
		return fmt.Errorf("invalid frequency %g", freq)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tunable != nil {
		if err := r.tunable.SetFrequency(freq + r.plan.HardwareOffset); err != nil {
			return fmt.Errorf("tune hardware: %w", err)
		}
	} else if err := r.shifter.SetFrequency(r.shiftOffset(freq)); err != nil {
		return fmt.Errorf("tune %g Hz: %w", freq, err)
	}

	r.logger.Info("tuned", "frequency", freq)
	r.frequency = freq
	return nil
}

// Block returns the composed processing chain, complex baseband in and
// audio out.
func (r *FMReceiver) Block() Block[complex64, float32] { return r.chain }

// Stages describes every stage of the chain.
func (r *FMReceiver) Stages() []StageInfo { return pipeline.Stages(r.chain) }

// Run streams src through the receiver into sink until src ends or ctx is
// cancelled. Buffered audio is drained in both cases. A receiver that has
// finished a previous run starts from a clean state.
func (r *FMReceiver) Run(ctx context.Context, src Source[complex64], sink Sink[float32]) (Stats, error) {
	if r.chain.Finished() {
		r.chain.Reset()
	}
	stats, err := pipeline.Run(ctx, src, r.chain, sink, pipeline.Options{
		BlockSize: r.block,
		Logger:    r.logger,
	})
	r.logger.Debug("fm run finished", "in", stats.In, "out", stats.Out, "err", err)
	return stats, err
}

// Start runs the receiver in the background. Stop or Wait must be called
// to release it.
func (r *FMReceiver) Start(ctx context.Context, src Source[complex64], sink Sink[float32]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.group != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := r.Run(gctx, src, sink)
		return err
	})
	r.cancel = cancel
	r.group = g
	return nil
}

// Stop cancels a run started with Start and waits until the chain has
// drained. Cancellation itself is not reported as an error; a failure while
// draining is.
func (r *FMReceiver) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return ErrNotRunning
	}
	cancel()
	return r.Wait()
}

// Wait blocks until a run started with Start ends and returns its error.
func (r *FMReceiver) Wait() error {
	r.mu.Lock()
	g, cancel := r.group, r.cancel
	r.mu.Unlock()
	if g == nil {
		return ErrNotRunning
	}

	err := g.Wait()
	cancel()

	r.mu.Lock()
	if r.group == g {
		r.group, r.cancel = nil, nil
	}
	r.mu.Unlock()

	if onlyCancelled(err) {
		return nil
	}
	return err
}

// onlyCancelled reports whether err is a cancellation with no other error
// joined to it, such as a failed drain.
func onlyCancelled(err error) bool {
	if _, joined := err.(interface{ Unwrap() []error }); joined {
		return false
	}
	return errors.Is(err, context.Canceled)
}
