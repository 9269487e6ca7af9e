package sdrdsp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-sdr-dsp/internal/testutil"
)

const (
	testRate   = 480000.0
	testCenter = 100e6
)

// testReceiverConfig gives a 480 kS/s stream with the station 50 kHz above
// the centre: audio 48 kHz, demodulator at 192 kHz, channel resampler 2/5.
func testReceiverConfig() Config {
	cfg := DefaultConfig()
	cfg.Source.SampleRate = testRate
	cfg.Source.CenterFrequency = testCenter
	cfg.FM.Frequency = testCenter + 50e3
	cfg.FM.AudioRates = []int{48000}
	return cfg
}

// fmSignal is a carrier at offset Hz frequency modulated by a tone.
func fmSignal(offset, tone, deviation float64, n int) []complex64 {
	out := make([]complex64, n)
	beta := 0.0
	if tone > 0 {
		beta = deviation / tone
	}
	for k := range out {
		t := float64(k) / testRate
		phase := 2*math.Pi*offset*t + beta*math.Sin(2*math.Pi*tone*t)
		out[k] = complex(float32(0.5*math.Cos(phase)), float32(0.5*math.Sin(phase)))
	}
	return out
}

func mean(s []float32) float64 {
	var sum float64
	for _, v := range s {
		sum += float64(v)
	}
	return sum / float64(len(s))
}

func runReceiver(t *testing.T, rx *FMReceiver, in []complex64) []float32 {
	t.Helper()
	var sink SliceSink[float32]
	stats, err := rx.Run(context.Background(), &SliceSource[complex64]{Data: in}, &sink)
	require.NoError(t, err)
	assert.True(t, stats.Drained)
	assert.Equal(t, int64(len(in)), stats.In)
	testutil.AssertFinite(t, sink.Data)
	return sink.Data
}

func TestNewFMReceiver(t *testing.T) {
	rx, err := NewFMReceiver(testReceiverConfig())
	require.NoError(t, err)

	assert.Equal(t, 48000, rx.AudioRate())
	assert.Equal(t, 4, rx.Plan().AudioMult)
	assert.InDelta(t, testCenter+50e3, rx.Frequency(), 0)

	stages := rx.Stages()
	require.Len(t, stages, 4)
	assert.Equal(t, "shift", stages[0].Name)
	assert.Equal(t, "channel", stages[1].Name)
	assert.Equal(t, "audio", stages[3].Name)
}

func TestNewFMReceiver_Rejects(t *testing.T) {
	cfg := testReceiverConfig()
	cfg.FM.Frequency = testCenter + 300e3
	_, err := NewFMReceiver(cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg = testReceiverConfig()
	cfg.FM.AudioCutoff = 200e3
	_, err = NewFMReceiver(cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFMReceiver_OutputLength(t *testing.T) {
	rx, err := NewFMReceiver(testReceiverConfig())
	require.NoError(t, err)

	// 480000 in → 192000 demodulated → 48000 audio, plus each filter's tail.
	out := runReceiver(t, rx, fmSignal(50e3, 0, 0, 48000))
	assert.GreaterOrEqual(t, len(out), 4800)
	assert.Less(t, len(out), 4800+200)
}

func TestFMReceiver_CarrierDemodulatesToSilence(t *testing.T) {
	rx, err := NewFMReceiver(testReceiverConfig())
	require.NoError(t, err)

	out := runReceiver(t, rx, fmSignal(50e3, 0, 0, 48000))
	steady := out[len(out)/2 : len(out)*3/4]
	assert.InDelta(t, 0, mean(steady), 1e-3)
	assert.Less(t, testutil.RMS(steady), 1e-3)
}

func TestFMReceiver_Tone(t *testing.T) {
	rx, err := NewFMReceiver(testReceiverConfig())
	require.NoError(t, err)

	// 1 kHz at 5 kHz deviation: ±5/75 after scaling for 75 kHz.
	out := runReceiver(t, rx, fmSignal(50e3, 1000, 5e3, 96000))
	steady := out[len(out)/2 : len(out)/2+4800]
	amplitude := testutil.RMS(steady) * math.Sqrt2
	assert.InDelta(t, 5.0/75, amplitude, 0.003)
	assert.InDelta(t, 0, mean(steady), 1e-3)
}

func TestFMReceiver_TuneToShiftsOffset(t *testing.T) {
	rx, err := NewFMReceiver(testReceiverConfig())
	require.NoError(t, err)

	// The carrier now sits 10 kHz below the station.
	require.NoError(t, rx.TuneTo(testCenter+60e3))
	assert.InDelta(t, testCenter+60e3, rx.Frequency(), 0)

	out := runReceiver(t, rx, fmSignal(50e3, 0, 0, 48000))
	steady := out[len(out)/2 : len(out)*3/4]
	assert.InDelta(t, -10e3/75e3, mean(steady), 2e-3)

	// Out of the stream's band: rejected, frequency unchanged.
	require.Error(t, rx.TuneTo(testCenter+300e3))
	require.Error(t, rx.TuneTo(math.NaN()))
	assert.InDelta(t, testCenter+60e3, rx.Frequency(), 0)
}

func TestFMReceiver_Tunable(t *testing.T) {
	var tuned []float64
	fail := false
	hw := TunableFunc(func(hz float64) error {
		if fail {
			return errors.New("usb timeout")
		}
		tuned = append(tuned, hz)
		return nil
	})

	cfg := testReceiverConfig()
	rx, err := NewFMReceiver(cfg, WithTunable(hw))
	require.NoError(t, err)
	require.Equal(t, []float64{cfg.FM.Frequency + 120e3}, tuned)

	// The station sits HardwareOffset below the hardware centre.
	out := runReceiver(t, rx, fmSignal(-120e3, 0, 0, 48000))
	steady := out[len(out)/2 : len(out)*3/4]
	assert.InDelta(t, 0, mean(steady), 1e-3)

	require.NoError(t, rx.TuneTo(101e6))
	assert.Equal(t, []float64{cfg.FM.Frequency + 120e3, 101e6 + 120e3}, tuned)

	fail = true
	require.Error(t, rx.TuneTo(102e6))
	assert.InDelta(t, 101e6, rx.Frequency(), 0)
}

func TestFMReceiver_TunableFailsConstruction(t *testing.T) {
	hw := TunableFunc(func(float64) error { return errors.New("no device") })
	_, err := NewFMReceiver(testReceiverConfig(), WithTunable(hw))
	require.Error(t, err)
}

func TestFMReceiver_RunCancelled(t *testing.T) {
	rx, err := NewFMReceiver(testReceiverConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var sink SliceSink[float32]
	stats, err := rx.Run(ctx, &SliceSource[complex64]{Data: fmSignal(50e3, 0, 0, 1000)}, &sink)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, stats.Drained)
	assert.Zero(t, stats.In)
}

// zeros is an endless source of silence.
type zeros struct{}

func (zeros) Read(dst []complex64) (int, error) {
	clear(dst)
	return len(dst), nil
}

func TestFMReceiver_StartStop(t *testing.T) {
	rx, err := NewFMReceiver(testReceiverConfig(), WithBlockSize(4800))
	require.NoError(t, err)

	require.ErrorIs(t, rx.Stop(), ErrNotRunning)
	require.ErrorIs(t, rx.Wait(), ErrNotRunning)

	var written atomic.Int64
	sink := SinkFunc[float32](func(s []float32) error {
		written.Add(int64(len(s)))
		return nil
	})

	for range 2 {
		before := written.Load()
		require.NoError(t, rx.Start(context.Background(), zeros{}, sink))
		require.ErrorIs(t, rx.Start(context.Background(), zeros{}, sink), ErrRunning)

		require.Eventually(t, func() bool { return written.Load() > before+4800 }, 5*time.Second, time.Millisecond)
		require.NoError(t, rx.TuneTo(testCenter+20e3))
		require.NoError(t, rx.Stop())
	}
}

func TestFMReceiver_WaitReturnsAtEndOfStream(t *testing.T) {
	rx, err := NewFMReceiver(testReceiverConfig())
	require.NoError(t, err)

	var sink SliceSink[float32]
	require.NoError(t, rx.Start(context.Background(), &SliceSource[complex64]{Data: fmSignal(50e3, 0, 0, 4800)}, &sink))
	require.NoError(t, rx.Wait())
	assert.NotEmpty(t, sink.Data)
}

func TestFMReceiver_SinkErrorStopsRun(t *testing.T) {
	rx, err := NewFMReceiver(testReceiverConfig())
	require.NoError(t, err)

	errFull := errors.New("disk full")
	sink := SinkFunc[float32](func([]float32) error { return errFull })
	require.NoError(t, rx.Start(context.Background(), zeros{}, sink))
	require.ErrorIs(t, rx.Wait(), errFull)
}

func TestFMReceiver_StopReportsDrainFailure(t *testing.T) {
	rx, err := NewFMReceiver(testReceiverConfig(), WithBlockSize(4800))
	require.NoError(t, err)

	errClosed := errors.New("output closed")
	var stopping atomic.Bool
	var written atomic.Int64
	sink := SinkFunc[float32](func(s []float32) error {
		if stopping.Load() {
			return errClosed
		}
		written.Add(int64(len(s)))
		return nil
	})

	require.NoError(t, rx.Start(context.Background(), zeros{}, sink))
	require.Eventually(t, func() bool { return written.Load() > 0 }, 5*time.Second, time.Millisecond)

	stopping.Store(true)
	require.ErrorIs(t, rx.Stop(), errClosed)
}

func TestOnlyCancelled(t *testing.T) {
	assert.True(t, onlyCancelled(context.Canceled))
	assert.True(t, onlyCancelled(fmt.Errorf("run: %w", context.Canceled)))
	assert.False(t, onlyCancelled(errors.Join(context.Canceled, errors.New("drain: short write"))))
	assert.False(t, onlyCancelled(context.DeadlineExceeded))
	assert.False(t, onlyCancelled(nil))
}
