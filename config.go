package sdrdsp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/go-sdr-dsp/internal/filter"
	"github.com/tphakala/go-sdr-dsp/internal/iq"
	"github.com/tphakala/go-sdr-dsp/internal/power"
	"github.com/tphakala/go-sdr-dsp/internal/spectrum"
)

// ErrInvalidConfig wraps every configuration error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the receiver configuration, usually loaded from YAML:
//
//	source:
//	  sample_rate: 2400000
//	  center_frequency: 100000000
//	  format: cu8
//	fm:
//	  frequency: 100300000
//	meter:
//	  policy: peak
type Config struct {
	Source SourceConfig `yaml:"source"`
	FM     FMConfig     `yaml:"fm"`
	Meter  MeterConfig  `yaml:"meter"`
}

// SourceConfig describes the sample stream.
type SourceConfig struct {
	// SampleRate in Hz. The FM receiver needs an integral rate.
	SampleRate float64 `yaml:"sample_rate"`

	// CenterFrequency is the frequency at DC of the stream when no tunable
	// hardware is attached.
	CenterFrequency float64 `yaml:"center_frequency"`

	// Format is the raw sample encoding (cu8, cs8, cs16, cf32).
	Format string `yaml:"format"`
}

// FMConfig configures the FM receiver.
type FMConfig struct {
	// Frequency is the station to receive, in Hz.
	Frequency float64 `yaml:"frequency"`

	// AudioRates lists the acceptable audio output rates in order of preference.
	AudioRates []int `yaml:"audio_rates"`

	// MaxAudioMult bounds the oversampling of the demodulator relative to
	// the audio rate.
	MaxAudioMult int `yaml:"max_audio_mult"`

	// OffsetFraction places the hardware centre this fraction of the
	// sample rate away from the station, keeping it clear of the DC spike.
	OffsetFraction float64 `yaml:"offset_fraction"`

	// ChannelMargin is added to the hardware offset when limiting the
	// demodulator rate, in Hz.
	ChannelMargin float64 `yaml:"channel_margin"`

	// Audio low-pass applied while decimating to the audio rate, in Hz.
	AudioCutoff     float64 `yaml:"audio_cutoff"`
	AudioTransition float64 `yaml:"audio_transition"`
	AudioRipple     float64 `yaml:"audio_ripple"`

	// Deviation scales the demodulator so that this deviation in Hz gives
	// unit output. Zero leaves the output in radians per sample.
	Deviation float64 `yaml:"deviation"`
}

// MeterConfig configures the spectral power meter.
type MeterConfig struct {
	FFTSize   int     `yaml:"fft_size"`
	FFTWindow string  `yaml:"fft_window"`
	FFTShift  bool    `yaml:"fft_shift"`
	Reference float64 `yaml:"reference"`

	// Policy is "mean" or "peak".
	Policy string `yaml:"policy"`

	// BinStart and BinCount select the bins both policies look at. A zero
	// BinCount extends the band to the end of the frame.
	BinStart int `yaml:"bin_start"`
	BinCount int `yaml:"bin_count"`

	// Window is the number of frames averaged per mean reading.
	Window int `yaml:"window"`

	// Threshold gates peak readings when Gated is set.
	Threshold float64 `yaml:"threshold"`
	Gated     bool    `yaml:"gated"`
}

// DefaultConfig returns a 2.4 MS/s cu8 stream, FM audio at the best
// matching rate and an averaging power meter over bins 2000..2045 of a
// shifted 4096-point spectrum.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			SampleRate:      DefaultSampleRate,
			CenterFrequency: DefaultFrequency,
			Format:          iq.FormatCU8.String(),
		},
		FM: FMConfig{
			Frequency:       DefaultFrequency,
			AudioRates:      DefaultAudioRates(),
			MaxAudioMult:    DefaultMaxAudioMult,
			OffsetFraction:  DefaultOffsetFraction,
			ChannelMargin:   DefaultChannelMargin,
			AudioCutoff:     DefaultAudioCutoff,
			AudioTransition: DefaultAudioTransition,
			AudioRipple:     DefaultAudioRipple,
			Deviation:       DefaultDeviation,
		},
		Meter: MeterConfig{
			FFTSize:   spectrum.DefaultSize,
			FFTWindow: spectrum.WindowRect.String(),
			FFTShift:  true,
			Reference: power.DefaultReference,
			Policy:    power.PolicyMean.String(),
			BinStart:  power.DefaultBinStart,
			BinCount:  power.DefaultBinCount,
			Window:    power.DefaultWindow,
			Threshold: power.DefaultThreshold,
			Gated:     true,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
// Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.FM.Validate(); err != nil {
		return err
	}
	return c.Meter.Validate()
}

// Validate checks the source section.
func (s *SourceConfig) Validate() error {
	if !(s.SampleRate > 0) || math.IsInf(s.SampleRate, 0) {
		return fmt.Errorf("%w: sample rate %g must be positive", ErrInvalidConfig, s.SampleRate)
	}
	if math.IsNaN(s.CenterFrequency) || math.IsInf(s.CenterFrequency, 0) {
		return fmt.Errorf("%w: center frequency %g", ErrInvalidConfig, s.CenterFrequency)
	}
	if _, err := iq.ParseFormat(s.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks the FM section on its own. Checks that depend on the
// sample rate happen when the receiver is planned.
func (f *FMConfig) Validate() error {
	if math.IsNaN(f.Frequency) || math.IsInf(f.Frequency, 0) {
		return fmt.Errorf("%w: fm frequency %g", ErrInvalidConfig, f.Frequency)
	}
	if len(f.AudioRates) == 0 {
		return fmt.Errorf("%w: no audio rates", ErrInvalidConfig)
	}
	for _, r := range f.AudioRates {
		if r <= 0 {
			return fmt.Errorf("%w: audio rate %d must be positive", ErrInvalidConfig, r)
		}
	}
	if f.MaxAudioMult < 1 {
		return fmt.Errorf("%w: max audio mult %d must be at least 1", ErrInvalidConfig, f.MaxAudioMult)
	}
	if f.OffsetFraction < 0 || f.OffsetFraction >= maxOffsetFraction {
		return fmt.Errorf("%w: offset fraction %g must be in [0, %g)", ErrInvalidConfig, f.OffsetFraction, maxOffsetFraction)
	}
	if f.ChannelMargin < 0 {
		return fmt.Errorf("%w: channel margin %g must not be negative", ErrInvalidConfig, f.ChannelMargin)
	}
	if !(f.AudioCutoff > 0) || !(f.AudioTransition > 0) {
		return fmt.Errorf("%w: audio filter %g/%g Hz must be positive", ErrInvalidConfig, f.AudioCutoff, f.AudioTransition)
	}
	if !(f.AudioRipple > 0) || f.AudioRipple >= 1 {
		return fmt.Errorf("%w: audio ripple %g must be in (0, 1)", ErrInvalidConfig, f.AudioRipple)
	}
	if !(f.Deviation >= 0) || math.IsInf(f.Deviation, 0) {
		return fmt.Errorf("%w: deviation %g", ErrInvalidConfig, f.Deviation)
	}
	return nil
}

// audioSpec returns the audio filter normalised to the demodulator rate.
func (f *FMConfig) audioSpec(demodRate float64) filter.Spec {
	return filter.Spec{
		Cutoff:     f.AudioCutoff / demodRate,
		Transition: f.AudioTransition / demodRate,
		Ripple:     f.AudioRipple,
	}
}

// Validate checks the meter section by building its component configs.
func (m *MeterConfig) Validate() error {
	if _, err := m.spectrumConfig(); err != nil {
		return err
	}
	_, err := m.aggregatorConfig()
	return err
}

func (m *MeterConfig) spectrumConfig() (spectrum.Config, error) {
	window, err := spectrum.ParseWindow(m.FFTWindow)
	if err != nil {
		return spectrum.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg := spectrum.Config{Size: m.FFTSize, Shift: m.FFTShift, Window: window, Reference: m.Reference}
	if err := cfg.Validate(); err != nil {
		return spectrum.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func (m *MeterConfig) aggregatorConfig() (power.Config, error) {
	policy, err := power.ParsePolicy(m.Policy)
	if err != nil {
		return power.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg := power.Config{
		BlockSize: m.FFTSize,
		Policy:    policy,
		BinStart:  m.BinStart,
		BinCount:  m.BinCount,
		Window:    m.Window,
		Threshold: m.Threshold,
		Gated:     m.Gated,
		Reference: m.Reference,
	}
	if err := cfg.Validate(); err != nil {
		return power.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}
