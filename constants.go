package sdrdsp

// Receiver defaults.
const (
	DefaultSampleRate = 2_400_000.0
	DefaultFrequency  = 100_000_000.0

	// DefaultMaxAudioMult is the largest demodulator rate, in multiples of
	// the audio rate.
	DefaultMaxAudioMult = 5

	// DefaultOffsetFraction tunes the hardware a quarter of the sample rate
	// above the station.
	DefaultOffsetFraction = 0.25
	DefaultChannelMargin  = 100e3

	DefaultAudioCutoff     = 2_000.0
	DefaultAudioTransition = 10_000.0
	DefaultAudioRipple     = 0.1

	// DefaultDeviation is the broadcast FM peak deviation.
	DefaultDeviation = 75e3
)

// DefaultAudioRates returns the output rates typical sound hardware
// accepts, in order of preference.
func DefaultAudioRates() []int {
	return []int{48000, 44100, 32000, 24000, 22050, 16000, 11025, 8000}
}

const maxOffsetFraction = 0.5
