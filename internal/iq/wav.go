package iq

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/go-sdr-dsp/internal/pipeline"
)

var (
	// ErrNotWAV is returned when the input is not a RIFF/WAVE file.
	ErrNotWAV = errors.New("not a WAV file")

	// ErrNotIQ is returned for WAV files that are not two-channel.
	ErrNotIQ = errors.New("WAV file is not two-channel I/Q")
)

const (
	iqChannels    = 2
	audioChannels = 1
	audioBitDepth = 16
	pcmFormat     = 1

	bitsPerSample8  = 8
	bitsPerSample24 = 24
	bitsPerSample32 = 32

	maxInt16 = 32767.0
	u8Center = 128
)

// fullScale returns the magnitude of a full-scale sample for bitDepth.
func fullScale(bitDepth int) float32 {
	switch bitDepth {
	case bitsPerSample8:
		return 128
	case bitsPerSample24:
		return 8388608
	case bitsPerSample32:
		return 2147483648
	default:
		return 32768
	}
}

// WAVReader reads a stereo WAV recording as complex samples, left channel
// in-phase and right channel quadrature.
type WAVReader struct {
	dec      *wav.Decoder
	buf      *audio.IntBuffer
	rate     int
	bitDepth int
	scale    float32
	done     bool
}

var _ pipeline.Source[complex64] = (*WAVReader)(nil)

// NewWAVReader validates the WAV header of rs and returns a reader
// positioned at the first sample.
func NewWAVReader(rs io.ReadSeeker) (*WAVReader, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}
	format := dec.Format()
	if format == nil {
		return nil, ErrNotWAV
	}
	if format.NumChannels != iqChannels {
		return nil, fmt.Errorf("%w: %d channels", ErrNotIQ, format.NumChannels)
	}
	bitDepth := int(dec.BitDepth)
	return &WAVReader{
		dec:      dec,
		buf:      &audio.IntBuffer{Format: format},
		rate:     format.SampleRate,
		bitDepth: bitDepth,
		scale:    fullScale(bitDepth),
	}, nil
}

// SampleRate returns the recording's sample rate.
func (w *WAVReader) SampleRate() int { return w.rate }

// BitDepth returns the PCM bit depth.
func (w *WAVReader) BitDepth() int { return w.bitDepth }

// Read decodes up to len(dst) samples.
func (w *WAVReader) Read(dst []complex64) (int, error) {
	if w.done {
		return 0, io.EOF
	}
	need := len(dst) * iqChannels
	if cap(w.buf.Data) < need {
		w.buf.Data = make([]int, need)
	}
	w.buf.Data = w.buf.Data[:need]

	n, err := w.dec.PCMBuffer(w.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read wav: %w", err)
	}
	frames := n / iqChannels
	if frames == 0 {
		w.done = true
		return 0, io.EOF
	}

	data := w.buf.Data
	offset := 0
	if w.bitDepth == bitsPerSample8 {
		offset = u8Center
	}
	for i := range frames {
		re := float32(data[2*i]-offset) / w.scale
		im := float32(data[2*i+1]-offset) / w.scale
		dst[i] = complex(re, im)
	}
	if frames < len(dst) {
		w.done = true
		return frames, io.EOF
	}
	return frames, nil
}

// WAVWriter writes mono 16-bit PCM audio. Samples are clamped to [-1, 1].
// Close must be called to finalise the header.
type WAVWriter struct {
	enc *wav.Encoder
	buf *audio.IntBuffer
	n   int64
}

var _ pipeline.Sink[float32] = (*WAVWriter)(nil)

// NewWAVWriter returns a WAVWriter at sampleRate.
func NewWAVWriter(ws io.WriteSeeker, sampleRate int) (*WAVWriter, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	return &WAVWriter{
		enc: wav.NewEncoder(ws, sampleRate, audioBitDepth, audioChannels, pcmFormat),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: audioChannels, SampleRate: sampleRate},
			SourceBitDepth: audioBitDepth,
		},
	}, nil
}

// Write encodes samples.
func (w *WAVWriter) Write(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, v := range samples {
		w.buf.Data[i] = quantize(v, maxInt16, maxInt16)
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	w.n += int64(len(samples))
	return nil
}

// Samples returns the number of samples written.
func (w *WAVWriter) Samples() int64 { return w.n }

// Close finalises the WAV header. It does not close the underlying writer.
func (w *WAVWriter) Close() error {
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}
