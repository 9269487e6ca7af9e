package iq

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/tphakala/go-sdr-dsp/internal/pipeline"
)

const ioBufferSize = 256 * 1024

// Reader decodes a raw interleaved recording into complex samples.
// A trailing incomplete sample is dropped.
type Reader struct {
	r      io.Reader
	format Format
	size   int
	buf    []byte
	done   bool
}

var _ pipeline.Source[complex64] = (*Reader)(nil)

// NewReader returns a Reader decoding format from r.
func NewReader(r io.Reader, format Format) (*Reader, error) {
	size := format.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, int(format))
	}
	return &Reader{r: bufio.NewReaderSize(r, ioBufferSize), format: format, size: size}, nil
}

// Format returns the sample format.
func (r *Reader) Format() Format { return r.format }

// Read fills dst with up to len(dst) samples. It returns io.EOF once the
// input is exhausted, possibly together with the final samples.
func (r *Reader) Read(dst []complex64) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	need := len(dst) * r.size
	if cap(r.buf) < need {
		r.buf = make([]byte, need)
	}
	buf := r.buf[:need]

	n, err := io.ReadFull(r.r, buf)
	switch {
	case errors.Is(err, io.EOF):
		r.done = true
		return 0, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		r.done = true
		err = io.EOF
	case err != nil:
		return 0, fmt.Errorf("read %s: %w", r.format, err)
	}

	count := n / r.size
	decode(r.format, dst[:count], buf[:count*r.size])
	return count, err
}

func decode(format Format, dst []complex64, b []byte) {
	switch format {
	case FormatCU8:
		for i := range dst {
			dst[i] = complex(
				float32((float64(b[2*i])-u8Offset)/u8Scale),
				float32((float64(b[2*i+1])-u8Offset)/u8Scale))
		}
	case FormatCS8:
		for i := range dst {
			dst[i] = complex(float32(int8(b[2*i]))/s8Scale, float32(int8(b[2*i+1]))/s8Scale)
		}
	case FormatCS16:
		for i := range dst {
			re := int16(binary.LittleEndian.Uint16(b[4*i:]))
			im := int16(binary.LittleEndian.Uint16(b[4*i+2:]))
			dst[i] = complex(float32(re)/s16Scale, float32(im)/s16Scale)
		}
	case FormatCF32:
		for i := range dst {
			re := math.Float32frombits(binary.LittleEndian.Uint32(b[8*i:]))
			im := math.Float32frombits(binary.LittleEndian.Uint32(b[8*i+4:]))
			dst[i] = complex(re, im)
		}
	}
}

// Writer encodes complex samples into a raw interleaved recording.
// Integer formats saturate out-of-range values. Call Flush when done.
type Writer struct {
	w      *bufio.Writer
	format Format
	buf    []byte
}

var _ pipeline.Sink[complex64] = (*Writer)(nil)

// NewWriter returns a Writer encoding format to w.
func NewWriter(w io.Writer, format Format) (*Writer, error) {
	if format.Size() == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, int(format))
	}
	return &Writer{w: bufio.NewWriterSize(w, ioBufferSize), format: format}, nil
}

// Write encodes samples.
func (w *Writer) Write(samples []complex64) error {
	need := len(samples) * w.format.Size()
	if cap(w.buf) < need {
		w.buf = make([]byte, need)
	}
	b := w.buf[:need]
	switch w.format {
	case FormatCU8:
		for i, v := range samples {
			b[2*i] = encodeU8(real(v))
			b[2*i+1] = encodeU8(imag(v))
		}
	case FormatCS8:
		for i, v := range samples {
			b[2*i] = byte(int8(quantize(real(v), s8Scale, s8Max)))
			b[2*i+1] = byte(int8(quantize(imag(v), s8Scale, s8Max)))
		}
	case FormatCS16:
		for i, v := range samples {
			binary.LittleEndian.PutUint16(b[4*i:], uint16(int16(quantize(real(v), s16Scale, s16Max))))
			binary.LittleEndian.PutUint16(b[4*i+2:], uint16(int16(quantize(imag(v), s16Scale, s16Max))))
		}
	case FormatCF32:
		for i, v := range samples {
			binary.LittleEndian.PutUint32(b[8*i:], math.Float32bits(real(v)))
			binary.LittleEndian.PutUint32(b[8*i+4:], math.Float32bits(imag(v)))
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("write %s: %w", w.format, err)
	}
	return nil
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error { return w.w.Flush() }

// quantize scales v and rounds it into [-limit-1, limit]. NaN becomes 0.
func quantize(v float32, scale, limit float64) int {
	x := math.Round(float64(v) * scale)
	switch {
	case math.IsNaN(x):
		return 0
	case x > limit:
		return int(limit)
	case x < -limit-1:
		return int(-limit - 1)
	}
	return int(x)
}

func encodeU8(v float32) byte {
	x := math.Round(float64(v)*u8Scale + u8Offset)
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > u8Max:
		return u8Max
	}
	return byte(x)
}

// FloatWriter writes real samples as raw little endian float32, the format
// expected by `play -t f32` and similar tools. Call Flush when done.
type FloatWriter struct {
	w   *bufio.Writer
	buf []byte
}

var _ pipeline.Sink[float32] = (*FloatWriter)(nil)

// NewFloatWriter returns a FloatWriter writing to w.
func NewFloatWriter(w io.Writer) *FloatWriter {
	return &FloatWriter{w: bufio.NewWriterSize(w, ioBufferSize)}
}

// Write encodes samples.
func (f *FloatWriter) Write(samples []float32) error {
	need := len(samples) * float32Sz
	if cap(f.buf) < need {
		f.buf = make([]byte, need)
	}
	b := f.buf[:need]
	for i, v := range samples {
		binary.LittleEndian.PutUint32(b[float32Sz*i:], math.Float32bits(v))
	}
	if _, err := f.w.Write(b); err != nil {
		return fmt.Errorf("write f32: %w", err)
	}
	return nil
}

// Flush writes buffered data to the underlying writer.
func (f *FloatWriter) Flush() error { return f.w.Flush() }
