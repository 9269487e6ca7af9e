package sdrdsp

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/tphakala/go-sdr-dsp/internal/pipeline"
	"github.com/tphakala/go-sdr-dsp/internal/power"
)

// Tunable is anything whose frequency can be changed while samples flow:
// receiver hardware, or the frequency shifter inside a receiver.
// SetFrequency must be safe to call from any goroutine.
type Tunable interface {
	SetFrequency(hz float64) error
}

// TunableFunc adapts a function to Tunable.
type TunableFunc func(hz float64) error

// SetFrequency calls f.
func (f TunableFunc) SetFrequency(hz float64) error { return f(hz) }

// Source, Sink and Block are the streaming contract every stage follows.
type (
	Source[T any]      = pipeline.Source[T]
	Sink[T any]        = pipeline.Sink[T]
	Block[In, Out any] = pipeline.Block[In, Out]
	SinkFunc[T any]    = pipeline.SinkFunc[T]
	SliceSource[T any] = pipeline.SliceSource[T]
	SliceSink[T any]   = pipeline.SliceSink[T]
	Stats              = pipeline.Stats
	StageInfo          = pipeline.StageInfo
	Reading            = power.Reading
)

// Option configures a receiver.
type Option func(*options)

type options struct {
	logger    *log.Logger
	tunable   Tunable
	blockSize int
}

func newOptions(opts []Option) options {
	o := options{blockSize: pipeline.DefaultBlockSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}
	return o
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTunable attaches tunable hardware. The receiver then tunes the
// hardware instead of shifting a fixed-centre stream.
func WithTunable(t Tunable) Option {
	return func(o *options) { o.tunable = t }
}

// WithBlockSize sets how many samples are read per iteration.
func WithBlockSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.blockSize = n
		}
	}
}
