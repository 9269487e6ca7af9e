package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// Source produces samples. Read fills up to len(dst) samples and returns
// io.EOF once the stream has ended; it may return n > 0 together with io.EOF.
type Source[T any] interface {
	Read(dst []T) (int, error)
}

// Sink consumes samples. The slice is only borrowed for the call.
type Sink[T any] interface {
	Write(samples []T) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc[T any] func(samples []T) error

// Write calls f.
func (f SinkFunc[T]) Write(samples []T) error { return f(samples) }

// Discard is a sink that drops everything.
func Discard[T any]() Sink[T] {
	return SinkFunc[T](func([]T) error { return nil })
}

// SliceSource serves samples from a slice in reads of at most Chunk samples.
type SliceSource[T any] struct {
	Data  []T
	Chunk int
	pos   int
}

// Read copies the next samples into dst.
func (s *SliceSource[T]) Read(dst []T) (int, error) {
	if s.pos >= len(s.Data) {
		return 0, io.EOF
	}
	n := len(dst)
	if s.Chunk > 0 {
		n = min(n, s.Chunk)
	}
	n = copy(dst[:n], s.Data[s.pos:])
	s.pos += n
	return n, nil
}

// SliceSink collects everything written to it.
type SliceSink[T any] struct {
	Data []T
}

// Write appends samples.
func (s *SliceSink[T]) Write(samples []T) error {
	s.Data = append(s.Data, samples...)
	return nil
}

// Options configures Run.
type Options struct {
	// BlockSize is the number of samples read per iteration. Zero selects DefaultBlockSize.
	BlockSize int

	// Logger receives debug output. Nil disables logging.
	Logger *log.Logger
}

// Stats counts the samples that went through Run.
type Stats struct {
	In      int64
	Out     int64
	Reads   int64
	Drained bool
}

// Run drives block from src to sink until the source ends or ctx is done.
//
// Each iteration reads up to BlockSize samples, offers everything not yet
// consumed to the block and writes its output to the sink. When the source
// returns io.EOF the block is drained and Run returns nil. When ctx is
// cancelled Run stops reading, drains the block at that block boundary and
// returns ctx.Err(). Input samples still unconsumed at that point are dropped.
// The same holds at end of stream: a trailing remainder the block never
// consumes, such as a partial frame, is dropped before the drain.
func Run[In, Out any](ctx context.Context, src Source[In], block Block[In, Out], sink Sink[Out], opts Options) (Stats, error) {
	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	logger := opts.Logger

	var stats Stats
	buf := make([]In, blockSize)
	pending := 0

	write := func(out []Out) error {
		if len(out) == 0 {
			return nil
		}
		stats.Out += int64(len(out))
		return sink.Write(out)
	}

	drain := func() error {
		out, err := block.Drain()
		if err != nil {
			return fmt.Errorf("drain: %w", err)
		}
		stats.Drained = true
		if logger != nil {
			logger.Debug("pipeline drained", "in", stats.In, "out", stats.Out+int64(len(out)), "dropped", pending)
		}
		return write(out)
	}

	for {
		if err := ctx.Err(); err != nil {
			if derr := drain(); derr != nil {
				return stats, errors.Join(err, derr)
			}
			return stats, err
		}

		if pending == len(buf) {
			if len(buf) >= blockSize*maxBufferGrowth {
				return stats, fmt.Errorf("%w: %d samples buffered", ErrStalled, pending)
			}
			grown := make([]In, len(buf)*bufferGrowthFactor)
			copy(grown, buf[:pending])
			buf = grown
		}

		n, rerr := src.Read(buf[pending:min(pending+blockSize, len(buf))])
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return stats, fmt.Errorf("read: %w", rerr)
		}
		stats.Reads++
		stats.In += int64(n)
		pending += n

		if pending > 0 {
			out, consumed, err := block.Process(buf[:pending])
			if err != nil {
				return stats, fmt.Errorf("process: %w", err)
			}
			if consumed < 0 || consumed > pending {
				return stats, fmt.Errorf("%w: %d of %d", ErrOverConsumed, consumed, pending)
			}
			if err := write(out); err != nil {
				return stats, fmt.Errorf("write: %w", err)
			}
			copy(buf, buf[consumed:pending])
			pending -= consumed
		}

		if errors.Is(rerr, io.EOF) {
			return stats, drain()
		}
	}
}
