// Package pipeline defines the streaming block contract shared by every
// DSP stage and the plumbing that composes and drives blocks.
//
// A block is called with a borrowed slice of input samples and reports how
// many of them it consumed. Samples it did not consume remain the caller's
// responsibility and are offered again, together with newer input, on the
// next call. A block never retains the input slice after returning.
package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrOverConsumed is returned when a block claims to consume more
	// samples than it was given.
	ErrOverConsumed = errors.New("block consumed more samples than offered")

	// ErrStalled is returned by Run when a block refuses to consume
	// anything even after the input buffer reached its maximum size.
	ErrStalled = errors.New("block made no progress")

	// ErrFinished is returned by Process on a block that has been drained.
	ErrFinished = errors.New("block already finished")
)

// Block is a streaming processing stage.
type Block[In, Out any] interface {
	// Process consumes a prefix of input and returns the output produced.
	// consumed never exceeds len(input). The input slice is only borrowed.
	Process(input []In) (output []Out, consumed int, err error)

	// Drain signals end of stream. It returns any output still buffered
	// inside the block and marks the block finished. Draining an already
	// finished block returns nothing.
	Drain() ([]Out, error)

	// Finished reports whether Drain has been called since the last Reset.
	Finished() bool

	// Reset returns the block to its stream-start state.
	Reset()
}

// StageInfo describes the rate change and delay of one stage.
type StageInfo struct {
	Name string

	// Interp and Decim give the stage's output/input rate ratio.
	Interp int
	Decim  int

	// Latency is the stage delay in its own output samples.
	Latency float64

	// FilterLength and Phases are zero for stages without a filter.
	FilterLength int
	Phases       int
}

// Describer is implemented by blocks that can report their stages.
type Describer interface {
	Stages() []StageInfo
}

// Stages returns the stages of b, or nil when b does not describe itself.
func Stages(b any) []StageInfo {
	if d, ok := b.(Describer); ok {
		return d.Stages()
	}
	return nil
}

// TotalLatency returns the end-to-end delay of stages in output samples of
// the last stage. Each stage's latency is rescaled by the rate change of the
// stages that follow it.
func TotalLatency(stages []StageInfo) float64 {
	var total float64
	for _, s := range stages {
		total *= ratio(s)
		total += s.Latency
	}
	return total
}

// TotalRatio returns the overall output/input rate ratio of stages.
func TotalRatio(stages []StageInfo) float64 {
	r := 1.0
	for _, s := range stages {
		r *= ratio(s)
	}
	return r
}

func ratio(s StageInfo) float64 {
	if s.Interp <= 0 || s.Decim <= 0 {
		return 1
	}
	return float64(s.Interp) / float64(s.Decim)
}

// Applied is a one-to-one block built from a per-sample function.
type Applied[In, Out any] struct {
	name     string
	fn       func(In) Out
	reset    func()
	finished bool
}

// Apply adapts a per-sample function into a block. The function may close
// over state; reset, when non-nil, restores that state on Reset.
func Apply[In, Out any](name string, fn func(In) Out, reset func()) *Applied[In, Out] {
	return &Applied[In, Out]{name: name, fn: fn, reset: reset}
}

// Process maps every input sample.
func (a *Applied[In, Out]) Process(input []In) ([]Out, int, error) {
	if a.finished {
		return nil, 0, ErrFinished
	}
	out := make([]Out, len(input))
	for i, v := range input {
		out[i] = a.fn(v)
	}
	return out, len(input), nil
}

// Drain marks the block finished. A per-sample function buffers nothing.
func (a *Applied[In, Out]) Drain() ([]Out, error) {
	a.finished = true
	return nil, nil
}

// Finished reports whether the block was drained.
func (a *Applied[In, Out]) Finished() bool { return a.finished }

// Reset clears the finished flag and calls the reset hook.
func (a *Applied[In, Out]) Reset() {
	a.finished = false
	if a.reset != nil {
		a.reset()
	}
}

// Stages describes the block as a single unity-rate stage.
func (a *Applied[In, Out]) Stages() []StageInfo {
	return []StageInfo{{Name: a.name, Interp: 1, Decim: 1}}
}

// Chained composes two blocks. Output of the first stage that the second
// has not consumed yet is held in a ring buffer between calls.
type Chained[A, B, C any] struct {
	first    Block[A, B]
	second   Block[B, C]
	pending  *RingBuffer[B]
	finished bool
}

// Chain returns first followed by second.
func Chain[A, B, C any](first Block[A, B], second Block[B, C]) *Chained[A, B, C] {
	return &Chained[A, B, C]{
		first:   first,
		second:  second,
		pending: NewRingBuffer[B](DefaultBlockSize),
	}
}

// Process runs input through both stages. consumed is what the first stage consumed.
func (c *Chained[A, B, C]) Process(input []A) ([]C, int, error) {
	if c.finished {
		return nil, 0, ErrFinished
	}

	mid, consumed, err := c.first.Process(input)
	if err != nil {
		return nil, 0, err
	}
	if consumed > len(input) {
		return nil, 0, fmt.Errorf("%w: %d of %d", ErrOverConsumed, consumed, len(input))
	}
	c.pending.Write(mid)

	out, err := c.pump(nil)
	if err != nil {
		return out, consumed, err
	}
	return out, consumed, nil
}

// pump offers pending samples to the second stage until it stops making progress.
func (c *Chained[A, B, C]) pump(out []C) ([]C, error) {
	for range drainPasses {
		if c.pending.Available() == 0 {
			break
		}
		data := c.pending.Peek(c.pending.Available())
		res, n, err := c.second.Process(data)
		if err != nil {
			return out, err
		}
		if n > len(data) {
			return out, fmt.Errorf("%w: %d of %d", ErrOverConsumed, n, len(data))
		}
		c.pending.Discard(n)
		out = append(out, res...)
		if n == 0 {
			break
		}
	}
	return out, nil
}

// Drain drains the first stage, pushes its tail through the second stage
// and then drains the second. Pending samples the second stage never
// consumes (such as an incomplete frame) are dropped.
func (c *Chained[A, B, C]) Drain() ([]C, error) {
	if c.finished {
		return nil, nil
	}
	c.finished = true

	tail, err := c.first.Drain()
	if err != nil {
		return nil, err
	}
	c.pending.Write(tail)

	out, err := c.pump(nil)
	if err != nil {
		return out, err
	}
	c.pending.Clear()

	rest, err := c.second.Drain()
	if err != nil {
		return out, err
	}
	return append(out, rest...), nil
}

// Finished reports whether the chain was drained.
func (c *Chained[A, B, C]) Finished() bool { return c.finished }

// Reset resets both stages and drops pending samples.
func (c *Chained[A, B, C]) Reset() {
	c.first.Reset()
	c.second.Reset()
	c.pending.Clear()
	c.finished = false
}

// Pending returns the number of intermediate samples waiting for the second stage.
func (c *Chained[A, B, C]) Pending() int { return c.pending.Available() }

// Stages concatenates the stages of both halves.
func (c *Chained[A, B, C]) Stages() []StageInfo {
	return append(Stages(c.first), Stages(c.second)...)
}
