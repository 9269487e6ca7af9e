package power

import (
	"github.com/tphakala/go-sdr-dsp/internal/pipeline"
)

// Meter is a streaming block that cuts a stream of per-bin dB values into
// frames of BlockSize and feeds them to an Aggregator.
type Meter struct {
	agg      *Aggregator
	finished bool
}

var _ pipeline.Block[float32, Reading] = (*Meter)(nil)

// NewMeter returns a Meter for cfg.
func NewMeter(cfg Config) (*Meter, error) {
	agg, err := NewAggregator(cfg)
	if err != nil {
		return nil, err
	}
	return &Meter{agg: agg}, nil
}

// Process observes every complete frame in input. A trailing partial frame
// is left unconsumed.
func (m *Meter) Process(input []float32) ([]Reading, int, error) {
	if m.finished {
		return nil, 0, pipeline.ErrFinished
	}
	size := m.agg.cfg.BlockSize
	var out []Reading
	consumed := 0
	for len(input)-consumed >= size {
		if r, ok := m.agg.Observe(input[consumed : consumed+size]); ok {
			out = append(out, r)
		}
		consumed += size
	}
	return out, consumed, nil
}

// Drain flushes a partial mean window.
func (m *Meter) Drain() ([]Reading, error) {
	if m.finished {
		return nil, nil
	}
	m.finished = true
	if r, ok := m.agg.Flush(); ok {
		return []Reading{r}, nil
	}
	return nil, nil
}

// Finished reports whether the meter was drained.
func (m *Meter) Finished() bool { return m.finished }

// Reset restarts the window.
func (m *Meter) Reset() {
	m.agg.Reset()
	m.finished = false
}

// Aggregator returns the underlying aggregator.
func (m *Meter) Aggregator() *Aggregator { return m.agg }

// Stages describes the meter as a frame decimator.
func (m *Meter) Stages() []pipeline.StageInfo {
	decim := m.agg.cfg.BlockSize
	if m.agg.cfg.Policy == PolicyMean {
		decim *= m.agg.cfg.Window
	}
	return []pipeline.StageInfo{{Name: "power-" + m.agg.cfg.Policy.String(), Interp: 1, Decim: decim}}
}
