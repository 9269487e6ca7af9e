// Package sweep reads the CSV output of rtl_power, hackrf_sweep and
// soapy_power.
//
// Each row holds one hop of a sweep:
//
//	date, time, freq_low, freq_high, freq_step, num_samples, dB, dB, ...
//
// A full sweep is the run of rows whose low edge rises above the low edge
// of the first row; the pattern then repeats for the next sweep.
package sweep

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedRecord is wrapped by ParseRecord errors.
var ErrMalformedRecord = errors.New("malformed sweep record")

const (
	dateLayout = "2006-01-02"
	// Fractional seconds are accepted after the seconds field when parsing.
	timeLayout = "15:04:05"
)

const (
	fieldDate = iota
	fieldTime
	fieldFreqLow
	fieldFreqHigh
	fieldFreqStep
	fieldNumSamples
	fieldFirstSample
)

// Record is one CSV row.
type Record struct {
	Time       time.Time
	FreqLow    uint64
	FreqHigh   uint64
	FreqStep   float64
	NumSamples int
	Samples    []float32
}

// Bins returns the centre frequency of every sample in the record.
func (r Record) Bins() []float64 {
	out := make([]float64, len(r.Samples))
	for i := range out {
		out[i] = float64(r.FreqLow) + (float64(i)+0.5)*r.FreqStep
	}
	return out
}

// ParseRecord converts trimmed CSV fields into a Record.
func ParseRecord(fields []string) (Record, error) {
	var rec Record
	if len(fields) < fieldFirstSample {
		return rec, fmt.Errorf("%w: %d fields", ErrMalformedRecord, len(fields))
	}

	day, err := time.Parse(dateLayout, fields[fieldDate])
	if err != nil {
		return rec, fmt.Errorf("%w: date: %w", ErrMalformedRecord, err)
	}
	clock, err := time.Parse(timeLayout, fields[fieldTime])
	if err != nil {
		return rec, fmt.Errorf("%w: time: %w", ErrMalformedRecord, err)
	}
	rec.Time = day.Add(time.Duration(clock.Hour())*time.Hour +
		time.Duration(clock.Minute())*time.Minute +
		time.Duration(clock.Second())*time.Second +
		time.Duration(clock.Nanosecond()))

	if rec.FreqLow, err = strconv.ParseUint(fields[fieldFreqLow], 10, 64); err != nil {
		return rec, fmt.Errorf("%w: freq_low: %w", ErrMalformedRecord, err)
	}
	if rec.FreqHigh, err = strconv.ParseUint(fields[fieldFreqHigh], 10, 64); err != nil {
		return rec, fmt.Errorf("%w: freq_high: %w", ErrMalformedRecord, err)
	}
	if rec.FreqHigh < rec.FreqLow {
		return rec, fmt.Errorf("%w: freq_high %d below freq_low %d", ErrMalformedRecord, rec.FreqHigh, rec.FreqLow)
	}
	if rec.FreqStep, err = strconv.ParseFloat(fields[fieldFreqStep], 64); err != nil {
		return rec, fmt.Errorf("%w: freq_step: %w", ErrMalformedRecord, err)
	}
	if rec.NumSamples, err = strconv.Atoi(fields[fieldNumSamples]); err != nil {
		return rec, fmt.Errorf("%w: num_samples: %w", ErrMalformedRecord, err)
	}

	rec.Samples = make([]float32, 0, len(fields)-fieldFirstSample)
	for i, f := range fields[fieldFirstSample:] {
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return rec, fmt.Errorf("%w: sample %d: %w", ErrMalformedRecord, i, err)
		}
		rec.Samples = append(rec.Samples, float32(v))
	}
	return rec, nil
}

// DataFrame holds the records of a sweep file and its derived geometry.
type DataFrame struct {
	Records []Record

	// FreqLow is the low edge of the first row and FreqHigh the high edge
	// of the last row of the first sweep.
	FreqLow  uint64
	FreqHigh uint64
	FreqStep float64

	// SweepSteps is the number of rows per sweep.
	SweepSteps int

	// Skipped counts rows that could not be parsed.
	Skipped int
}

// Parse reads every row from r. Rows that do not parse are skipped and
// counted; only read errors are returned.
func Parse(r io.Reader) (*DataFrame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	df := &DataFrame{}
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			df.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read sweep: %w", err)
		}
		if blank(fields) {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		rec, err := ParseRecord(fields)
		if err != nil {
			df.Skipped++
			continue
		}
		df.Records = append(df.Records, rec)
	}
	df.index()
	return df, nil
}

// ParseString parses CSV held in a string.
func ParseString(s string) (*DataFrame, error) {
	return Parse(strings.NewReader(s))
}

func (df *DataFrame) index() {
	if len(df.Records) == 0 {
		return
	}
	first := df.Records[0]
	steps := 1
	for _, rec := range df.Records[1:] {
		if rec.FreqLow <= first.FreqLow {
			break
		}
		steps++
	}
	df.SweepSteps = steps
	df.FreqLow = first.FreqLow
	df.FreqHigh = df.Records[steps-1].FreqHigh
	df.FreqStep = first.FreqStep
}

// Sweeps groups the records into sweeps of SweepSteps rows. A trailing
// incomplete sweep is included.
func (df *DataFrame) Sweeps() [][]Record {
	if df.SweepSteps == 0 {
		return nil
	}
	var out [][]Record
	for i := 0; i < len(df.Records); i += df.SweepSteps {
		out = append(out, df.Records[i:min(i+df.SweepSteps, len(df.Records))])
	}
	return out
}

// Row returns the samples of sweep i concatenated across its hops, or nil
// when i is out of range.
func (df *DataFrame) Row(i int) []float32 {
	sweeps := df.Sweeps()
	if i < 0 || i >= len(sweeps) {
		return nil
	}
	var row []float32
	for _, rec := range sweeps[i] {
		row = append(row, rec.Samples...)
	}
	return row
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
