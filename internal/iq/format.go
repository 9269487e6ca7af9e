// Package iq reads and writes complex baseband recordings and writes
// demodulated audio.
//
// Raw recordings are interleaved I/Q pairs in one of the formats produced by
// common receivers: cu8 (rtl_sdr), cs8 (hackrf_transfer), cs16 and cf32.
// Stereo WAV files carry I in the left and Q in the right channel.
package iq

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownFormat is returned for unsupported sample formats.
var ErrUnknownFormat = errors.New("unknown sample format")

// Format is a raw interleaved I/Q sample encoding.
type Format int

const (
	FormatCU8 Format = iota
	FormatCS8
	FormatCS16
	FormatCF32
)

const (
	u8Offset  = 127.5
	u8Scale   = 128.0
	s8Scale   = 128.0
	s16Scale  = 32768.0
	s8Max     = math.MaxInt8
	s16Max    = math.MaxInt16
	u8Max     = math.MaxUint8
	float32Sz = 4
)

var formats = []struct {
	format Format
	name   string
	size   int
}{
	{FormatCU8, "cu8", 2},
	{FormatCS8, "cs8", 2},
	{FormatCS16, "cs16", 4},
	{FormatCF32, "cf32", 2 * float32Sz},
}

// ParseFormat parses a format name such as "cu8" or "cf32". The aliases
// "u8", "s8", "s16" and "f32" (and "fc32") are accepted too.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "u8", "rtl":
		name = "cu8"
	case "s8", "hackrf":
		name = "cs8"
	case "s16", "ci16":
		name = "cs16"
	case "f32", "fc32", "complex64":
		name = "cf32"
	}
	for _, f := range formats {
		if f.name == name {
			return f.format, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) String() string {
	for _, e := range formats {
		if e.format == f {
			return e.name
		}
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Size returns the number of bytes per complex sample, or 0 for an unknown format.
func (f Format) Size() int {
	for _, e := range formats {
		if e.format == f {
			return e.size
		}
	}
	return 0
}
