package modulation

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vibrato/dsp/delay"
)

// ErrInvalidLFO is returned for LFO construction parameters that do not
// describe a periodic signal.
var ErrInvalidLFO = errors.New("modulation: invalid LFO parameters")

// LFO is a wavetable holding exactly one period of a sine scaled to a
// modulation width in samples:
//
//	s[i] = width * sin(2*pi*i*freq),  i in [0, period)
//
// where freq is the modulation frequency normalized by the sample rate.
// The table is filled once at construction and never written again, so
// many consumers can read it concurrently. Each consumer keeps its own
// phase cursor and steps it with [LFO.Next].
type LFO struct {
	table  *delay.Ring
	width  float64
	freq   float64
	cursor int
}

// NewLFO builds a wavetable of period samples. width is the peak offset in
// samples, normFreq the modulation frequency divided by the sample rate.
func NewLFO(period int, width, normFreq float64) (*LFO, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: period must be >= 1: %d", ErrInvalidLFO, period)
	}
	if width < 0 || math.IsNaN(width) || math.IsInf(width, 0) {
		return nil, fmt.Errorf("%w: width must be >= 0 and finite: %f", ErrInvalidLFO, width)
	}
	if normFreq <= 0 || math.IsNaN(normFreq) || math.IsInf(normFreq, 0) {
		return nil, fmt.Errorf("%w: frequency must be > 0 and finite: %f", ErrInvalidLFO, normFreq)
	}

	table, err := delay.NewRing(period)
	if err != nil {
		return nil, err
	}

	step := 2 * math.Pi * normFreq
	for i := 0; i < period; i++ {
		if err := table.Write(width * math.Sin(step*float64(i))); err != nil {
			return nil, err
		}
	}

	return &LFO{table: table, width: width, freq: normFreq}, nil
}

// Period returns the table length in samples.
func (l *LFO) Period() int { return l.table.Len() }

// Width returns the peak modulation offset in samples.
func (l *LFO) Width() float64 { return l.width }

// Frequency returns the normalized modulation frequency (cycles per sample).
func (l *LFO) Frequency() float64 { return l.freq }

// Value returns the table entry for phase, wrapped into one period.
func (l *LFO) Value(phase int) float64 {
	return l.table.Peek(phase)
}

// Next returns the value at phase and the phase of the following sample.
func (l *LFO) Next(phase int) (float64, int) {
	v := l.table.Peek(phase)
	phase++
	if phase >= l.table.Len() {
		phase = 0
	}
	return v, phase
}

// ReadAdvance returns the value at the LFO's own cursor and steps it.
// Use it when a single consumer drives the LFO.
func (l *LFO) ReadAdvance() float64 {
	var v float64
	v, l.cursor = l.Next(l.cursor)
	return v
}

// Phase returns the LFO's own cursor.
func (l *LFO) Phase() int { return l.cursor }

// SetPhase moves the LFO's own cursor, wrapped into one period.
func (l *LFO) SetPhase(phase int) {
	n := l.table.Len()
	phase %= n
	if phase < 0 {
		phase += n
	}
	l.cursor = phase
}

// Reset rewinds the LFO's own cursor. The table is left untouched.
func (l *LFO) Reset() {
	l.cursor = 0
}
