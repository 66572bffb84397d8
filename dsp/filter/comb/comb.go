package comb

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-vibrato/dsp/delay"
)

var ErrInvalidArgument = errors.New("comb: invalid argument")

// Kind selects the comb topology.
type Kind int

const (
	FIR Kind = iota // feed-forward
	IIR             // recursive
)

func (k Kind) String() string {
	switch k {
	case FIR:
		return "fir"
	case IIR:
		return "iir"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

const (
	// scratchLen bounds the FIR block size handed to vecmath.
	scratchLen = 256

	// maxDelaySamples bounds maxDelay*sampleRate.
	maxDelaySamples = 1 << 26
)

// Filter is a multichannel comb filter. Gain defaults to 0 and delay to 0,
// i.e. a pass-through.
type Filter struct {
	kind       Kind
	sampleRate float64
	maxDelay   int
	delay      int
	gain       float64

	lines   []*delay.Ring
	delayed []float64
	scaled  []float64
}

// New returns a comb filter able to delay up to maxDelaySeconds.
func New(kind Kind, maxDelaySeconds, sampleRate float64, channels int) (*Filter, error) {
	if kind != FIR && kind != IIR {
		return nil, fmt.Errorf("%w: unknown kind %s", ErrInvalidArgument, kind)
	}
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w: sample rate must be > 0 and finite: %f", ErrInvalidArgument, sampleRate)
	}
	if maxDelaySeconds <= 0 || math.IsNaN(maxDelaySeconds) || math.IsInf(maxDelaySeconds, 0) {
		return nil, fmt.Errorf("%w: max delay must be > 0 and finite: %f", ErrInvalidArgument, maxDelaySeconds)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channels must be > 0: %d", ErrInvalidArgument, channels)
	}

	if maxDelaySeconds*sampleRate > maxDelaySamples {
		return nil, fmt.Errorf("%w: max delay of %g samples exceeds %d", ErrInvalidArgument, maxDelaySeconds*sampleRate, maxDelaySamples)
	}

	maxDelay := int(math.Round(maxDelaySeconds * sampleRate))
	if maxDelay < 1 {
		return nil, fmt.Errorf("%w: max delay shorter than one sample: %f", ErrInvalidArgument, maxDelaySeconds)
	}

	f := &Filter{
		kind:       kind,
		sampleRate: sampleRate,
		maxDelay:   maxDelay,
		lines:      make([]*delay.Ring, channels),
		delayed:    make([]float64, scratchLen),
		scaled:     make([]float64, scratchLen),
	}
	for c := range f.lines {
		line, err := delay.NewRing(maxDelay + 1)
		if err != nil {
			return nil, err
		}
		f.lines[c] = line
	}
	return f, nil
}

// SetGain sets the feedback/feed-forward gain. IIR filters require |g| <= 1.
func (f *Filter) SetGain(gain float64) error {
	if math.IsNaN(gain) || math.IsInf(gain, 0) {
		return fmt.Errorf("%w: gain must be finite: %f", ErrInvalidArgument, gain)
	}
	if f.kind == IIR && math.Abs(gain) > 1 {
		return fmt.Errorf("%w: recursive gain must be in [-1, 1]: %f", ErrInvalidArgument, gain)
	}
	f.gain = gain
	return nil
}

// SetDelay sets the delay in seconds, rounded to whole samples. The delay
// history is cleared.
func (f *Filter) SetDelay(seconds float64) error {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("%w: delay must be >= 0 and finite: %f", ErrInvalidArgument, seconds)
	}
	d := int(math.Round(seconds * f.sampleRate))
	if d > f.maxDelay {
		return fmt.Errorf("%w: delay %d samples exceeds max %d", ErrInvalidArgument, d, f.maxDelay)
	}
	f.delay = d
	f.Reset()
	return nil
}

// Kind returns the filter topology.
func (f *Filter) Kind() Kind { return f.kind }

// Gain returns the current gain.
func (f *Filter) Gain() float64 { return f.gain }

// Delay returns the current delay in seconds.
func (f *Filter) Delay() float64 { return float64(f.delay) / f.sampleRate }

// DelaySamples returns the current delay in samples.
func (f *Filter) DelaySamples() int { return f.delay }

// Channels returns the channel count.
func (f *Filter) Channels() int { return len(f.lines) }

// Reset clears the delay history.
func (f *Filter) Reset() {
	for _, line := range f.lines {
		line.Reset()
		// delay <= maxDelay < Len, cannot fail.
		_ = line.SetWriteIndex(f.delay)
	}
}

// Process filters frames samples of every channel. in and out may alias.
func (f *Filter) Process(in, out [][]float64, frames int) error {
	if frames < 0 {
		return fmt.Errorf("%w: frames must be >= 0: %d", ErrInvalidArgument, frames)
	}
	if len(in) != len(f.lines) || len(out) != len(f.lines) {
		return fmt.Errorf("%w: expected %d channels, got in=%d out=%d",
			ErrInvalidArgument, len(f.lines), len(in), len(out))
	}
	for c := range f.lines {
		if len(in[c]) < frames || len(out[c]) < frames {
			return fmt.Errorf("%w: channel %d shorter than %d frames", ErrInvalidArgument, c, frames)
		}
	}

	for c, line := range f.lines {
		src := in[c][:frames]
		dst := out[c][:frames]

		var err error
		switch {
		case f.delay == 0:
			copy(dst, src)
		case f.kind == FIR:
			err = f.processFIR(line, src, dst)
		default:
			err = f.processIIR(line, src, dst)
		}
		if err != nil {
			return fmt.Errorf("comb: channel %d: %w", c, err)
		}
	}
	return nil
}

// processFIR works in chunks of at most delay samples, so the delayed chunk
// is always fully buffered before the matching input chunk is written.
func (f *Filter) processFIR(line *delay.Ring, src, dst []float64) error {
	chunk := min(f.delay, scratchLen)
	for start := 0; start < len(src); start += chunk {
		n := min(chunk, len(src)-start)
		delayed := f.delayed[:n]
		scaled := f.scaled[:n]

		if err := line.ReadBlock(delayed); err != nil {
			return err
		}
		if err := line.WriteBlock(src[start : start+n]); err != nil {
			return err
		}

		out := dst[start : start+n]
		copy(out, src[start:start+n])
		vecmath.ScaleBlock(scaled, delayed, f.gain)
		vecmath.AddBlockInPlace(out, scaled)
	}
	return nil
}

func (f *Filter) processIIR(line *delay.Ring, src, dst []float64) error {
	for i := range src {
		fb, err := line.ReadAdvance()
		if err != nil {
			return err
		}
		y := src[i] + f.gain*fb
		if err := line.Write(y); err != nil {
			return err
		}
		dst[i] = y
	}
	return nil
}
