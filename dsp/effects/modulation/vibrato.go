package modulation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-vibrato/dsp/delay"
)

var (
	ErrInvalidArgument = errors.New("modulation: invalid argument")
	ErrNotInitialized  = errors.New("modulation: vibrato not initialized")
)

const (
	defaultVibratoDelaySeconds = 0.005
	defaultVibratoWidthSeconds = 0.002
	defaultVibratoModFreqHz    = 5.0

	// maxVibratoLFOPeriod bounds the wavetable allocation for very slow
	// modulation (about 5.8 minutes at 48 kHz).
	maxVibratoLFOPeriod = 1 << 24

	// maxVibratoDelaySamples bounds maxDelay*sampleRate (about 23 minutes
	// at 48 kHz), so ring capacities stay far below the int range.
	maxVibratoDelaySamples = 1 << 26
)

// Param identifies a vibrato parameter.
type Param int

const (
	ParamDelay   Param = iota // delay in seconds
	ParamWidth                // modulation width in seconds
	ParamModFreq              // modulation frequency in Hz

	numParams
)

func (p Param) String() string {
	switch p {
	case ParamDelay:
		return "delay"
	case ParamWidth:
		return "width"
	case ParamModFreq:
		return "mod-freq"
	default:
		return fmt.Sprintf("Param(%d)", int(p))
	}
}

// State is the configuration stage of a [Vibrato].
type State int

const (
	StateUninitialized State = iota
	StateConfigured          // sample rate, channels and max delay known
	StateReady               // delay lines and LFO built, Process allowed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// VibratoOption sets an initial parameter for [NewVibrato].
type VibratoOption func(*vibratoConfig) error

type vibratoConfig struct {
	delay   float64
	width   float64
	modFreq float64
}

// WithVibratoDelay sets the center delay in seconds.
func WithVibratoDelay(seconds float64) VibratoOption {
	return func(cfg *vibratoConfig) error {
		if seconds < 0 || !isFinite(seconds) {
			return fmt.Errorf("%w: vibrato delay must be >= 0 and finite: %f", ErrInvalidArgument, seconds)
		}
		cfg.delay = seconds
		return nil
	}
}

// WithVibratoWidth sets the modulation width in seconds.
func WithVibratoWidth(seconds float64) VibratoOption {
	return func(cfg *vibratoConfig) error {
		if seconds < 0 || !isFinite(seconds) {
			return fmt.Errorf("%w: vibrato width must be >= 0 and finite: %f", ErrInvalidArgument, seconds)
		}
		cfg.width = seconds
		return nil
	}
}

// WithVibratoModFreq sets the LFO frequency in Hz.
func WithVibratoModFreq(hz float64) VibratoOption {
	return func(cfg *vibratoConfig) error {
		if hz <= 0 || !isFinite(hz) {
			return fmt.Errorf("%w: vibrato modulation frequency must be > 0 and finite: %f", ErrInvalidArgument, hz)
		}
		cfg.modFreq = hz
		return nil
	}
}

// Vibrato is a multichannel modulated delay line.
//
// Every channel owns a delay ring whose write index leads the read index by
// round(delay*sampleRate) samples. Per sample, the input is written, a shared
// sine LFO yields an offset in [-width, +width] samples and the output is the
// linearly interpolated ring value at that offset from the read index.
//
// The LFO table is shared and read-only; each channel keeps its own phase
// cursor, so output does not depend on how the stream is split into blocks.
//
// The zero value is uninitialized. Call [Vibrato.Init] and set all three
// parameters, or use [Vibrato.InitWithParams] / [NewVibrato].
type Vibrato struct {
	state State

	sampleRate float64
	channels   int
	maxDelay   float64

	delay   float64
	width   float64
	modFreq float64
	set     [numParams]bool

	lines  []*delay.Ring
	lfo    *LFO
	phases []int
}

// NewVibrato returns a ready vibrato. Parameters not given as options use
// musical defaults (5 ms delay, 2 ms width, 5 Hz).
func NewVibrato(maxDelay, sampleRate float64, channels int, opts ...VibratoOption) (*Vibrato, error) {
	cfg := vibratoConfig{
		delay:   defaultVibratoDelaySeconds,
		width:   defaultVibratoWidthSeconds,
		modFreq: defaultVibratoModFreqHz,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	v := &Vibrato{}
	if err := v.InitWithParams(maxDelay, sampleRate, channels, cfg.delay, cfg.width, cfg.modFreq); err != nil {
		return nil, err
	}
	return v, nil
}

// Init sets sample rate, channel count and maximum delay. Any previous
// state is discarded. Delay, width and modulation frequency must be set with
// [Vibrato.SetParam] before processing.
func (v *Vibrato) Init(maxDelay, sampleRate float64, channels int) error {
	v.Reset()

	if err := validateVibratoSetup(maxDelay, sampleRate, channels); err != nil {
		return err
	}

	v.maxDelay = maxDelay
	v.sampleRate = sampleRate
	v.channels = channels
	v.state = StateConfigured
	return nil
}

// InitWithParams configures and builds the vibrato in one step. On error the
// vibrato is left uninitialized and nothing is allocated.
func (v *Vibrato) InitWithParams(maxDelay, sampleRate float64, channels int, delaySeconds, widthSeconds, modFreqHz float64) error {
	v.Reset()

	if err := validateVibratoSetup(maxDelay, sampleRate, channels); err != nil {
		return err
	}
	if err := validateVibratoParams(maxDelay, sampleRate, delaySeconds, widthSeconds, modFreqHz); err != nil {
		return err
	}

	if err := v.Init(maxDelay, sampleRate, channels); err != nil {
		return err
	}
	v.delay = delaySeconds
	v.width = widthSeconds
	v.modFreq = modFreqHz
	v.set = [numParams]bool{true, true, true}

	if err := v.rebuild(); err != nil {
		v.Reset()
		return err
	}
	return nil
}

// Reset releases all buffers and returns to the uninitialized state.
func (v *Vibrato) Reset() {
	*v = Vibrato{}
}

// SetParam updates one parameter. Each value is checked against the others
// already set. Once delay, width and frequency are all known the delay
// lines and LFO are rebuilt, which drops any audio still in flight.
func (v *Vibrato) SetParam(p Param, value float64) error {
	if v.state == StateUninitialized {
		return ErrNotInitialized
	}
	if !isFinite(value) {
		return fmt.Errorf("%w: %s must be finite: %f", ErrInvalidArgument, p, value)
	}

	switch p {
	case ParamDelay:
		if value < 0 || value > v.maxDelay {
			return fmt.Errorf("%w: delay must be in [0, %g]: %g", ErrInvalidArgument, v.maxDelay, value)
		}
		if v.set[ParamWidth] && v.width > value {
			return fmt.Errorf("%w: delay must be >= width %g: %g", ErrInvalidArgument, v.width, value)
		}
	case ParamWidth:
		limit := v.maxDelay
		if v.set[ParamDelay] {
			limit = v.delay
		}
		if value < 0 || value > limit {
			return fmt.Errorf("%w: width must be in [0, %g]: %g", ErrInvalidArgument, limit, value)
		}
	case ParamModFreq:
		if err := validateModFreq(v.sampleRate, value); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown parameter %s", ErrInvalidArgument, p)
	}

	prev := *v
	switch p {
	case ParamDelay:
		v.delay = value
	case ParamWidth:
		v.width = value
	case ParamModFreq:
		v.modFreq = value
	}
	v.set[p] = true

	if v.set != [numParams]bool{true, true, true} {
		return nil
	}
	if err := v.rebuild(); err != nil {
		*v = prev
		return err
	}
	return nil
}

// Param returns the current value of p. Parameters not set yet read as 0.
func (v *Vibrato) Param(p Param) (float64, error) {
	if v.state == StateUninitialized {
		return 0, ErrNotInitialized
	}

	switch p {
	case ParamDelay:
		return v.delay, nil
	case ParamWidth:
		return v.width, nil
	case ParamModFreq:
		return v.modFreq, nil
	default:
		return 0, fmt.Errorf("%w: unknown parameter %s", ErrInvalidArgument, p)
	}
}

// Process runs frames samples of every channel. in and out hold one slice
// per channel with at least frames samples each; they may be the same
// buffers for in-place processing. frames may differ on every call.
func (v *Vibrato) Process(in, out [][]float64, frames int) error {
	if err := v.checkBlock(in, out, frames); err != nil {
		return err
	}

	for c := 0; c < v.channels; c++ {
		if err := v.processChannel(c, in[c][:frames], out[c][:frames]); err != nil {
			return err
		}
	}
	return nil
}

// ProcessParallel is [Vibrato.Process] with one goroutine per channel.
// Output is identical to Process. ctx is only checked before any channel
// starts, so a block is never left half processed.
func (v *Vibrato) ProcessParallel(ctx context.Context, in, out [][]float64, frames int) error {
	if err := v.checkBlock(in, out, frames); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var g errgroup.Group
	for c := 0; c < v.channels; c++ {
		g.Go(func() error {
			return v.processChannel(c, in[c][:frames], out[c][:frames])
		})
	}
	return g.Wait()
}

// State returns the configuration stage.
func (v *Vibrato) State() State { return v.state }

// Channels returns the configured channel count.
func (v *Vibrato) Channels() int { return v.channels }

// SampleRate returns the sample rate in Hz.
func (v *Vibrato) SampleRate() float64 { return v.sampleRate }

// MaxDelay returns the maximum delay in seconds.
func (v *Vibrato) MaxDelay() float64 { return v.maxDelay }

// DelaySamples returns the delay rounded to whole samples.
func (v *Vibrato) DelaySamples() int {
	return int(math.Round(v.delay * v.sampleRate))
}

// WidthSamples returns the modulation width rounded to whole samples.
func (v *Vibrato) WidthSamples() int {
	return int(math.Round(v.width * v.sampleRate))
}

// BufferLen returns the per-channel ring capacity, or 0 before the vibrato
// is ready.
func (v *Vibrato) BufferLen() int {
	if len(v.lines) == 0 {
		return 0
	}
	return v.lines[0].Len()
}

// LFOPeriod returns the LFO table length in samples, or 0 before the
// vibrato is ready.
func (v *Vibrato) LFOPeriod() int {
	if v.lfo == nil {
		return 0
	}
	return v.lfo.Period()
}

// rebuild allocates fresh delay lines and LFO for the current parameters.
//
// The LFO swings the read position up to width samples either side of the
// read index. Looking ahead needs width <= delay buffered samples, which
// the parameter checks guarantee. Looking back needs width+1 samples of
// history (one extra for the interpolation neighbor). With the write index
// one past the newest sample the ring holds delay+1 buffered samples at
// read time, so the capacity must be at least delay + width + 2.
// 2 + delay + 2*width leaves width samples of slack on top.
func (v *Vibrato) rebuild() error {
	delaySamples := v.DelaySamples()
	widthSamples := v.WidthSamples()
	capacity := 2 + delaySamples + 2*widthSamples

	lines := make([]*delay.Ring, v.channels)
	for c := range lines {
		line, err := delay.NewRing(capacity)
		if err != nil {
			return err
		}
		if err := line.SetWriteIndex(delaySamples); err != nil {
			return err
		}
		lines[c] = line
	}

	period := max(int(math.Round(v.sampleRate/v.modFreq)), 1)
	lfo, err := NewLFO(period, float64(widthSamples), v.modFreq/v.sampleRate)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	v.lines = lines
	v.lfo = lfo
	v.phases = make([]int, v.channels)
	v.state = StateReady
	return nil
}

func (v *Vibrato) checkBlock(in, out [][]float64, frames int) error {
	if v.state != StateReady {
		return ErrNotInitialized
	}
	if frames < 0 {
		return fmt.Errorf("%w: frames must be >= 0: %d", ErrInvalidArgument, frames)
	}
	if len(in) != v.channels || len(out) != v.channels {
		return fmt.Errorf("%w: expected %d channels, got in=%d out=%d",
			ErrInvalidArgument, v.channels, len(in), len(out))
	}
	for c := 0; c < v.channels; c++ {
		if len(in[c]) < frames || len(out[c]) < frames {
			return fmt.Errorf("%w: channel %d shorter than %d frames (in=%d out=%d)",
				ErrInvalidArgument, c, frames, len(in[c]), len(out[c]))
		}
	}
	return nil
}

// processChannel touches only lines[c] and phases[c]; the LFO is read-only.
func (v *Vibrato) processChannel(c int, in, out []float64) error {
	line := v.lines[c]
	phase := v.phases[c]

	var offset float64
	for i := range in {
		if err := line.Write(in[i]); err != nil {
			return fmt.Errorf("vibrato: channel %d frame %d: %w", c, i, err)
		}

		offset, phase = v.lfo.Next(phase)

		y, err := line.Read(-offset)
		if err != nil {
			return fmt.Errorf("vibrato: channel %d frame %d: %w", c, i, err)
		}
		if _, err := line.ReadAdvance(); err != nil {
			return fmt.Errorf("vibrato: channel %d frame %d: %w", c, i, err)
		}

		out[i] = y
	}

	v.phases[c] = phase
	return nil
}

func validateVibratoSetup(maxDelay, sampleRate float64, channels int) error {
	if maxDelay <= 0 || !isFinite(maxDelay) {
		return fmt.Errorf("%w: max delay must be > 0 and finite: %f", ErrInvalidArgument, maxDelay)
	}
	if sampleRate <= 0 || !isFinite(sampleRate) {
		return fmt.Errorf("%w: sample rate must be > 0 and finite: %f", ErrInvalidArgument, sampleRate)
	}
	if channels <= 0 {
		return fmt.Errorf("%w: channels must be > 0: %d", ErrInvalidArgument, channels)
	}
	if maxDelay*sampleRate > maxVibratoDelaySamples {
		return fmt.Errorf("%w: max delay of %g samples exceeds %d", ErrInvalidArgument, maxDelay*sampleRate, maxVibratoDelaySamples)
	}
	return nil
}

func validateVibratoParams(maxDelay, sampleRate, delaySeconds, widthSeconds, modFreqHz float64) error {
	if delaySeconds < 0 || delaySeconds > maxDelay || !isFinite(delaySeconds) {
		return fmt.Errorf("%w: delay must be in [0, %g]: %g", ErrInvalidArgument, maxDelay, delaySeconds)
	}
	if widthSeconds < 0 || widthSeconds > delaySeconds || !isFinite(widthSeconds) {
		return fmt.Errorf("%w: width must be in [0, %g]: %g", ErrInvalidArgument, delaySeconds, widthSeconds)
	}
	return validateModFreq(sampleRate, modFreqHz)
}

// validateModFreq rejects 0 Hz: a vibrato without sweep is a plain delay,
// configure width 0 for that.
func validateModFreq(sampleRate, modFreqHz float64) error {
	if modFreqHz <= 0 || !isFinite(modFreqHz) {
		return fmt.Errorf("%w: modulation frequency must be > 0 and finite: %f", ErrInvalidArgument, modFreqHz)
	}
	if sampleRate/modFreqHz > maxVibratoLFOPeriod {
		return fmt.Errorf("%w: modulation frequency too low for sample rate %g: %g", ErrInvalidArgument, sampleRate, modFreqHz)
	}
	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
