package spectrum

import (
	"errors"
	"fmt"
	"math"
	"sync"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-vibrato/dsp/window"
)

var (
	ErrEmptyInput        = errors.New("spectrum: empty input")
	ErrInvalidSampleRate = errors.New("spectrum: sample rate must be positive")
)

// scratchBuf holds pooled scratch memory for complex-to-real unpacking.
type scratchBuf struct {
	data []float64
}

var scratchPool = sync.Pool{
	New: func() any { return &scratchBuf{} },
}

func getScratch(n int) (re, im []float64, buf *scratchBuf) {
	buf = scratchPool.Get().(*scratchBuf)
	need := 2 * n
	if cap(buf.data) < need {
		buf.data = make([]float64, need)
	} else {
		buf.data = buf.data[:need]
	}
	return buf.data[:n], buf.data[n:need], buf
}

func putScratch(buf *scratchBuf) {
	scratchPool.Put(buf)
}

// Analysis is the one-sided magnitude spectrum of a real signal.
type Analysis struct {
	// Magnitude holds |X[k]| for k in [0, FFTSize/2].
	Magnitude  []float64
	FFTSize    int
	SampleRate float64
}

// Analyze applies a periodic Hann window to samples, zero-pads them to the
// next power of two and returns the one-sided magnitude spectrum.
func Analyze(samples []float64, sampleRate float64) (Analysis, error) {
	return AnalyzeWindow(samples, sampleRate, window.TypeHann)
}

// AnalyzeWindow is Analyze with a caller-chosen analysis window.
func AnalyzeWindow(samples []float64, sampleRate float64, win window.Type) (Analysis, error) {
	if len(samples) == 0 {
		return Analysis{}, ErrEmptyInput
	}
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return Analysis{}, fmt.Errorf("%w: %f", ErrInvalidSampleRate, sampleRate)
	}

	fftSize := NextPowerOf2(len(samples))

	windowed := make([]float64, len(samples))
	copy(windowed, samples)
	window.Apply(win, windowed, window.WithPeriodic())

	in := make([]complex128, fftSize)
	for i, v := range windowed {
		in[i] = complex(v, 0)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return Analysis{}, fmt.Errorf("spectrum: failed to create FFT plan: %w", err)
	}

	out := make([]complex128, fftSize)
	if err := plan.Forward(out, in); err != nil {
		return Analysis{}, fmt.Errorf("spectrum: forward FFT failed: %w", err)
	}

	return Analysis{
		Magnitude:  Magnitude(out[:fftSize/2+1]),
		FFTSize:    fftSize,
		SampleRate: sampleRate,
	}, nil
}

// Magnitude returns |X[k]| for each complex spectrum bin.
//
// Scratch buffers are pooled, so in steady state this allocates only the
// output slice.
func Magnitude(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}

	out := make([]float64, len(in))
	re, im, buf := getScratch(len(in))

	for i, c := range in {
		re[i] = real(c)
		im[i] = imag(c)
	}

	vecmath.Magnitude(out, re, im)
	putScratch(buf)
	return out
}

// BinFrequency returns the center frequency of bin in Hz.
func (a Analysis) BinFrequency(bin int) float64 {
	return float64(bin) * a.SampleRate / float64(a.FFTSize)
}

// FrequencyBin returns the bin closest to hz, clamped to the spectrum.
func (a Analysis) FrequencyBin(hz float64) int {
	bin := int(math.Round(hz * float64(a.FFTSize) / a.SampleRate))
	return max(0, min(bin, len(a.Magnitude)-1))
}

// PeakBin returns the index of the largest magnitude, or -1 for an empty
// spectrum.
func (a Analysis) PeakBin() int {
	peak := -1
	best := math.Inf(-1)
	for i, m := range a.Magnitude {
		if m > best {
			best = m
			peak = i
		}
	}
	return peak
}

// BandEnergy returns the sum of squared magnitudes over bins [lo, hi],
// clamped to the spectrum.
func (a Analysis) BandEnergy(lo, hi int) float64 {
	lo = max(lo, 0)
	hi = min(hi, len(a.Magnitude)-1)
	energy := 0.0
	for i := lo; i <= hi; i++ {
		energy += a.Magnitude[i] * a.Magnitude[i]
	}
	return energy
}

// TotalEnergy returns the sum of squared magnitudes over all bins.
func (a Analysis) TotalEnergy() float64 {
	return a.BandEnergy(0, len(a.Magnitude)-1)
}

// NextPowerOf2 returns the smallest power of two >= n (1 for n <= 1).
func NextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
