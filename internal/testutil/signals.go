package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a sine wave starting at the given phase (radians).
func DeterministicSine(freqHz, sampleRate, amplitude, phase float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i)+phase)
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// MultiChannel builds a [channels][length] buffer, filling channel c with gen(c).
func MultiChannel(channels int, gen func(c int) []float64) [][]float64 {
	out := make([][]float64, channels)
	for c := range out {
		out[c] = gen(c)
	}
	return out
}

// CloneChannels deep-copies a multi-channel buffer.
func CloneChannels(in [][]float64) [][]float64 {
	out := make([][]float64, len(in))
	for c := range in {
		out[c] = append([]float64(nil), in[c]...)
	}
	return out
}

// FixedBlockSizes splits total into blocks of size n, the last one possibly shorter.
func FixedBlockSizes(total, n int) []int {
	if n <= 0 {
		return nil
	}
	var sizes []int
	for total > 0 {
		s := min(n, total)
		sizes = append(sizes, s)
		total -= s
	}
	return sizes
}

// RandomBlockSizes splits total into reproducible random blocks of 0..maxBlock
// samples. Zero-length blocks are included on purpose.
func RandomBlockSizes(seed int64, total, maxBlock int) []int {
	if maxBlock <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	var sizes []int
	for total > 0 {
		s := min(rng.Intn(maxBlock+1), total)
		sizes = append(sizes, s)
		total -= s
	}
	return sizes
}

// Slice returns per-channel views buf[c][start:start+n].
func Slice(buf [][]float64, start, n int) [][]float64 {
	out := make([][]float64, len(buf))
	for c := range buf {
		out[c] = buf[c][start : start+n]
	}
	return out
}
