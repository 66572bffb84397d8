// Package spectrum computes windowed magnitude spectra of real signals.
//
// It is an analysis helper for the effects in this module: FFTs come from
// algo-fft, the per-bin vector math from algo-vecmath. Typical use is
// checking where a processed signal puts its energy, for example the
// sidebands a vibrato spreads around a pure tone.
package spectrum
