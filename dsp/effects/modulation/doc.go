// Package modulation provides LFO-driven delay effects.
//
// Included processors:
//   - LFO: Read-only sine wavetable with caller-owned phase cursors.
//   - Vibrato: Multichannel sine-modulated delay line whose output does not
//     depend on how the input stream is split into blocks.
//
// Vibrato follows a small state machine: Init (sample rate, channels,
// maximum delay), then delay, width and modulation frequency via SetParam,
// or everything at once with InitWithParams. Changing delay, width or
// frequency rebuilds the delay lines and LFO.
package modulation
