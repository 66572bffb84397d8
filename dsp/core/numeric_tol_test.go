//go:build !fastmath

package core

// dbTolerance is the accepted dB (and relative linear) error of the
// conversions built on the standard library.
const dbTolerance = 1e-10
