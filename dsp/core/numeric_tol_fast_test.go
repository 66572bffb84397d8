//go:build fastmath

package core

// dbTolerance is the accepted dB (and relative linear) error of the
// approximated conversions.
const dbTolerance = 1e-3
