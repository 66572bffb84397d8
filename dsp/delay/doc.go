// Package delay provides the circular sample buffer used by the delay-based
// effects in this module.
//
// [Ring] keeps separate read and write indices so a producer can run ahead
// of the consumer by a fixed lead. Reads may use fractional offsets relative
// to the read index, which are resolved with linear interpolation. All
// misuse (overfilling, reading unwritten data) is reported as an error
// rather than silently wrapping.
package delay
