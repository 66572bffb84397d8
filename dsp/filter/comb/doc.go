// Package comb implements multichannel feed-forward (FIR) and recursive
// (IIR) comb filters:
//
//	FIR: y[n] = x[n] + g*x[n-d]
//	IIR: y[n] = x[n] + g*y[n-d]
//
// Each channel keeps its history in a [delay.Ring] so blocks of any length
// produce the same output as one long block.
package comb
