/*
NAME
  ewma.go

DESCRIPTION
  ewma.go implements the receiver's average inter-packet arrival delay
  estimate (§4.9): an exponentially weighted moving average with a reset
  rule for long gaps.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package transport

import "time"

const (
	delayAlpha  = 0.1
	gapResetMax = 200 * time.Millisecond
)

// DelayEstimator tracks the EWMA of inter-packet arrival delay in
// microseconds, resetting (rather than blending) after a gap exceeding
// 200ms.
type DelayEstimator struct {
	last    time.Time
	avgUs   float64
	primed  bool
}

// Observe records a packet's arrival time and returns the updated
// average delay in microseconds.
func (d *DelayEstimator) Observe(now time.Time) uint32 {
	if !d.last.IsZero() {
		gap := now.Sub(d.last)
		sample := float64(gap.Microseconds())
		switch {
		case gap > gapResetMax || !d.primed:
			d.avgUs = sample
			d.primed = true
		default:
			d.avgUs = delayAlpha*sample + (1-delayAlpha)*d.avgUs
		}
	}
	d.last = now
	return uint32(d.avgUs)
}

// AvgMicros returns the current estimate without recording an arrival.
func (d *DelayEstimator) AvgMicros() uint32 { return uint32(d.avgUs) }
