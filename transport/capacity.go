/*
NAME
  capacity.go

DESCRIPTION
  capacity.go implements the sender's target_bytes_per_frame capacity
  estimate (§4.9), used by the controller to pick between its
  speculative encode candidates.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package transport

const maxDelayUs = 100000

// CapacityEstimate returns target_bytes_per_frame given the receiver's
// reported average delay and the sender's current fragments-in-flight
// count (last_sent_seq - last_acked_seq).
func CapacityEstimate(avgDelayUs uint32, fragmentsInFlight int) int {
	if avgDelayUs == 0 {
		return 0
	}
	budget := float64(maxDelayUs)/float64(avgDelayUs) - float64(fragmentsInFlight)
	if budget < 0 {
		budget = 0
	}
	return int(maxPayload * budget)
}
