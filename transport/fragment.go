/*
NAME
  fragment.go

DESCRIPTION
  fragment.go splits a serialized frame into ≤1400-byte fragments per
  §4.9, tracking the elapsed time since the previous frame's first
  fragment was handed to the socket.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package transport

import "time"

// Fragmenter tracks the timing state needed to stamp time_since_last on
// the first fragment of each frame.
type Fragmenter struct {
	connID        uint16
	lastFirstSend time.Time
}

// NewFragmenter returns a Fragmenter for one connection.
func NewFragmenter(connID uint16) *Fragmenter {
	return &Fragmenter{connID: connID}
}

// Split breaks frameBytes into ⌈L/1400⌉ fragments, per §4.9. now is the
// time the caller intends to hand the first fragment to the socket;
// time_since_last on that fragment is now minus the previous call's now.
func (fr *Fragmenter) Split(frameNo uint32, sourceMinihash, targetMinihash uint32, frameBytes []byte, now time.Time) []Fragment {
	n := (len(frameBytes) + maxPayload - 1) / maxPayload
	if n == 0 {
		n = 1
	}
	frags := make([]Fragment, n)
	for i := 0; i < n; i++ {
		start := i * maxPayload
		end := start + maxPayload
		if end > len(frameBytes) {
			end = len(frameBytes)
		}
		var sinceLast uint32
		if i == 0 {
			if !fr.lastFirstSend.IsZero() {
				sinceLast = uint32(now.Sub(fr.lastFirstSend).Microseconds())
			}
			fr.lastFirstSend = now
		}
		frags[i] = Fragment{
			ConnectionID:         fr.connID,
			SourceMinihash:       sourceMinihash,
			TargetMinihash:       targetMinihash,
			FrameNo:              frameNo,
			FragmentNo:           uint16(i),
			FragmentsInThisFrame: uint16(n),
			TimeSinceLastMicros:  sinceLast,
			Payload:              frameBytes[start:end],
		}
	}
	return frags
}
