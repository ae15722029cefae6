/*
NAME
  wire.go

DESCRIPTION
  wire.go implements the two UDP wire formats of §6: the data fragment
  and the ack, both little-endian, both fixed-prefix-plus-payload.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package transport implements Salsify's loss-adaptive UDP transport
// (§4.9): fragmentation, FIFO pacing, reassembly and the ack channel
// that drives the controller's capacity estimate and state-cache
// eviction.
package transport

import (
	"encoding/binary"

	"github.com/salsifyvideo/core/errkind"
)

const (
	maxPayload   = 1400
	fragHeaderSz = 22
	ackHeaderSz  = 20
)

// Fragment is one UDP datagram's worth of a fragmented frame.
type Fragment struct {
	ConnectionID          uint16
	SourceMinihash        uint32
	TargetMinihash        uint32
	FrameNo               uint32
	FragmentNo            uint16
	FragmentsInThisFrame  uint16
	TimeSinceLastMicros   uint32
	Payload               []byte
}

// Marshal encodes f per §6's data-fragment wire format.
func (f Fragment) Marshal() []byte {
	buf := make([]byte, fragHeaderSz+len(f.Payload))
	binary.LittleEndian.PutUint16(buf[0:2], f.ConnectionID)
	binary.LittleEndian.PutUint32(buf[2:6], f.SourceMinihash)
	binary.LittleEndian.PutUint32(buf[6:10], f.TargetMinihash)
	binary.LittleEndian.PutUint32(buf[10:14], f.FrameNo)
	binary.LittleEndian.PutUint16(buf[14:16], f.FragmentNo)
	binary.LittleEndian.PutUint16(buf[16:18], f.FragmentsInThisFrame)
	binary.LittleEndian.PutUint32(buf[18:22], f.TimeSinceLastMicros)
	copy(buf[22:], f.Payload)
	return buf
}

// UnmarshalFragment parses a data-fragment datagram. A fragment with an
// empty payload violates the stated invariant (fragments_in_this_frame
// must exceed fragment_no with nonempty payload) and is reported as
// Invalid per §7.
func UnmarshalFragment(buf []byte) (Fragment, error) {
	if len(buf) < fragHeaderSz {
		return Fragment{}, errkind.Invalidf("unmarshal fragment", "fragment shorter than %d-byte header", fragHeaderSz)
	}
	f := Fragment{
		ConnectionID:         binary.LittleEndian.Uint16(buf[0:2]),
		SourceMinihash:       binary.LittleEndian.Uint32(buf[2:6]),
		TargetMinihash:       binary.LittleEndian.Uint32(buf[6:10]),
		FrameNo:              binary.LittleEndian.Uint32(buf[10:14]),
		FragmentNo:           binary.LittleEndian.Uint16(buf[14:16]),
		FragmentsInThisFrame: binary.LittleEndian.Uint16(buf[16:18]),
		TimeSinceLastMicros:  binary.LittleEndian.Uint32(buf[18:22]),
	}
	if len(buf) == fragHeaderSz {
		return Fragment{}, errkind.Invalidf("unmarshal fragment", "fragment has empty payload")
	}
	if f.FragmentNo >= f.FragmentsInThisFrame {
		return Fragment{}, errkind.Invalidf("unmarshal fragment", "fragment_no %d >= fragments_in_this_frame %d", f.FragmentNo, f.FragmentsInThisFrame)
	}
	f.Payload = append([]byte(nil), buf[fragHeaderSz:]...)
	return f, nil
}

// Ack is the receiver's per-packet status report (§4.9, §6).
type Ack struct {
	ConnectionID        uint16
	FrameNo             uint32
	FragmentNo          uint16
	AvgDelayMicros      uint32
	CurrentStateMinihash uint32
	CompleteStates      []uint32
}

// Marshal encodes a per §6's ack wire format.
func (a Ack) Marshal() []byte {
	buf := make([]byte, ackHeaderSz+4*len(a.CompleteStates))
	binary.LittleEndian.PutUint16(buf[0:2], a.ConnectionID)
	binary.LittleEndian.PutUint32(buf[2:6], a.FrameNo)
	binary.LittleEndian.PutUint16(buf[6:8], a.FragmentNo)
	binary.LittleEndian.PutUint32(buf[8:12], a.AvgDelayMicros)
	binary.LittleEndian.PutUint32(buf[12:16], a.CurrentStateMinihash)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(a.CompleteStates)))
	for i, mh := range a.CompleteStates {
		binary.LittleEndian.PutUint32(buf[20+4*i:24+4*i], mh)
	}
	return buf
}

// UnmarshalAck parses an ack datagram.
func UnmarshalAck(buf []byte) (Ack, error) {
	if len(buf) < ackHeaderSz {
		return Ack{}, errkind.Invalidf("unmarshal ack", "ack shorter than %d-byte header", ackHeaderSz)
	}
	a := Ack{
		ConnectionID:         binary.LittleEndian.Uint16(buf[0:2]),
		FrameNo:              binary.LittleEndian.Uint32(buf[2:6]),
		FragmentNo:           binary.LittleEndian.Uint16(buf[6:8]),
		AvgDelayMicros:       binary.LittleEndian.Uint32(buf[8:12]),
		CurrentStateMinihash: binary.LittleEndian.Uint32(buf[12:16]),
	}
	count := binary.LittleEndian.Uint32(buf[16:20])
	want := ackHeaderSz + 4*int(count)
	if len(buf) < want {
		return Ack{}, errkind.Invalidf("unmarshal ack", "ack truncated complete_states: want %d bytes, have %d", want, len(buf))
	}
	a.CompleteStates = make([]uint32, count)
	for i := range a.CompleteStates {
		a.CompleteStates[i] = binary.LittleEndian.Uint32(buf[20+4*i : 24+4*i])
	}
	return a, nil
}
