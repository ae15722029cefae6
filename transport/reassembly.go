/*
NAME
  reassembly.go

DESCRIPTION
  reassembly.go implements the receiver's fragmented-frame reassembly
  buffer (§4.9): a packet below next_expected is dropped, a packet above
  next_expected triggers a "flush previous" of each intervening
  partially-received frame, and a packet completing next_expected
  triggers full decode.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package transport

import "sort"

// Outcome classifies what a received fragment did to the reassembly
// state, telling the caller whether (and what) to hand to the decoder.
type Outcome int

const (
	// OutcomeNone means the fragment was buffered; no frame is ready.
	OutcomeNone Outcome = iota
	// OutcomeDropped means the fragment named a frame_no < next_expected.
	OutcomeDropped
	// OutcomeComplete means next_expected's frame is now fully received.
	OutcomeComplete
	// OutcomeFlushed means one or more earlier, partially-received frames
	// were handed to the decoder as-is because a later frame_no arrived.
	OutcomeFlushed
)

// FlushedFrame is one partially (or fully) reassembled frame produced by
// a flush-previous event, carrying the minihashes needed to select the
// decoder to apply it to.
type FlushedFrame struct {
	FrameNo        uint32
	SourceMinihash uint32
	TargetMinihash uint32
	Bytes          []byte
}

type partial struct {
	fragmentsInFrame int
	received         map[uint16][]byte
	sourceMinihash   uint32
	targetMinihash   uint32
}

// Reassembler holds one connection's in-progress frames.
type Reassembler struct {
	nextExpected uint32
	frames       map[uint32]*partial
}

// NewReassembler returns a Reassembler starting at frame_no 0.
func NewReassembler() *Reassembler {
	return &Reassembler{frames: make(map[uint32]*partial)}
}

// Receive processes one arrived fragment. complete is the concatenated
// frame bytes when outcome is OutcomeComplete; flushed holds every
// intervening frame's partial bytes when outcome is OutcomeFlushed,
// oldest first, and next_expected is advanced past all of them.
func (r *Reassembler) Receive(f Fragment) (outcome Outcome, complete []byte, flushed []FlushedFrame) {
	if f.FrameNo < r.nextExpected {
		return OutcomeDropped, nil, nil
	}

	p, ok := r.frames[f.FrameNo]
	if !ok {
		p = &partial{
			fragmentsInFrame: int(f.FragmentsInThisFrame),
			received:         make(map[uint16][]byte),
			sourceMinihash:   f.SourceMinihash,
			targetMinihash:   f.TargetMinihash,
		}
		r.frames[f.FrameNo] = p
	}
	p.received[f.FragmentNo] = f.Payload

	if f.FrameNo > r.nextExpected {
		flushed = r.flushThrough(f.FrameNo)
		return OutcomeFlushed, nil, flushed
	}

	if len(p.received) == p.fragmentsInFrame {
		complete = concatInOrder(p)
		delete(r.frames, f.FrameNo)
		r.nextExpected++
		return OutcomeComplete, complete, nil
	}
	return OutcomeNone, nil, nil
}

// flushThrough hands every buffered frame strictly below newFrameNo to
// the caller as a partial (possibly complete) reassembly, stopping each
// one's payload at the first missing fragment_no, then advances
// next_expected to newFrameNo.
func (r *Reassembler) flushThrough(newFrameNo uint32) []FlushedFrame {
	var nos []uint32
	for no := range r.frames {
		if no < newFrameNo {
			nos = append(nos, no)
		}
	}
	sort.Slice(nos, func(i, j int) bool { return nos[i] < nos[j] })

	out := make([]FlushedFrame, 0, len(nos))
	for _, no := range nos {
		p := r.frames[no]
		out = append(out, FlushedFrame{
			FrameNo:        no,
			SourceMinihash: p.sourceMinihash,
			TargetMinihash: p.targetMinihash,
			Bytes:          concatUpToGap(p),
		})
		delete(r.frames, no)
	}
	r.nextExpected = newFrameNo
	return out
}

func concatInOrder(p *partial) []byte {
	var out []byte
	for i := 0; i < p.fragmentsInFrame; i++ {
		out = append(out, p.received[uint16(i)]...)
	}
	return out
}

func concatUpToGap(p *partial) []byte {
	var out []byte
	for i := 0; i < p.fragmentsInFrame; i++ {
		b, ok := p.received[uint16(i)]
		if !ok {
			break
		}
		out = append(out, b...)
	}
	return out
}
