/*
NAME
  statesync.go

DESCRIPTION
  statesync.go enforces the four State-Sync Protocol invariants of
  §4.10 at the points where sender and receiver touch the wire: building
  a fragment's source/target minihashes from the encoder state that
  actually produced it (invariant 1), selecting the one decoder a
  fragment may be applied to (invariant 2), and tracking the
  complete_states an ack may legally report (invariant 3). Sender-side
  cache eviction (invariant 4) lives in the controller package, which
  owns the cache itself.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package statesync ties the sender's and receiver's encoder/decoder
// state to the ack stream per §4.10's State-Sync Protocol invariants.
package statesync

import (
	"github.com/salsifyvideo/core/encoder"
	"github.com/salsifyvideo/core/errkind"
	"github.com/salsifyvideo/core/vp8"
)

// FrameHeader carries the minihash pair a fragment's header must
// reproduce verbatim (§6: source_minihash, target_minihash).
type FrameHeader struct {
	SourceMinihash uint32
	TargetMinihash uint32
}

// BuildFrameHeader derives a fragment's minihash pair from the encoder
// state an encode started from and the Result it produced, satisfying
// invariant 1 by construction: the two fields can only ever be the
// encoder's own before/after minihashes, never an unrelated value.
func BuildFrameHeader(before encoder.State, result encoder.Result) FrameHeader {
	return FrameHeader{
		SourceMinihash: uint32(vp8.ComputeMinihash(before.Refs, before.Probs)),
		TargetMinihash: uint32(result.Minihash),
	}
}

// DecoderCache holds the one decoder a receiver actively advances. A
// fragment may only be applied when its source_minihash matches the
// current decoder's state (invariant 2); a mismatch is reported as a
// CacheMiss so the caller can discard the frame and let the next ack
// reveal the decoder's actual current_state, per §4.10's Recovery rule.
// Only the single current decoder is tracked: the receiver is a
// sequential streaming decode_frame loop (§5), so unlike the sender's
// multi-candidate cache there is no second decoder state to keep warm.
type DecoderCache struct {
	current *vp8.Decoder
}

// NewDecoderCache returns a DecoderCache around a freshly constructed
// decoder, matching the sender's own initial (all-keyframe-default)
// state.
func NewDecoderCache() *DecoderCache {
	return &DecoderCache{current: vp8.NewDecoder()}
}

// CurrentMinihash returns the tracked decoder's state identifier.
func (c *DecoderCache) CurrentMinihash() vp8.Minihash { return c.current.Minihash() }

// Select returns the decoder to apply a fragment with the given
// source_minihash to, or a CacheMiss error if the current decoder's
// state doesn't match.
func (c *DecoderCache) Select(sourceMinihash uint32) (*vp8.Decoder, error) {
	if uint32(c.current.Minihash()) != sourceMinihash {
		return nil, errkind.CacheMissf("select decoder", "source_minihash %08x does not match current decoder %08x", sourceMinihash, c.current.Minihash())
	}
	return c.current, nil
}

// CompleteStates tracks the minihashes a receiver may legally report in
// an ack's complete_states list (invariant 3): a minihash is added only
// once decode_frame has actually produced it. Order is insertion
// (chronological, oldest-first) order, per §3's wire format — NOT
// numeric order, since a minihash is a content hash with no relation to
// when it was produced.
type CompleteStates struct {
	set     map[uint32]bool
	ordered []uint32
}

// NewCompleteStates returns an empty CompleteStates tracker.
func NewCompleteStates() *CompleteStates {
	return &CompleteStates{set: make(map[uint32]bool)}
}

// MarkComplete records mh as fully decoded. Safe to call more than once
// for the same value.
func (s *CompleteStates) MarkComplete(mh vp8.Minihash) {
	v := uint32(mh)
	if s.set[v] {
		return
	}
	s.set[v] = true
	s.ordered = append(s.ordered, v)
}

// List returns the oldest-first complete_states values for an outgoing
// ack.
func (s *CompleteStates) List() []uint32 {
	out := make([]uint32, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Forget drops every entry strictly older, in insertion order, than
// keepFrom — used to bound the receiver's own bookkeeping once the
// sender has had a chance to observe an ack naming it (the receiver has
// no eviction obligation per §4.10, but an unbounded list would grow
// forever over a long session).
func (s *CompleteStates) Forget(keepFrom vp8.Minihash) {
	v := uint32(keepFrom)
	idx := -1
	for i, mh := range s.ordered {
		if mh == v {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	for _, old := range s.ordered[:idx] {
		delete(s.set, old)
	}
	s.ordered = s.ordered[idx:]
}
