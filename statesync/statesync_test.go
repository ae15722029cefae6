/*
NAME
  statesync_test.go

DESCRIPTION
  statesync_test.go exercises §4.10's state-sync invariants: a
  fragment's minihash pair is derived from the encoder state that
  actually produced it, a decoder only accepts a fragment whose
  source_minihash matches its current state, and complete_states grows
  only through MarkComplete and stays in oldest-first order.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package statesync

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/salsifyvideo/core/encoder"
	"github.com/salsifyvideo/core/errkind"
	"github.com/salsifyvideo/core/vp8"
)

func TestBuildFrameHeaderMatchesMinihashes(t *testing.T) {
	before := encoder.NewState(16, 16)
	result := encoder.Result{
		State:    before,
		Minihash: vp8.ComputeMinihash(before.Refs, before.Probs),
	}
	fh := BuildFrameHeader(before, result)
	if fh.SourceMinihash != uint32(vp8.ComputeMinihash(before.Refs, before.Probs)) {
		t.Errorf("source minihash does not match the encoder's own before-state")
	}
	if fh.TargetMinihash != uint32(result.Minihash) {
		t.Errorf("target minihash does not match the encode result")
	}
}

func TestDecoderCacheSelectMatch(t *testing.T) {
	c := NewDecoderCache()
	mh := c.CurrentMinihash()
	d, err := c.Select(uint32(mh))
	if err != nil {
		t.Fatalf("Select on a matching source_minihash failed: %v", err)
	}
	if d == nil {
		t.Fatal("expected a non-nil decoder")
	}
}

func TestDecoderCacheSelectMismatch(t *testing.T) {
	c := NewDecoderCache()
	_, err := c.Select(uint32(c.CurrentMinihash()) ^ 0xFFFFFFFF)
	if !errkind.Is(err, errkind.CacheMiss) {
		t.Errorf("expected a CacheMiss error, got %v", err)
	}
}

func TestCompleteStatesOrderAndDedup(t *testing.T) {
	s := NewCompleteStates()
	// Insert out of numeric order to confirm List preserves insertion
	// (chronological) order rather than sorting by value.
	s.MarkComplete(vp8.Minihash(300))
	s.MarkComplete(vp8.Minihash(100))
	s.MarkComplete(vp8.Minihash(200))
	s.MarkComplete(vp8.Minihash(100)) // duplicate, must not reorder or grow the list

	got := s.List()
	want := []uint32{300, 100, 200}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("complete_states order mismatch (-want +got):\n%s", diff)
	}
}

func TestCompleteStatesForget(t *testing.T) {
	s := NewCompleteStates()
	s.MarkComplete(vp8.Minihash(1))
	s.MarkComplete(vp8.Minihash(2))
	s.MarkComplete(vp8.Minihash(3))
	s.Forget(vp8.Minihash(2))
	got := s.List()
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("got %v, want [2 3]", got)
	}
}
