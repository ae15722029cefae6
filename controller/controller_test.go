/*
NAME
  controller_test.go

DESCRIPTION
  controller_test.go exercises §4.8's two-candidate pick rule, the
  MAX_SKIPPED forced-send escape hatch, conservative-mode source
  pinning, and §4.10's cache-eviction-on-ack rule (§8's State cache
  property).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package controller

import (
	"testing"
	"time"

	"github.com/salsifyvideo/core/encoder"
	"github.com/salsifyvideo/core/vp8"
)

func newTestController() *Controller {
	return New(encoder.NewState(16, 16))
}

func TestChoosePicksLargestThatFits(t *testing.T) {
	c := newTestController()
	improve := encoder.Result{Bytes: make([]byte, 900), State: encoder.NewState(16, 16)}
	failSmall := encoder.Result{Bytes: make([]byte, 400), State: encoder.NewState(16, 16)}

	d := c.Choose(improve, failSmall, 20, 60, 1000)
	if !d.Send || len(d.Result.Bytes) != 900 {
		t.Fatalf("expected the larger, fitting candidate (improve); got %+v", d)
	}
}

func TestChooseFallsBackWhenLargerDoesNotFit(t *testing.T) {
	c := newTestController()
	improve := encoder.Result{Bytes: make([]byte, 2000), State: encoder.NewState(16, 16)}
	failSmall := encoder.Result{Bytes: make([]byte, 400), State: encoder.NewState(16, 16)}

	d := c.Choose(improve, failSmall, 20, 60, 1000)
	if !d.Send || len(d.Result.Bytes) != 400 {
		t.Fatalf("expected fail-small fallback; got %+v", d)
	}
}

func TestChooseSkipsThenForcesAfterMaxSkipped(t *testing.T) {
	c := newTestController()
	tooBig := func() encoder.Result {
		return encoder.Result{Bytes: make([]byte, 5000), State: encoder.NewState(16, 16)}
	}

	for i := 0; i < maxSkipped; i++ {
		d := c.Choose(tooBig(), tooBig(), 20, 60, 100)
		if d.Send {
			t.Fatalf("iteration %d: expected a skip, got a send", i)
		}
	}
	// After maxSkipped consecutive skips, the next failure must force the
	// fail-small candidate through regardless of fit.
	d := c.Choose(tooBig(), tooBig(), 20, 60, 100)
	if !d.Send {
		t.Fatal("expected a forced send after MAX_SKIPPED consecutive skips")
	}
}

func TestImproveFailSmallClamping(t *testing.T) {
	c := newTestController()
	c.lastUsedQI = 5
	if got := c.ImproveQI(); got != minQI {
		t.Errorf("ImproveQI should clamp to %d, got %d", minQI, got)
	}
	c.lastUsedQI = 120
	if got := c.FailSmallQI(); got != maxQI {
		t.Errorf("FailSmallQI should clamp to %d, got %d", maxQI, got)
	}
}

func TestObserveAckEntersConservativeMode(t *testing.T) {
	c := newTestController()
	now := time.Now()
	unknown := vp8.Minihash(0xDEADBEEF)
	c.ObserveAck(now, unknown, nil)
	if !c.conservative.Active(now) {
		t.Error("an ack naming an uncached current_state must enter conservative mode")
	}
}

func TestEvictKeepsInitialAndWindow(t *testing.T) {
	c := newTestController()
	initial := c.InitialMinihash()

	older := vp8.Minihash(1)
	kept := vp8.Minihash(2)
	current := vp8.Minihash(3)
	c.Put(older, encoder.NewState(16, 16))
	c.Put(kept, encoder.NewState(16, 16))
	c.Put(current, encoder.NewState(16, 16))

	now := time.Now()
	// complete_states reports `kept` as the oldest still-referenceable
	// source; `older` predates it and must be evicted, `current` and the
	// permanent initial entry must survive regardless.
	c.ObserveAck(now, current, []vp8.Minihash{kept, current})

	if _, ok := c.Lookup(older); ok {
		t.Error("entry older than the oldest complete_states member should have been evicted")
	}
	if _, ok := c.Lookup(kept); !ok {
		t.Error("entry named in complete_states should survive")
	}
	if _, ok := c.Lookup(initial); !ok {
		t.Error("the permanent initial entry must never be evicted")
	}
}
