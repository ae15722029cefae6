/*
NAME
  controller.go

DESCRIPTION
  controller.go implements the Salsify controller (§4.8): the per-frame
  decision of which of up to two speculative encodes to transmit against
  an observed capacity estimate, the sender-side encoder-state cache
  (sliding-window eviction driven by acks), and conservative-mode source
  pinning after a cache mismatch.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package controller implements the Salsify controller's speculative
// dual-encode pick logic and encoder-state cache (§4.8).
package controller

import (
	"time"

	"github.com/salsifyvideo/core/encoder"
	"github.com/salsifyvideo/core/vp8"
)

const maxSkipped = 3

const (
	minQI = 3
	maxQI = 127
)

// Controller holds one sender connection's encoder-state cache and
// scheduling state. It is not safe for concurrent use: per §5 it is
// owned exclusively by the single-threaded event-loop task that also
// dispatches the speculative encode jobs.
type Controller struct {
	cache   map[vp8.Minihash]encoder.State
	order   []vp8.Minihash // insertion order, oldest first; approximates age for eviction
	initial vp8.Minihash

	lastUsedQI int
	skipped    int
	lastSent   vp8.Minihash

	conservative ConservativeMode
}

// New returns a Controller seeded with the all-keyframe-default initial
// state, whose cache entry is never evicted.
func New(initial encoder.State) *Controller {
	mh := vp8.ComputeMinihash(initial.Refs, initial.Probs)
	return &Controller{
		cache:      map[vp8.Minihash]encoder.State{mh: initial},
		order:      []vp8.Minihash{mh},
		initial:    mh,
		lastUsedQI: 63,
		lastSent:   mh,
	}
}

// LastSent returns the minihash of the most recently transmitted
// encoder state, the default source for the next frame's encode outside
// conservative mode.
func (c *Controller) LastSent() vp8.Minihash { return c.lastSent }

// InitialMinihash returns the permanent cache entry's key.
func (c *Controller) InitialMinihash() vp8.Minihash { return c.initial }

// Lookup returns the cached encoder state for mh, if any.
func (c *Controller) Lookup(mh vp8.Minihash) (encoder.State, bool) {
	st, ok := c.cache[mh]
	return st, ok
}

// Put adds or refreshes a cache entry, tracking its insertion order for
// the sliding-window eviction rule.
func (c *Controller) Put(mh vp8.Minihash, st encoder.State) {
	if _, ok := c.cache[mh]; !ok {
		c.order = append(c.order, mh)
	}
	c.cache[mh] = st
}

// SourceState picks the state a new speculative encode should start
// from: the source cache entry normally, or, while conservative mode is
// active, the newest state in the receiver's acknowledged complete_states
// list that is still cached (falling back to the initial state when that
// list is empty or none of its entries is cached).
func (c *Controller) SourceState(now time.Time, preferred vp8.Minihash, ackedComplete []vp8.Minihash) encoder.State {
	if c.conservative.Active(now) {
		return c.FreshestComplete(ackedComplete)
	}
	if st, ok := c.cache[preferred]; ok {
		return st
	}
	return c.cache[c.initial]
}

// FreshestComplete returns the cached state for the newest entry in
// ackedComplete (assumed oldest-first per the wire format) that is
// still in the cache, falling back to the permanent initial state.
// This is Mode S2's unconditional source selection (§4.8): unlike
// SourceState it does not require conservative mode to be active.
func (c *Controller) FreshestComplete(ackedComplete []vp8.Minihash) encoder.State {
	for i := len(ackedComplete) - 1; i >= 0; i-- {
		if st, ok := c.cache[ackedComplete[i]]; ok {
			return st
		}
	}
	return c.cache[c.initial]
}

// ObserveAck updates conservative mode and evicts stale cache entries per
// an ack's reported current_state and complete_states (§4.8, §4.10).
// complete_states must be ordered oldest-first, per the wire format.
func (c *Controller) ObserveAck(now time.Time, currentState vp8.Minihash, completeStates []vp8.Minihash) {
	if _, ok := c.cache[currentState]; !ok {
		c.conservative.Enter(now)
	}
	c.evict(currentState, completeStates)
}

func (c *Controller) evict(current vp8.Minihash, completeStates []vp8.Minihash) {
	if len(completeStates) == 0 {
		return
	}
	oldestPos := c.position(completeStates[0])
	if oldestPos < 0 {
		return
	}
	keep := make(map[vp8.Minihash]bool, len(completeStates)+2)
	keep[current] = true
	keep[c.initial] = true
	for _, mh := range completeStates {
		keep[mh] = true
	}
	kept := c.order[:0:0]
	for i, mh := range c.order {
		if keep[mh] || i >= oldestPos {
			kept = append(kept, mh)
			continue
		}
		delete(c.cache, mh)
	}
	c.order = kept
}

func (c *Controller) position(mh vp8.Minihash) int {
	for i, v := range c.order {
		if v == mh {
			return i
		}
	}
	return -1
}

// ImproveQI and FailSmallQI derive the two speculative jobs' quantizers
// from the last quantizer actually transmitted, per §4.8.
func (c *Controller) ImproveQI() int   { return clampQI(c.lastUsedQI - 17) }
func (c *Controller) FailSmallQI() int { return clampQI(c.lastUsedQI + 23) }

func clampQI(qi int) int {
	if qi < minQI {
		return minQI
	}
	if qi > maxQI {
		return maxQI
	}
	return qi
}

// Decision is the controller's per-frame outcome: whether to send at
// all, and, if so, which candidate and at what quantizer.
type Decision struct {
	Send    bool
	Result  encoder.Result
	QI      int
}

// Choose compares the improve and fail-small speculative encodes against
// capacityBytes and returns which one (if either) to transmit, per
// §4.8's "largest that fits" rule and the MAX_SKIPPED forced-send
// escape hatch.
func (c *Controller) Choose(improve, failSmall encoder.Result, improveQI, failSmallQI, capacityBytes int) Decision {
	improveFits := len(improve.Bytes) <= capacityBytes
	failFits := len(failSmall.Bytes) <= capacityBytes

	switch {
	case improveFits && failFits:
		if len(improve.Bytes) >= len(failSmall.Bytes) {
			return c.send(improve, improveQI)
		}
		return c.send(failSmall, failSmallQI)
	case improveFits:
		return c.send(improve, improveQI)
	case failFits:
		return c.send(failSmall, failSmallQI)
	default:
		if c.skipped >= maxSkipped {
			return c.send(failSmall, failSmallQI)
		}
		c.skipped++
		return Decision{Send: false}
	}
}

func (c *Controller) send(r encoder.Result, qi int) Decision {
	c.skipped = 0
	c.lastUsedQI = qi
	mh := r.Minihash
	c.Put(mh, r.State)
	c.lastSent = mh
	return Decision{Send: true, Result: r, QI: qi}
}
