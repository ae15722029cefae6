/*
NAME
  conservative.go

DESCRIPTION
  conservative.go implements the 5-second recovery window a sender enters
  whenever an ack reports a current_state the sender's own encoder-state
  cache has no entry for (§4.8, §4.10 Recovery). While active, every
  encode's source is pinned to a state the receiver has actually
  acknowledged, bounding how long a cache mismatch can persist.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package controller

import "time"

const conservativeWindow = 5 * time.Second

// ConservativeMode tracks whether the sender is currently restricting
// itself to acknowledged source states, as its own standalone, testable
// type rather than inlined into the controller's main branch.
type ConservativeMode struct {
	active bool
	until  time.Time
}

// Enter starts (or restarts) the 5-second window from now.
func (c *ConservativeMode) Enter(now time.Time) {
	c.active = true
	c.until = now.Add(conservativeWindow)
}

// Active reports whether the window is still open, lazily clearing it
// once now has passed the deadline.
func (c *ConservativeMode) Active(now time.Time) bool {
	if c.active && !now.Before(c.until) {
		c.active = false
	}
	return c.active
}
