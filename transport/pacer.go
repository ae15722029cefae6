/*
NAME
  pacer.go

DESCRIPTION
  pacer.go implements the sender's FIFO pacer (§4.9): fragments queue up
  and become due at monotonically increasing times spaced by an
  inter-send delay clamped to [500µs, 2000µs]. The first fragment in an
  otherwise-empty queue is due immediately.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package transport

import "time"

const (
	minInterSend = 500 * time.Microsecond
	maxInterSend = 2000 * time.Microsecond
)

type pending struct {
	frag Fragment
	due  time.Time
}

// Pacer is a FIFO queue of fragments awaiting transmission, paced by an
// inter-send delay the caller updates from each ack's avg_delay_us.
// Not safe for concurrent use: owned exclusively by the sender's
// single-threaded event loop (§5).
type Pacer struct {
	queue     []pending
	interSend time.Duration
	lastDue   time.Time
}

// NewPacer returns a Pacer starting at the minimum inter-send delay.
func NewPacer() *Pacer {
	return &Pacer{interSend: minInterSend}
}

// SetAvgDelay updates the pacer's inter-send delay from a reported
// average inter-packet arrival, clamping to [500µs, 2000µs]. The
// receiver's own observed spacing is used directly: treating it as
// pacing guidance avoids inventing a proportionality constant the spec
// does not name.
func (p *Pacer) SetAvgDelay(avgDelayUs uint32) {
	d := time.Duration(avgDelayUs) * time.Microsecond
	switch {
	case d < minInterSend:
		d = minInterSend
	case d > maxInterSend:
		d = maxInterSend
	}
	p.interSend = d
}

// Push enqueues frag, due immediately if the pacer is empty, or
// interSend after the previously queued fragment's due time otherwise.
func (p *Pacer) Push(frag Fragment, now time.Time) {
	due := now
	if len(p.queue) > 0 {
		due = p.lastDue.Add(p.interSend)
	}
	p.queue = append(p.queue, pending{frag: frag, due: due})
	p.lastDue = due
}

// DrainDue removes and returns every fragment due at or before now, in
// FIFO order, modelling the "single sendmsg call drains all currently
// due packets" rule.
func (p *Pacer) DrainDue(now time.Time) []Fragment {
	i := 0
	for i < len(p.queue) && !p.queue[i].due.After(now) {
		i++
	}
	if i == 0 {
		return nil
	}
	out := make([]Fragment, i)
	for j := 0; j < i; j++ {
		out[j] = p.queue[j].frag
	}
	p.queue = p.queue[i:]
	return out
}

// Empty reports whether the pacer has no queued fragments.
func (p *Pacer) Empty() bool { return len(p.queue) == 0 }

// NextDue returns the due time of the front of the queue and whether the
// queue is nonempty, used to satisfy the "front().due_time ≤ now + 2000µs"
// testable property (§8.6).
func (p *Pacer) NextDue() (time.Time, bool) {
	if len(p.queue) == 0 {
		return time.Time{}, false
	}
	return p.queue[0].due, true
}
