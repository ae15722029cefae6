/*
NAME
  display.go

DESCRIPTION
  display.go implements the receiver's display component: an out-of-
  scope external collaborator per §1, given only the named interface
  the decoder loop needs (Push), plus the one concrete implementation a
  runnable salsify-receiver needs to show something. Grounded on
  filter/debug.go's gocv.Window usage, generalized from a fixed pair of
  debug windows to a single queued video window, and on §5's "display
  is a separate thread that consumes rasters from a bounded queue
  guarded by a mutex + condition variable and drops no frames (the
  producer never blocks; it pushes and notifies)".

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package display shows decoded rasters on screen, off the decode
// loop's critical path.
package display

import (
	"sync"

	"github.com/salsifyvideo/core/raster"
)

// Display is the decoder loop's view of the display component: push a
// newly decoded raster at it and move on.
type Display interface {
	// Push hands r to the display thread. It never blocks the caller.
	Push(r *raster.Raster)

	// Close stops the display thread and releases any window resources.
	Close() error
}

// queueCap is a sanity bound on the backlog a slow consumer can build
// up; Push logs and keeps appending past it rather than dropping, per
// §5's "drops no frames".
const queueCap = 64

// Queue is the bounded producer/consumer queue §5 describes: Push
// appends and signals under a mutex, and a single consumer goroutine
// blocks on the condition variable until something is waiting.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []*raster.Raster
	closed  bool
	onFrame func(*raster.Raster)
	onWarn  func(backlog int)
}

// NewQueue returns a Queue whose consumer goroutine calls onFrame for
// each pushed raster, in order, on its own goroutine. onWarn, if
// non-nil, is called with the current backlog length whenever Push
// finds the queue already at or past queueCap.
func NewQueue(onFrame func(*raster.Raster), onWarn func(backlog int)) *Queue {
	q := &Queue{onFrame: onFrame, onWarn: onWarn}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Push appends r and wakes the consumer. It never blocks on the
// consumer's pace.
func (q *Queue) Push(r *raster.Raster) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, r)
	backlog := len(q.items)
	q.mu.Unlock()
	if backlog >= queueCap && q.onWarn != nil {
		q.onWarn(backlog)
	}
	q.cond.Signal()
}

// Close stops the consumer goroutine once it drains whatever is
// already queued.
func (q *Queue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Signal()
	return nil
}

func (q *Queue) run() {
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		r := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		q.onFrame(r)
	}
}

// Null discards every pushed raster; used when no display server is
// available (§6's DISPLAY environment note).
type Null struct{}

func (Null) Push(*raster.Raster) {}
func (Null) Close() error        { return nil }
