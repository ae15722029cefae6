/*
NAME
  pool.go

DESCRIPTION
  pool.go implements Pool, a size-keyed free list of Rasters, handed out as
  Handles. Hot-path allocation of the 1-3MB raster buffers dominates frame
  pacing, so the pool amortizes it away; resizing across frames is
  forbidden unless explicitly enabled (§4.1).

  This follows the teacher's pool-allocated-handle-with-custom-deleter
  pattern (see DESIGN.md): a Handle returns its Raster to the pool on
  Release, or, if the pool has since been destroyed, lets the Raster be
  garbage collected outright -- the Go analogue of "freed when the
  back-pointer is null".

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package raster

import (
	"sync"

	"github.com/pkg/errors"
)

// dims is the size key a Pool is keyed on.
type dims struct{ w, h int }

// Pool is a mutex-guarded, size-keyed free list of Rasters. The zero value
// is not usable; construct with NewPool.
type Pool struct {
	mu    sync.Mutex
	free  map[dims][]*Raster
	size  dims
	sized bool

	// allowResize permits the pool to serve a different size than the one
	// it was first used with. In the steady state this is false and a
	// size mismatch is an error, matching §4.1's "resizing... is
	// forbidden in the steady state".
	allowResize bool

	destroyed bool
}

// NewPool constructs an empty Pool. If allowResize is false (the steady
// state default), the first Get call fixes the pool's raster size for its
// remaining lifetime; subsequent Gets at a different size fail.
func NewPool(allowResize bool) *Pool {
	return &Pool{free: make(map[dims][]*Raster), allowResize: allowResize}
}

// Handle owns exactly one Raster drawn from a Pool. Release returns it to
// the pool; a Handle must not be used after Release.
type Handle struct {
	pool *Pool
	r    *Raster
	d    dims
}

// Raster returns the Handle's owned Raster.
func (h *Handle) Raster() *Raster { return h.r }

// Release returns the Raster to its Pool's free list for the (w, h) it was
// drawn at. If the Pool has since been destroyed, the Raster is simply
// dropped (freed outright by the garbage collector).
func (h *Handle) Release() {
	if h == nil || h.r == nil {
		return
	}
	p := h.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		h.r = nil
		return
	}
	p.free[h.d] = append(p.free[h.d], h.r)
	h.r = nil
}

// Get acquires a Handle owning a Raster sized w x h, reusing a freed
// Raster of matching size when one is available.
func (p *Pool) Get(w, h int) (*Handle, error) {
	d := dims{w, h}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.sized {
		p.size = d
		p.sized = true
	} else if d != p.size && !p.allowResize {
		return nil, errors.Errorf("raster pool: resize to %dx%d forbidden (fixed at %dx%d); enable allowResize to permit it", w, h, p.size.w, p.size.h)
	}

	if bucket := p.free[d]; len(bucket) > 0 {
		r := bucket[len(bucket)-1]
		p.free[d] = bucket[:len(bucket)-1]
		return &Handle{pool: p, r: r, d: d}, nil
	}
	return &Handle{pool: p, r: New(w, h), d: d}, nil
}

// Destroy marks the pool destroyed: outstanding Handles' Release becomes a
// no-op drop rather than a return to the free list, and the free list
// itself is discarded.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyed = true
	p.free = nil
}

// Len reports the number of free rasters currently held for (w, h), for
// tests and diagnostics.
func (p *Pool) Len(w, h int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free[dims{w, h}])
}
