/*
NAME
  loopfilter.go

DESCRIPTION
  loopfilter.go implements the VP8 in-place deblocking filter applied to
  the reconstructed raster after all macroblocks are reconstructed (§4.4):
  per-macroblock interior_limit, macroblock_edge_limit,
  subblock_edge_limit and high-edge-variance thresholds, the normal/simple
  mask+hev+filter/mbfilter kernels, and the left/interior-vertical/top/
  interior-horizontal edge order, skipping subblock edges for macroblocks
  that are not B_PRED/SPLITMV and have no nonzero coefficients.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package loopfilter implements the VP8 deblocking filter (§4.4).
package loopfilter

import (
	"github.com/salsifyvideo/core/header"
	"github.com/salsifyvideo/core/raster"
)

// MBInfo carries the per-macroblock inputs the loop filter needs: its
// derived filter level (segment- and mode/ref-adjusted), whether it is
// B_PRED or SPLITMV (subblock edges always apply), and whether it has any
// nonzero coefficient (subblock edges apply even without B_PRED/SPLITMV).
type MBInfo struct {
	FilterLevel   int
	HasSubblockModes bool // B_PRED or SPLITMV
	HasNonzero    bool
}

// Params are the frame-level filter parameters from the header.
type Params struct {
	Mode      header.FilterMode
	Sharpness int
	KeyFrame  bool
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// interiorLimit computes interior_limit = max(1, adjust(filter_level,
// sharpness)).
func interiorLimit(level, sharpness int) int {
	limit := level
	if sharpness > 0 {
		limit >>= (sharpness>>2 + 1)
		if sharpness > 4 {
			limit >>= 1
		}
		maxLimit := 9 - sharpness
		if limit > maxLimit {
			limit = maxLimit
		}
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// thresholds bundles the derived per-macroblock limits.
type thresholds struct {
	interior    int
	mbEdge      int
	subEdge     int
	hev         int
}

func deriveThresholds(level, sharpness int, keyFrame bool) thresholds {
	il := interiorLimit(level, sharpness)
	hev := 0
	switch {
	case keyFrame:
		if level >= 40 {
			hev = 2
		} else if level >= 15 {
			hev = 1
		}
	default:
		if level >= 40 {
			hev = 3
		} else if level >= 20 {
			hev = 2
		} else if level >= 15 {
			hev = 1
		}
	}
	return thresholds{
		interior: il,
		mbEdge:   2*(level+2) + il,
		subEdge:  2*level + il,
		hev:      hev,
	}
}

// Filter runs the loop filter over the whole raster. mbCols/mbRows give
// the macroblock grid size; info(col,row) returns that macroblock's
// MBInfo.
func Filter(r *raster.Raster, p Params, mbCols, mbRows int, info func(col, row int) MBInfo) {
	if p.Mode == header.FilterNone {
		return
	}
	for row := 0; row < mbRows; row++ {
		for col := 0; col < mbCols; col++ {
			mb := info(col, row)
			if mb.FilterLevel == 0 {
				continue
			}
			th := deriveThresholds(mb.FilterLevel, p.Sharpness, p.KeyFrame)
			filterMacroblock(r, col, row, mb, th, p.Mode == header.FilterSimple)
		}
	}
}

func filterMacroblock(r *raster.Raster, col, row int, mb MBInfo, th thresholds, simple bool) {
	doSub := mb.HasSubblockModes || mb.HasNonzero

	if col > 0 {
		edgeVertical(r.Y, col*16, row*16, 16, th.mbEdge, th.interior, th.hev, true, simple)
		if !simple {
			edgeVertical(r.U, col*8, row*8, 8, th.mbEdge, th.interior, th.hev, true, false)
			edgeVertical(r.V, col*8, row*8, 8, th.mbEdge, th.interior, th.hev, true, false)
		}
	}
	if doSub {
		for x := 4; x < 16; x += 4 {
			edgeVertical(r.Y, col*16+x, row*16, 16, th.subEdge, th.interior, th.hev, false, simple)
		}
		if !simple {
			edgeVertical(r.U, col*8+4, row*8, 8, th.subEdge, th.interior, th.hev, false, false)
			edgeVertical(r.V, col*8+4, row*8, 8, th.subEdge, th.interior, th.hev, false, false)
		}
	}

	if row > 0 {
		edgeHorizontal(r.Y, col*16, row*16, 16, th.mbEdge, th.interior, th.hev, true, simple)
		if !simple {
			edgeHorizontal(r.U, col*8, row*8, 8, th.mbEdge, th.interior, th.hev, true, false)
			edgeHorizontal(r.V, col*8, row*8, 8, th.mbEdge, th.interior, th.hev, true, false)
		}
	}
	if doSub {
		for y := 4; y < 16; y += 4 {
			edgeHorizontal(r.Y, col*16, row*16+y, 16, th.subEdge, th.interior, th.hev, false, simple)
		}
		if !simple {
			edgeHorizontal(r.U, col*8, row*8+4, 8, th.subEdge, th.interior, th.hev, false, false)
			edgeHorizontal(r.V, col*8, row*8+4, 8, th.subEdge, th.interior, th.hev, false, false)
		}
	}
}

// edgeVertical filters the vertical edge at column x running down `length`
// rows starting at y, in plane p.
func edgeVertical(p *raster.Plane, x, y, length, edgeLimit, interior, hevT int, mbEdge, simple bool) {
	for r := 0; r < length; r++ {
		filterRow(p, x, y+r, 1, 0, edgeLimit, interior, hevT, mbEdge, simple)
	}
}

// edgeHorizontal filters the horizontal edge at row y running across
// `length` columns starting at x, in plane p.
func edgeHorizontal(p *raster.Plane, x, y, length, edgeLimit, interior, hevT int, mbEdge, simple bool) {
	for c := 0; c < length; c++ {
		filterRow(p, x+c, y, 0, 1, edgeLimit, interior, hevT, mbEdge, simple)
	}
}

// filterRow applies the 1D mask+hev+filter kernel across the edge at
// (x,y) stepping by (dx,dy) to sample the eight pixels P3..P0 Q0..Q3 on
// either side.
func filterRow(p *raster.Plane, x, y, dx, dy, edgeLimit, interior, hevT int, mbEdge, simple bool) {
	at := func(i int) int { return int(p.At(x+i*dx, y+i*dy)) }
	set := func(i, v int) { p.Set(x+i*dx, y+i*dy, raster.Sample(clampByte(v))) }

	p3, p2, p1, p0 := at(-4), at(-3), at(-2), at(-1)
	q0, q1, q2, q3 := at(0), at(1), at(2), at(3)

	if !filterMask(p3, p2, p1, p0, q0, q1, q2, q3, edgeLimit, interior) {
		return
	}
	hev := highEdgeVariance(p1, p0, q0, q1, hevT)

	if simple {
		commonAdjust(true, p, x, y, dx, dy)
		return
	}

	if !mbEdge {
		commonAdjust(hev, p, x, y, dx, dy)
		return
	}

	if hev {
		commonAdjust(true, p, x, y, dx, dy)
		return
	}
	mbFilterStrong(p2, p1, p0, q0, q1, q2, set)
}

func filterMask(p3, p2, p1, p0, q0, q1, q2, q3, edgeLimit, interior int) bool {
	abs := func(a int) int {
		if a < 0 {
			return -a
		}
		return a
	}
	if abs(p0-q0)*2+abs(p1-q1)/2 > edgeLimit {
		return false
	}
	if abs(p3-p2) > interior || abs(p2-p1) > interior || abs(p1-p0) > interior {
		return false
	}
	if abs(q3-q2) > interior || abs(q2-q1) > interior || abs(q1-q0) > interior {
		return false
	}
	return true
}

func highEdgeVariance(p1, p0, q0, q1, thresh int) bool {
	abs := func(a int) int {
		if a < 0 {
			return -a
		}
		return a
	}
	return abs(p1-p0) > thresh || abs(q1-q0) > thresh
}

func clampS8(v int) int {
	if v < -128 {
		return -128
	}
	if v > 127 {
		return 127
	}
	return v
}

func commonAdjust(useOuterTaps bool, p *raster.Plane, x, y, dx, dy int) {
	at := func(i int) int { return int(p.At(x+i*dx, y+i*dy)) - 128 }
	set := func(i, v int) { p.Set(x+i*dx, y+i*dy, raster.Sample(clampByte(v+128))) }

	p1, p0, q0, q1 := at(-2), at(-1), at(0), at(1)

	var a int
	if useOuterTaps {
		a = clampS8(p1 - q1)
	}
	a = clampS8(a + 3*(q0-p0))
	f1 := clampS8(a+4) >> 3
	f2 := clampS8(a+3) >> 3

	set(0, q0-f1)
	set(-1, p0+f2)

	if !useOuterTaps {
		a = (f1 + 1) >> 1
		set(1, q1-a)
		set(-2, p1+a)
	}
}

func mbFilterStrong(p2, p1, p0, q0, q1, q2 int, set func(i, v int)) {
	a := p2 + p1 + p0
	nq0 := (a + 2*p0 + 2*q0 + q1 + 4) >> 3
	nq1 := (p1 + p0 + q0 + q1 + q1 + q2 + q2 + q2 + 4) >> 3
	nq2 := (p0 + q0 + q1 + q2 + q2 + q2 + q2 + q2 + 4) >> 3

	b := q2 + q1 + q0
	np0 := (b + 2*q0 + 2*p0 + p1 + 4) >> 3
	np1 := (q1 + q0 + p0 + p1 + p1 + p2 + p2 + p2 + 4) >> 3
	np2 := (q0 + p0 + p1 + p2 + p2 + p2 + p2 + p2 + 4) >> 3

	set(-1, clampByte(np0))
	set(-2, clampByte(np1))
	set(-3, clampByte(np2))
	set(0, clampByte(nq0))
	set(1, clampByte(nq1))
	set(2, clampByte(nq2))
}
