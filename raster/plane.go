/*
NAME
  plane.go

DESCRIPTION
  plane.go implements Plane, a 2D array of 8-bit samples with its stored
  dimensions rounded up to a multiple of 16 and a smaller displayable
  sub-rectangle, per §3.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package raster provides the fixed-size 2D sample planes (Y, U, V), the
// macroblock/subblock views over them, and the pool that hands out whole
// rasters without per-frame allocation.
package raster

// Sample is an unsigned 8-bit luma or chroma value.
type Sample = uint8

// clamp saturates x to [0,255].
func clamp(x int32) Sample {
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return Sample(x)
}

// Clamp255 is the exported saturating clamp used by predictors and
// inverse-transform code outside this package.
func Clamp255(x int32) Sample { return clamp(x) }

// mbAlign rounds n up to the next multiple of 16.
func mbAlign(n int) int { return (n + 15) &^ 15 }

// Plane is a 2D array of samples. Stride equals the stored (macroblock
// aligned) width; DisplayW/DisplayH describe the visible sub-rectangle.
type Plane struct {
	Data     []Sample
	Stride   int
	Height   int // stored (aligned) height
	DisplayW int
	DisplayH int
}

// NewPlane allocates a plane whose stored size is the 16-aligned bound of
// (displayW, displayH).
func NewPlane(displayW, displayH int) *Plane {
	w, h := mbAlign(displayW), mbAlign(displayH)
	return &Plane{
		Data:     make([]Sample, w*h),
		Stride:   w,
		Height:   h,
		DisplayW: displayW,
		DisplayH: displayH,
	}
}

// resetInto reuses p's backing array for the given display dimensions,
// provided the aligned size does not exceed cap(p.Data). Used by the pool
// to avoid reallocating on steady-state reuse.
func (p *Plane) resetInto(displayW, displayH int) bool {
	w, h := mbAlign(displayW), mbAlign(displayH)
	if w*h > cap(p.Data) {
		return false
	}
	p.Data = p.Data[:w*h]
	p.Stride = w
	p.Height = h
	p.DisplayW = displayW
	p.DisplayH = displayH
	return true
}

// At returns the sample at (col, row) in stored coordinates.
func (p *Plane) At(col, row int) Sample { return p.Data[row*p.Stride+col] }

// Set writes the sample at (col, row) in stored coordinates.
func (p *Plane) Set(col, row int, v Sample) { p.Data[row*p.Stride+col] = v }

// Row returns a slice view of one stored row, width samples starting at col.
func (p *Plane) Row(row, col, width int) []Sample {
	off := row*p.Stride + col
	return p.Data[off : off+width]
}

// Fill sets every stored sample (including the edge-extend margin) to v.
func (p *Plane) Fill(v Sample) {
	for i := range p.Data {
		p.Data[i] = v
	}
}

// CopyFrom overwrites p's stored samples with src's. The planes must have
// equal stored dimensions.
func (p *Plane) CopyFrom(src *Plane) {
	copy(p.Data, src.Data)
	p.DisplayW, p.DisplayH = src.DisplayW, src.DisplayH
}

// ExtendEdges implements the edge-extend semantics of §3: samples to the
// right of and below the display rectangle repeat the last displayed
// sample in that row/column, and the lower-right margin repeats the
// bottom-right display corner. Called whenever a plane is materialized
// from an external source (captured raster, decoded reconstruction).
func (p *Plane) ExtendEdges() {
	dw, dh := p.DisplayW, p.DisplayH
	if dw <= 0 || dh <= 0 {
		return
	}
	// Extend each displayed row to the right.
	for r := 0; r < dh; r++ {
		last := p.At(dw-1, r)
		for c := dw; c < p.Stride; c++ {
			p.Set(c, r, last)
		}
	}
	// Extend every stored column downward, including the already
	// right-extended margin, so the bottom-right quadrant repeats the
	// bottom-right display corner.
	for c := 0; c < p.Stride; c++ {
		last := p.At(c, dh-1)
		for r := dh; r < p.Height; r++ {
			p.Set(c, r, last)
		}
	}
}
