/*
NAME
  macroblock.go

DESCRIPTION
  macroblock.go implements macroblock and subblock views over a Raster's
  planes, and the neighbor-context fallback rule used by intra prediction
  (§4.1): an absent above row defaults to all-127, an absent left column
  to all-129, and an absent above-left sample to 129 if above exists else
  127 (or 128 if neither exists).

  Per the teacher's "cyclic neighbor reference" design note, the
  above/left/above-left relation is a pure function of (column, row),
  recomputed on demand rather than stored as pointers -- there is nothing
  here to const_cast or re-point.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package raster

const (
	aboveFallback     Sample = 127
	leftFallback      Sample = 129
	cornerBothMissing Sample = 128
)

// View is a window over a square block of size S (one of 16, 8, 4, 2)
// within a Plane, addressed by its top-left stored coordinate.
type View struct {
	Plane      *Plane
	Col, Row   int // top-left, stored coordinates
	Size       int
	HasAbove   bool
	HasLeft    bool
	HasAboveLT bool // above-left corner sample available
}

// At reads the sample at (c, r) relative to the view's top-left corner.
func (v View) At(c, r int) Sample { return v.Plane.At(v.Col+c, v.Row+r) }

// Set writes the sample at (c, r) relative to the view's top-left corner.
func (v View) Set(c, r int, s Sample) { v.Plane.Set(v.Col+c, v.Row+r, s) }

// AboveRow returns S samples from the row directly above the view, or the
// all-127 fallback if no macroblock/subblock lies above. extra additional
// samples to the right are included when requested (B_PRED's right-edge
// extension of the above row); they fall back to repeating the last
// available above sample when unavailable.
func (v View) AboveRow(extra int) []Sample {
	n := v.Size + extra
	out := make([]Sample, n)
	if !v.HasAbove {
		for i := range out {
			out[i] = aboveFallback
		}
		return out
	}
	for i := 0; i < n; i++ {
		c := v.Col + i
		if c >= v.Plane.Stride {
			c = v.Plane.Stride - 1
		}
		out[i] = v.Plane.At(c, v.Row-1)
	}
	return out
}

// LeftCol returns S samples from the column directly to the left of the
// view, or the all-129 fallback if no neighbor lies to the left.
func (v View) LeftCol() []Sample {
	out := make([]Sample, v.Size)
	if !v.HasLeft {
		for i := range out {
			out[i] = leftFallback
		}
		return out
	}
	for i := 0; i < v.Size; i++ {
		out[i] = v.Plane.At(v.Col-1, v.Row+i)
	}
	return out
}

// AboveLeft returns the above-left corner sample per the fallback rule:
// 129 if only above exists, 127 if only left exists (matching the
// left/above defaults respectively), 128 if neither exists (DC=128), and
// the true corner sample when both neighbors exist.
func (v View) AboveLeft() Sample {
	switch {
	case v.HasAbove && v.HasLeft:
		return v.Plane.At(v.Col-1, v.Row-1)
	case v.HasAbove:
		return leftFallback
	case v.HasLeft:
		return aboveFallback
	default:
		return cornerBothMissing
	}
}

// Macroblock is a 16x16 luma region plus its co-located 8x8 U and 8x8 V
// regions, decomposable into sixteen 4x4 Y subblocks and four 2x2-scaled
// (8x8 plane-space) U and V subblocks.
type Macroblock struct {
	Col, Row int // macroblock-grid coordinates, not pixel coordinates
	Y        View
	U        View
	V        View
}

// MacroblockAt builds the Macroblock view at grid position (col, row) of a
// raster whose dimensions are mbCols x mbRows macroblocks.
func MacroblockAt(r *Raster, col, row, mbCols, mbRows int) Macroblock {
	hasAbove := row > 0
	hasLeft := col > 0
	return Macroblock{
		Col: col, Row: row,
		Y: View{Plane: r.Y, Col: col * 16, Row: row * 16, Size: 16, HasAbove: hasAbove, HasLeft: hasLeft, HasAboveLT: hasAbove || hasLeft},
		U: View{Plane: r.U, Col: col * 8, Row: row * 8, Size: 8, HasAbove: hasAbove, HasLeft: hasLeft, HasAboveLT: hasAbove || hasLeft},
		V: View{Plane: r.V, Col: col * 8, Row: row * 8, Size: 8, HasAbove: hasAbove, HasLeft: hasLeft, HasAboveLT: hasAbove || hasLeft},
	}
}

// YSubblock returns the i-th (0..15, raster order) 4x4 luma subblock view
// of the macroblock. Subblocks on the macroblock's top/left edge inherit
// HasAbove/HasLeft from neighboring macroblocks; interior subblocks always
// have both.
func (m Macroblock) YSubblock(i int) View {
	sc, sr := i%4, i/4
	return View{
		Plane:    m.Y.Plane,
		Col:      m.Y.Col + sc*4,
		Row:      m.Y.Row + sr*4,
		Size:     4,
		HasAbove: sr > 0 || m.Y.HasAbove,
		HasLeft:  sc > 0 || m.Y.HasLeft,
	}
}

// ChromaSubblock returns the i-th (0..3, raster order) 2x2-grid (8x8
// plane-area covered in 4x4 steps per component) chroma subblock view of
// the given chroma view (U or V).
func ChromaSubblock(c View, i int) View {
	sc, sr := i%2, i/2
	return View{
		Plane:    c.Plane,
		Col:      c.Col + sc*4,
		Row:      c.Row + sr*4,
		Size:     4,
		HasAbove: sr > 0 || c.HasAbove,
		HasLeft:  sc > 0 || c.HasLeft,
	}
}
