/*
NAME
  inter.go

DESCRIPTION
  inter.go implements inter prediction: for a block with motion vector
  (mv_x, mv_y), the predictor is produced by convolving the reference
  plane with a 6-tap bicubic filter horizontally then vertically, or a
  2-tap bilinear filter per the frame header's choice (§4.4).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package predict

import "github.com/salsifyvideo/core/raster"

// SubpelFilter selects the interpolation kernel used for fractional-pel
// motion compensation.
type SubpelFilter int

const (
	FilterBicubic SubpelFilter = iota
	FilterBilinear
)

// sixTapBicubic holds the 8 fractional-phase 6-tap filter kernels (1/8-pel
// phases 0..7; phase 0 is the identity/no-op kernel).
var sixTapBicubic = [8][6]int32{
	{0, 0, 128, 0, 0, 0},
	{0, -6, 123, 12, -1, 0},
	{2, -11, 108, 36, -8, 1},
	{0, -9, 93, 50, -6, 0},
	{3, -16, 77, 77, -16, 3},
	{0, -6, 50, 93, -9, 0},
	{1, -8, 36, 108, -11, 2},
	{0, -1, 12, 123, -6, 0},
}

var twoTapBilinear = [8][2]int32{
	{128, 0}, {112, 16}, {96, 32}, {80, 48},
	{64, 64}, {48, 80}, {32, 96}, {16, 112},
}

// samp reads the reference plane with edge clamping, so candidate motion
// vectors whose filter footprint brushes the stored-but-unextended margin
// never read out of bounds.
func samp(p *raster.Plane, col, row int) int32 {
	if col < 0 {
		col = 0
	} else if col >= p.Stride {
		col = p.Stride - 1
	}
	if row < 0 {
		row = 0
	} else if row >= p.Height {
		row = p.Height - 1
	}
	return int32(p.At(col, row))
}

// Inter predicts a block of size S into dst from ref, using motion vector
// mv (in 1/8-pel units for the plane given -- callers convert quarter-pel
// luma vectors to eighth-pel before calling for chroma, and scale
// quarter-pel to eighth-pel trivially by *2 for luma) and filter.
func Inter(dst raster.View, ref *raster.Plane, originCol, originRow int, mv MV, filter SubpelFilter) {
	fullCol := originCol + int(mv.X)/8
	fullRow := originRow + int(mv.Y)/8
	fracCol := int(mv.X) & 7
	fracRow := int(mv.Y) & 7

	size := dst.Size
	// Horizontal pass into a temporary buffer extended by 5 rows (2
	// above, 3 below) to feed the vertical pass, matching the 6-tap
	// footprint; bilinear only needs 1 extra row but reuses the same
	// buffer shape for simplicity.
	tmpRows := size + 5
	tmp := make([][]int32, tmpRows)
	for i := range tmp {
		tmp[i] = make([]int32, size)
		row := fullRow - 2 + i
		for c := 0; c < size; c++ {
			tmp[i][c] = filterHoriz(ref, fullCol+c, row, fracCol, filter)
		}
	}

	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			v := filterVertCol(tmp, c, r+2, fracRow, filter)
			dst.Set(c, r, raster.Clamp255(v))
		}
	}
}

func filterHoriz(ref *raster.Plane, col, row, frac int, filter SubpelFilter) int32 {
	if frac == 0 {
		return samp(ref, col, row)
	}
	if filter == FilterBilinear {
		k := twoTapBilinear[frac]
		v := k[0]*samp(ref, col, row) + k[1]*samp(ref, col+1, row)
		return (v + 64) >> 7
	}
	k := sixTapBicubic[frac]
	var v int32
	for t := 0; t < 6; t++ {
		v += k[t] * samp(ref, col-2+t, row)
	}
	return (v + 64) >> 7
}

// filterVertCol applies the vertical tap to a column of an
// already-horizontally-filtered temporary buffer; tmp rows are offset by
// 2 (tmp[r] holds fullRow-2+r).
func filterVertCol(tmp [][]int32, col, centerRow, frac int, filter SubpelFilter) int32 {
	if frac == 0 {
		return tmp[centerRow][col]
	}
	if filter == FilterBilinear {
		k := twoTapBilinear[frac]
		v := k[0]*tmp[centerRow][col] + k[1]*tmp[centerRow+1][col]
		return (v + 64) >> 7
	}
	k := sixTapBicubic[frac]
	var v int32
	for t := 0; t < 6; t++ {
		v += k[t] * tmp[centerRow-2+t][col]
	}
	return (v + 64) >> 7
}
