/*
NAME
  idct.go

DESCRIPTION
  idct.go implements the VP8 4x4 inverse DCT used on non-Y2 coefficient
  blocks: fixed integer multipliers MUL_20091 and MUL_35468 applied
  row-wise then column-wise, with (x+4)>>3 rounding and saturating clamp
  on add to the predictor (§4.4).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package transform implements the VP8 inverse DCT and inverse
// Walsh-Hadamard transforms (§4.4).
package transform

import "github.com/salsifyvideo/core/raster"

const (
	mul20091 = 20091
	mul35468 = 35468
)

// Block is 16 coefficients in natural (row-major) order; callers
// responsible for zigzag de-scanning pass this in already de-scanned.
type Block = [16]int32

// mulHi computes (v*m) >> 16, the fixed-point multiply the reference
// codec expresses as v + ((v*m)>>16).
func mulHi(v, m int32) int32 { return (v * m) >> 16 }

// IDCT4x4 applies the inverse DCT to coeffs and adds the saturating result
// to the 4x4 predictor block in dst (a View over a plane), per §4.4.
func IDCT4x4(coeffs *Block, dst raster.View) {
	var tmp [16]int32
	for i := 0; i < 4; i++ {
		a1 := coeffs[i] + coeffs[8+i]
		b1 := coeffs[i] - coeffs[8+i]

		t1 := mulHi(coeffs[4+i], mul35468) - (coeffs[12+i] + mulHi(coeffs[12+i], mul20091))
		t2 := (coeffs[4+i] + mulHi(coeffs[4+i], mul20091)) + mulHi(coeffs[12+i], mul35468)

		tmp[i] = a1 + t2
		tmp[4+i] = b1 + t1
		tmp[8+i] = b1 - t1
		tmp[12+i] = a1 - t2
	}

	for i := 0; i < 4; i++ {
		row := tmp[i*4 : i*4+4]
		a1 := row[0] + row[2]
		b1 := row[0] - row[2]

		t1 := mulHi(row[1], mul35468) - (row[3] + mulHi(row[3], mul20091))
		t2 := (row[1] + mulHi(row[1], mul20091)) + mulHi(row[3], mul35468)

		out := [4]int32{a1 + t2, b1 + t1, b1 - t1, a1 - t2}
		for c := 0; c < 4; c++ {
			residual := (out[c] + 4) >> 3
			pred := int32(dst.At(c, i))
			dst.Set(c, i, raster.Clamp255(pred+residual))
		}
	}
}

// IDCTDCOnly is a fast path for a block whose only nonzero coefficient is
// the DC term (coeffs[0]): the residual is constant across the block.
func IDCTDCOnly(dc int32, dst raster.View) {
	residual := (dc + 4) >> 3
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			pred := int32(dst.At(c, r))
			dst.Set(c, r, raster.Clamp255(pred+residual))
		}
	}
}
