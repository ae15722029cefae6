/*
NAME
  iwht.go

DESCRIPTION
  iwht.go implements the inverse Walsh-Hadamard transform applied to the
  Y2 block: the sixteen DC coefficients of a macroblock's Y subblocks are
  replaced by this transform's output, with (x+3)>>3 rounding, before each
  Y subblock's IDCT runs (§4.4).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package transform

// IWHT4x4 applies the inverse Walsh-Hadamard transform to the Y2
// coefficients in, writing the sixteen resulting DC values (already
// rounded by (x+3)>>3) to out in raster order, ready to be substituted for
// each Y subblock's coeffs[0].
func IWHT4x4(in *Block, out *[16]int32) {
	var tmp [16]int32
	for i := 0; i < 4; i++ {
		a1 := in[i] + in[12+i]
		b1 := in[4+i] + in[8+i]
		c1 := in[4+i] - in[8+i]
		d1 := in[i] - in[12+i]

		tmp[i] = a1 + b1
		tmp[4+i] = c1 + d1
		tmp[8+i] = a1 - b1
		tmp[12+i] = d1 - c1
	}

	for i := 0; i < 4; i++ {
		row := tmp[i*4 : i*4+4]
		a1 := row[0] + row[3]
		b1 := row[1] + row[2]
		c1 := row[1] - row[2]
		d1 := row[0] - row[3]

		a2 := a1 + b1
		b2 := c1 + d1
		c2 := a1 - b1
		d2 := d1 - c1

		out[i*4+0] = (a2 + 3) >> 3
		out[i*4+1] = (b2 + 3) >> 3
		out[i*4+2] = (c2 + 3) >> 3
		out[i*4+3] = (d2 + 3) >> 3
	}
}
