/*
NAME
  forward.go

DESCRIPTION
  forward.go implements the encoder-side forward transforms paired with
  idct.go/iwht.go's inverse transforms: a separable integer 4x4 DCT over a
  pixel residual, and a forward Walsh-Hadamard transform over a
  macroblock's sixteen Y-subblock DC coefficients. These are a standard
  butterfly transform, not a literal algebraic inverse of IDCT4x4's fixed-
  point multipliers; bit-exact forward/inverse symmetry is not required; the
  encoder reconstructs its reference pictures with the same IDCT4x4/IWHT4x4
  a decoder runs, so any transform mismatch shows up only as quantization
  noise, never as a protocol error.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package transform

// FDCT4x4 computes a forward 4x4 transform of a pixel residual (source
// minus predictor), producing natural-order coefficients ready for
// quantization.
func FDCT4x4(residual [4][4]int32) Block {
	var tmp [16]int32
	for i := 0; i < 4; i++ {
		s0, s1, s2, s3 := residual[0][i], residual[1][i], residual[2][i], residual[3][i]
		t0 := s0 + s3
		t1 := s1 + s2
		t2 := s1 - s2
		t3 := s0 - s3
		tmp[0*4+i] = t0 + t1
		tmp[1*4+i] = 2*t3 + t2
		tmp[2*4+i] = t0 - t1
		tmp[3*4+i] = t3 - 2*t2
	}

	var out Block
	for i := 0; i < 4; i++ {
		row := tmp[i*4 : i*4+4]
		s0, s1, s2, s3 := row[0], row[1], row[2], row[3]
		t0 := s0 + s3
		t1 := s1 + s2
		t2 := s1 - s2
		t3 := s0 - s3
		out[i*4+0] = t0 + t1
		out[i*4+1] = 2*t3 + t2
		out[i*4+2] = t0 - t1
		out[i*4+3] = t3 - 2*t2
	}
	return out
}

// FWHT4x4 forward-transforms the sixteen Y-subblock DC coefficients in in
// (raster order) into the Y2 block's own natural-order coefficients, ready
// for quantization. The Hadamard butterfly is its own structural inverse
// (up to the scale IWHT4x4 divides back out), so this mirrors IWHT4x4's
// shape without its final rounding shift.
func FWHT4x4(in *[16]int32) Block {
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

	var out Block
	for i := 0; i < 4; i++ {
		row := tmp[i*4 : i*4+4]
		a1 := row[0] + row[3]
		b1 := row[1] + row[2]
		c1 := row[1] - row[2]
		d1 := row[0] - row[3]
		out[i*4+0] = a1 + b1
		out[i*4+1] = c1 + d1
		out[i*4+2] = a1 - b1
		out[i*4+3] = d1 - c1
	}
	return out
}
