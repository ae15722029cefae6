/*
NAME
  intra.go

DESCRIPTION
  intra.go implements VP8 intra prediction over a square block of size S
  in {4, 8, 16}: DC_PRED, V_PRED, H_PRED, TM_PRED, and, for 16x16 luma
  blocks, the sixteen independent 4x4 B_PRED subblock modes (§4.4).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package predict implements VP8 intra and inter prediction (§4.4).
package predict

import "github.com/salsifyvideo/core/raster"

// Mode is a macroblock-level (luma 16x16 or chroma 8x8) prediction mode.
type Mode int

const (
	DCPred Mode = iota
	VPred
	HPred
	TMPred
	BPred // 16x16 luma only: per-subblock 4x4 modes apply instead
)

// SubMode is one of the ten 4x4 luma subblock modes used under B_PRED.
type SubMode int

const (
	BDC SubMode = iota
	BTM
	BVE
	BHE
	BLD
	BRD
	BVR
	BVL
	BHD
	BHU
)

// Predict writes the whole-block prediction for mode into v (DC_PRED,
// V_PRED, H_PRED or TM_PRED; BPred is handled subblock-by-subblock via
// PredictSub and must not be passed here).
func Predict(v raster.View, mode Mode) {
	switch mode {
	case DCPred:
		predictDC(v)
	case VPred:
		predictV(v)
	case HPred:
		predictH(v)
	case TMPred:
		predictTM(v)
	default:
		panic("predict: BPred must use PredictSub per subblock")
	}
}

func predictDC(v raster.View) {
	var sum, n int32
	if v.HasAbove {
		for _, s := range v.AboveRow(0) {
			sum += int32(s)
		}
		n += int32(v.Size)
	}
	if v.HasLeft {
		for _, s := range v.LeftCol() {
			sum += int32(s)
		}
		n += int32(v.Size)
	}
	var dc raster.Sample
	if n == 0 {
		dc = 128
	} else {
		dc = raster.Sample((sum + n/2) / n)
	}
	for r := 0; r < v.Size; r++ {
		for c := 0; c < v.Size; c++ {
			v.Set(c, r, dc)
		}
	}
}

func predictV(v raster.View) {
	above := v.AboveRow(0)
	for r := 0; r < v.Size; r++ {
		for c := 0; c < v.Size; c++ {
			v.Set(c, r, above[c])
		}
	}
}

func predictH(v raster.View) {
	left := v.LeftCol()
	for r := 0; r < v.Size; r++ {
		for c := 0; c < v.Size; c++ {
			v.Set(c, r, left[r])
		}
	}
}

func predictTM(v raster.View) {
	above := v.AboveRow(0)
	left := v.LeftCol()
	corner := int32(v.AboveLeft())
	for r := 0; r < v.Size; r++ {
		for c := 0; c < v.Size; c++ {
			val := int32(above[c]) + int32(left[r]) - corner
			v.Set(c, r, raster.Clamp255(val))
		}
	}
}

// subblockContext is the eight-sample above row (extended to the right
// when the subblock sits on the macroblock's right edge) and four-sample
// left column a 4x4 B_PRED subblock predicts from.
type subblockContext struct {
	above [8]raster.Sample // above[0..3] directly above, above[4..7] above-right
	left  [4]raster.Sample
	tl    raster.Sample
}

func gatherSubblockContext(v raster.View) subblockContext {
	var ctx subblockContext
	above := v.AboveRow(4)
	copy(ctx.above[:], above)
	copy(ctx.left[:], v.LeftCol())
	ctx.tl = v.AboveLeft()
	return ctx
}

// PredictSub writes the 4x4 B_PRED prediction for sub using v's above/left
// context.
func PredictSub(v raster.View, sub SubMode) {
	ctx := gatherSubblockContext(v)
	a, l, tl := ctx.above, ctx.left, ctx.tl

	avg2 := func(x, y raster.Sample) raster.Sample { return raster.Sample((int32(x) + int32(y) + 1) >> 1) }
	avg3 := func(x, y, z raster.Sample) raster.Sample {
		return raster.Sample((int32(x) + 2*int32(y) + int32(z) + 2) >> 2)
	}

	var out [4][4]raster.Sample
	switch sub {
	case BDC:
		var sum int32
		for i := 0; i < 4; i++ {
			sum += int32(a[i]) + int32(l[i])
		}
		dc := raster.Sample((sum + 4) >> 3)
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				out[r][c] = dc
			}
		}
	case BTM:
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				out[r][c] = raster.Clamp255(int32(a[c]) + int32(l[r]) - int32(tl))
			}
		}
	case BVE:
		row := [4]raster.Sample{avg3(tl, a[0], a[1]), avg3(a[0], a[1], a[2]), avg3(a[1], a[2], a[3]), avg3(a[2], a[3], a[4])}
		for r := 0; r < 4; r++ {
			out[r] = row
		}
	case BHE:
		col := [4]raster.Sample{avg3(tl, l[0], l[1]), avg3(l[0], l[1], l[2]), avg3(l[1], l[2], l[3]), avg3(l[2], l[3], l[3])}
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				out[r][c] = col[r]
			}
		}
	case BLD:
		v8 := [8]raster.Sample{a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7]}
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				i := r + c
				if i == 6 {
					out[r][c] = avg3(v8[6], v8[7], v8[7])
				} else {
					out[r][c] = avg3(v8[i], v8[i+1], v8[i+2])
				}
			}
		}
	case BRD:
		v9 := [9]raster.Sample{l[3], l[2], l[1], l[0], tl, a[0], a[1], a[2], a[3]}
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				i := 3 - r + c
				out[r][c] = avg3(v9[i], v9[i+1], v9[i+2])
			}
		}
	case BVR:
		v9 := [9]raster.Sample{l[3], l[2], l[1], l[0], tl, a[0], a[1], a[2], a[3]}
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				i := 2*c - r + 4
				switch {
				case i < 0:
					out[r][c] = v9[0]
				case (i)%2 == 0:
					out[r][c] = avg2(v9[clampIdx(i/2, 9)], v9[clampIdx(i/2+1, 9)])
				default:
					out[r][c] = avg3(v9[clampIdx(i/2, 9)], v9[clampIdx(i/2+1, 9)], v9[clampIdx(i/2+2, 9)])
				}
			}
		}
	case BVL:
		v8 := [8]raster.Sample{a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7]}
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				i := c + r/2
				if r%2 == 0 {
					out[r][c] = avg2(v8[clampIdx(i, 8)], v8[clampIdx(i+1, 8)])
				} else {
					out[r][c] = avg3(v8[clampIdx(i, 8)], v8[clampIdx(i+1, 8)], v8[clampIdx(i+2, 8)])
				}
			}
		}
	case BHD:
		v9 := [9]raster.Sample{l[3], l[2], l[1], l[0], tl, a[0], a[1], a[2], a[3]}
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				i := 2*r - c + 4
				switch {
				case i < 0:
					out[r][c] = v9[0]
				case i%2 == 0:
					out[r][c] = avg2(v9[clampIdx(i/2, 9)], v9[clampIdx(i/2+1, 9)])
				default:
					out[r][c] = avg3(v9[clampIdx(i/2, 9)], v9[clampIdx(i/2+1, 9)], v9[clampIdx(i/2+2, 9)])
				}
			}
		}
	case BHU:
		v4 := [4]raster.Sample{l[0], l[1], l[2], l[3]}
		for r := 0; r < 4; r++ {
			for c := 0; c < 4; c++ {
				i := r + c/2
				switch {
				case i >= 3:
					out[r][c] = v4[3]
				case c%2 == 0:
					out[r][c] = avg2(v4[i], v4[clampIdx(i+1, 4)])
				default:
					out[r][c] = avg3(v4[i], v4[clampIdx(i+1, 4)], v4[clampIdx(i+2, 4)])
				}
			}
		}
	}

	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			v.Set(c, r, out[r][c])
		}
	}
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
