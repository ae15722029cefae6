/*
NAME
  modesearch.go

DESCRIPTION
  modesearch.go implements per-macroblock mode decision: intra DC/V/H/TM
  by SAD against the source, and, on inter frames, a small diamond search
  around the census NEAREST/NEAR candidates plus a ZERO candidate,
  against LAST only. The winning mode's residual is computed (forward
  transform, quantize, immediately reconstruct into picture so the
  encoder's own state tracks exactly what a decoder would produce) and
  returned for entropy coding.

  B_PRED and SPLITMV are not attempted by this search: every macroblock
  uses a single whole-block mode. The decoder fully supports both (it has
  to, to decode streams from other encoders); this encoder simply never
  emits them, trading compression efficiency for a search loop simple
  enough to read in one sitting.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package encoder

import (
	"github.com/salsifyvideo/core/entropy"
	"github.com/salsifyvideo/core/header"
	"github.com/salsifyvideo/core/predict"
	"github.com/salsifyvideo/core/raster"
	"github.com/salsifyvideo/core/transform"
	"github.com/salsifyvideo/core/vp8"
)

// zigzag must match vp8's internal coefficient scan order: EncodeCoeffBlock
// walks coefficients in zigzag order to find the last nonzero one, and
// that array is not exported, so the encoder keeps its own copy to build
// CoeffBlock.LastNonzero correctly.
var zigzag = [16]int{0, 1, 4, 8, 5, 2, 3, 6, 9, 12, 13, 10, 7, 11, 14, 15}

// residual holds the quantized coefficient blocks a macroblock's mode
// decision produces, ready for entropy coding via vp8.EncodeCoeffBlock.
type residual struct {
	y     [16]vp8.CoeffBlock
	u, v  [4]vp8.CoeffBlock
	y2    vp8.CoeffBlock
	hasY2 bool
}

// decideMacroblock picks a macroblock's prediction mode, writes the
// winning prediction and reconstructed samples into picture, and returns
// the resolved header plus its quantized residual.
func decideMacroblock(source *raster.Raster, refs *vp8.ReferenceSet, picture *raster.Raster, mbCols, mbRows, col, row int, keyFrame bool, above, left, aboveLeft predict.Neighbor, deq header.Dequantizers) (vp8.MBHeader, residual) {
	mbv := raster.MacroblockAt(picture, col, row, mbCols, mbRows)
	srcMB := raster.MacroblockAt(source, col, row, mbCols, mbRows)

	var mb vp8.MBHeader

	if keyFrame {
		mb.Ref = vp8.RefIntra
		mb.YMode = bestIntraMode(mbv.Y, srcMB.Y)
		mb.UVMode = bestIntraMode(mbv.U, srcMB.U)
		predict.Predict(mbv.V, mb.UVMode)
	} else {
		ref := refs.Select(vp8.RefLast)
		nearest, near, _ := predict.Census(above, left, aboveLeft)
		mv, mode := motionSearch(srcMB.Y, mbv.Y, ref.Y, col*16, row*16, nearest, near)

		mb.Ref = vp8.RefLast
		mb.MVMode = mode
		mb.MV = mv
		mb.UVMode = predict.DCPred

		cmv := scaleMV(mv)
		predict.Inter(mbv.U, ref.U, col*8, row*8, cmv, predict.FilterBilinear)
		predict.Inter(mbv.V, ref.V, col*8, row*8, cmv, predict.FilterBilinear)
	}

	hasY2 := !(mb.Ref == vp8.RefIntra && mb.YMode == predict.BPred)

	res := computeResidual(mbv, srcMB, hasY2, deq)
	mb.SkipCoeff = residualIsZero(res)
	applyResidual(mbv, res, deq)

	return mb, res
}

func scaleMV(mv predict.MV) predict.MV {
	return predict.MV{X: mv.X * 2, Y: mv.Y * 2}
}

// bestIntraMode estimates SAD cost for DC/V/H/TM prediction against sv
// without mutating v, picks the cheapest, writes it into v, and returns
// the chosen mode.
func bestIntraMode(v, sv raster.View) predict.Mode {
	above := v.AboveRow(0)
	left := v.LeftCol()
	corner := int32(v.AboveLeft())
	dc := dcValue(v)

	modes := [4]predict.Mode{predict.DCPred, predict.VPred, predict.HPred, predict.TMPred}
	best := predict.DCPred
	bestCost := int64(1) << 62
	for _, m := range modes {
		var cost int64
		for r := 0; r < v.Size; r++ {
			for c := 0; c < v.Size; c++ {
				var pred int32
				switch m {
				case predict.DCPred:
					pred = dc
				case predict.VPred:
					pred = int32(above[c])
				case predict.HPred:
					pred = int32(left[r])
				default: // TMPred
					pred = int32(raster.Clamp255(int32(above[c]) + int32(left[r]) - corner))
				}
				d := int32(sv.At(c, r)) - pred
				if d < 0 {
					d = -d
				}
				cost += int64(d)
			}
		}
		if cost < bestCost {
			bestCost = cost
			best = m
		}
	}
	predict.Predict(v, best)
	return best
}

func dcValue(v raster.View) int32 {
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
	if n == 0 {
		return 128
	}
	return (sum + n/2) / n
}

// motionSearch evaluates ZERO, the two census candidates, and a one-step
// diamond around NEAREST, writing the winning prediction into dstY and
// returning it with the mode that would reproduce it on decode.
func motionSearch(srcY, dstY raster.View, refY *raster.Plane, originCol, originRow int, nearest, near predict.MV) (predict.MV, predict.MVContext) {
	type candidate struct {
		mv   predict.MV
		mode predict.MVContext
	}
	candidates := []candidate{
		{predict.MV{}, predict.CtxZero},
		{nearest, predict.CtxNearest},
		{near, predict.CtxNear},
		{predict.MV{X: nearest.X + 4, Y: nearest.Y}, predict.CtxNew},
		{predict.MV{X: nearest.X - 4, Y: nearest.Y}, predict.CtxNew},
		{predict.MV{X: nearest.X, Y: nearest.Y + 4}, predict.CtxNew},
		{predict.MV{X: nearest.X, Y: nearest.Y - 4}, predict.CtxNew},
	}

	best := candidates[0]
	bestCost := int64(1) << 62
	for _, cand := range candidates {
		predict.Inter(dstY, refY, originCol, originRow, scaleMV(cand.mv), predict.FilterBicubic)
		cost := sadViews(srcY, dstY)
		if cost < bestCost {
			bestCost = cost
			best = cand
		}
	}
	predict.Inter(dstY, refY, originCol, originRow, scaleMV(best.mv), predict.FilterBicubic)
	return best.mv, best.mode
}

func sadViews(a, b raster.View) int64 {
	var s int64
	for r := 0; r < a.Size; r++ {
		for c := 0; c < a.Size; c++ {
			d := int32(a.At(c, r)) - int32(b.At(c, r))
			if d < 0 {
				d = -d
			}
			s += int64(d)
		}
	}
	return s
}

// computeResidual takes mbv's written prediction and the original source
// samples, forward-transforms and quantizes Y, Y2 (if hasY2) and chroma.
func computeResidual(mbv raster.Macroblock, srcMB raster.Macroblock, hasY2 bool, deq header.Dequantizers) residual {
	var res residual
	res.hasY2 = hasY2

	var dcs [16]int32
	for i := 0; i < 16; i++ {
		sb := mbv.YSubblock(i)
		ssb := srcMB.YSubblock(i)
		raw := transform.FDCT4x4(diffBlock(ssb, sb))
		dcs[i] = raw[0]
		res.y[i] = quantizeBlock(raw, deq.YDC, deq.YAC, hasY2)
	}

	if hasY2 {
		y2Raw := transform.FWHT4x4(&dcs)
		res.y2 = quantizeBlock(y2Raw, deq.Y2DC, deq.Y2AC, false)
	}

	quantChroma := func(mv, sv raster.View) [4]vp8.CoeffBlock {
		var out [4]vp8.CoeffBlock
		for i := 0; i < 4; i++ {
			sb := raster.ChromaSubblock(mv, i)
			ssb := raster.ChromaSubblock(sv, i)
			raw := transform.FDCT4x4(diffBlock(ssb, sb))
			out[i] = quantizeBlock(raw, deq.UVDC, deq.UVAC, false)
		}
		return out
	}
	res.u = quantChroma(mbv.U, srcMB.U)
	res.v = quantChroma(mbv.V, srcMB.V)

	return res
}

func diffBlock(src, pred raster.View) [4][4]int32 {
	var out [4][4]int32
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r][c] = int32(src.At(c, r)) - int32(pred.At(c, r))
		}
	}
	return out
}

// quantizeBlock rounds raw's natural-order coefficients to the nearest
// multiple of the dequantizer and records the zigzag position of the last
// nonzero level. skipDC is set for Y subblocks whose DC is carried by the
// Y2 block instead (firstCoeff == 1 on the wire).
func quantizeBlock(raw transform.Block, dc, ac int16, skipDC bool) vp8.CoeffBlock {
	var cb vp8.CoeffBlock
	cb.LastNonzero = -1
	for i := 0; i < 16; i++ {
		pos := zigzag[i]
		if skipDC && pos == 0 {
			continue
		}
		q := ac
		if pos == 0 {
			q = dc
		}
		lvl := divRound(raw[pos], int32(q))
		cb.Coeffs[pos] = lvl
		if lvl != 0 {
			cb.HasNonzero = true
			cb.LastNonzero = i
		}
	}
	return cb
}

func divRound(v, q int32) int32 {
	if q == 0 {
		return 0
	}
	neg := v < 0
	if neg {
		v = -v
	}
	r := (v + q/2) / q
	if neg {
		r = -r
	}
	return r
}

func residualIsZero(res residual) bool {
	if res.hasY2 && res.y2.HasNonzero {
		return false
	}
	for _, b := range res.y {
		if b.HasNonzero {
			return false
		}
	}
	for _, b := range res.u {
		if b.HasNonzero {
			return false
		}
	}
	for _, b := range res.v {
		if b.HasNonzero {
			return false
		}
	}
	return true
}

// applyResidual adds res's dequantized, inverse-transformed coefficients
// to mbv's already-written prediction, turning it into the final
// reconstructed macroblock exactly as a decoder would. Returns whether
// any block carried a nonzero coefficient, for the loop filter.
func applyResidual(mbv raster.Macroblock, res residual, deq header.Dequantizers) bool {
	anyNonzero := res.hasY2 && res.y2.HasNonzero

	var y2Out [16]int32
	if res.hasY2 {
		var y2In transform.Block
		for i, c := range res.y2.Coeffs {
			y2In[i] = c * int32(pick(i == 0, deq.Y2DC, deq.Y2AC))
		}
		transform.IWHT4x4(&y2In, &y2Out)
	}

	for i := 0; i < 16; i++ {
		sb := mbv.YSubblock(i)
		var blk transform.Block
		for k, c := range res.y[i].Coeffs {
			blk[k] = c * int32(pick(k == 0, deq.YDC, deq.YAC))
		}
		if res.hasY2 {
			blk[0] = y2Out[i]
		}
		if res.y[i].HasNonzero {
			anyNonzero = true
		}
		transform.IDCT4x4(&blk, sb)
	}

	for plane := 0; plane < 2; plane++ {
		var cv raster.View
		var coeffs [4]vp8.CoeffBlock
		if plane == 0 {
			cv, coeffs = mbv.U, res.u
		} else {
			cv, coeffs = mbv.V, res.v
		}
		for i := 0; i < 4; i++ {
			sub := raster.ChromaSubblock(cv, i)
			var blk transform.Block
			for k, c := range coeffs[i].Coeffs {
				blk[k] = c * int32(pick(k == 0, deq.UVDC, deq.UVAC))
			}
			if coeffs[i].HasNonzero {
				anyNonzero = true
			}
			transform.IDCT4x4(&blk, sub)
		}
	}

	return anyNonzero
}

func pick(cond bool, a, b int16) int16 {
	if cond {
		return a
	}
	return b
}

// encodeResidual emits res's coefficient blocks, updating the nonzero
// contexts exactly as ParseCoeffBlock's decode-side counterpart would,
// including the skip-branch rule that resets Y/U/V context but only
// resets Y2 context when this macroblock actually carries a Y2 block.
func encodeResidual(e *entropy.BoolEncoder, hdr *header.Header, colNZ, leftNZ *vp8.NZState, mb vp8.MBHeader, res residual) {
	if mb.SkipCoeff {
		*colNZ = vp8.NZState{Y2: colNZ.Y2 && !res.hasY2}
		*leftNZ = vp8.NZState{Y2: leftNZ.Y2 && !res.hasY2}
		return
	}

	if res.hasY2 {
		ctx := b2i(colNZ.Y2) + b2i(leftNZ.Y2)
		vp8.EncodeCoeffBlock(e, &hdr.Probabilities.Coeff, vp8.BlockY2, ctx, 0, res.y2.Coeffs, res.y2.LastNonzero)
		colNZ.Y2 = res.y2.HasNonzero
		leftNZ.Y2 = res.y2.HasNonzero
	}

	yBlockType := vp8.BlockYWithoutY2
	firstCoeff := 0
	if res.hasY2 {
		yBlockType = vp8.BlockYAfterY2
		firstCoeff = 1
	}
	var yCols [4]bool
	copy(yCols[:], colNZ.Y[:])
	var yRows [4]bool
	copy(yRows[:], leftNZ.Y[:])
	for i := 0; i < 16; i++ {
		c, r := i%4, i/4
		ctx := b2i(yCols[c]) + b2i(yRows[r])
		blk := res.y[i]
		vp8.EncodeCoeffBlock(e, &hdr.Probabilities.Coeff, yBlockType, ctx, firstCoeff, blk.Coeffs, blk.LastNonzero)
		yCols[c] = blk.HasNonzero
		yRows[r] = blk.HasNonzero
	}
	colNZ.Y, leftNZ.Y = yCols, yRows

	encodeChroma := func(blocks [4]vp8.CoeffBlock, above, left *[2]bool) {
		var cols [2]bool
		copy(cols[:], above[:])
		var rows [2]bool
		copy(rows[:], left[:])
		for i := 0; i < 4; i++ {
			c, r := i%2, i/2
			ctx := b2i(cols[c]) + b2i(rows[r])
			blk := blocks[i]
			vp8.EncodeCoeffBlock(e, &hdr.Probabilities.Coeff, vp8.BlockUV, ctx, 0, blk.Coeffs, blk.LastNonzero)
			cols[c] = blk.HasNonzero
			rows[r] = blk.HasNonzero
		}
		*above, *left = cols, rows
	}
	encodeChroma(res.u, &colNZ.U, &leftNZ.U)
	encodeChroma(res.v, &colNZ.V, &leftNZ.V)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
