/*
NAME
  decoder.go

DESCRIPTION
  decoder.go implements the decoder state machine's single operation,
  decode_frame (§4.5): parse the uncompressed chunk tag and compressed
  frame header, walk the macroblock grid left-to-right/top-to-bottom
  reconstructing each macroblock's prediction plus residual, run the
  in-place loop filter over the whole reconstructed raster, apply the
  header's reference-set transitions, and return the new raster together
  with the minihash identifying the decoder's new complete state.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package vp8 implements the VP8-compatible decoder and reference-set
// state machine (§3, §4.5, §4.6).
package vp8

import (
	"github.com/salsifyvideo/core/entropy"
	"github.com/salsifyvideo/core/errkind"
	"github.com/salsifyvideo/core/header"
	"github.com/salsifyvideo/core/loopfilter"
	"github.com/salsifyvideo/core/predict"
	"github.com/salsifyvideo/core/raster"
	"github.com/salsifyvideo/core/transform"
)

// NZState is the nonzero-coefficient context a macroblock leaves behind
// for its right and bottom neighbors' coefficient token contexts.
type NZState struct {
	Y  [4]bool
	U  [2]bool
	V  [2]bool
	Y2 bool
}

// Decoder holds the persistent state a sequence of decode_frame calls
// thread through: the current picture size, the rolling entropy
// probability table, the persistent segmentation map, and the three-slot
// reference set.
type Decoder struct {
	Width, Height int
	MBCols, MBRows int

	Probs        header.Probabilities
	Segmentation header.Segmentation
	Refs         ReferenceSet

	haveKeyFrame bool
}

// NewDecoder returns a decoder with no established picture size; the
// first frame it decodes must be a key frame, which establishes it.
func NewDecoder() *Decoder {
	return &Decoder{Probs: header.DefaultProbabilities()}
}

// Minihash returns the decoder's current state identifier, before any
// frame is applied. Callers use this to verify a fragment's
// source_minihash matches their current decoder per §4.10's invariant 2.
func (d *Decoder) Minihash() Minihash {
	return ComputeMinihash(d.Refs, d.Probs)
}

// DecodedFrame is decode_frame's result: the reconstructed picture, the
// header actually parsed (callers inspect RefreshGolden etc. to track
// display semantics), and the minihash of the decoder's state after this
// frame's reference-set transitions have been applied.
type DecodedFrame struct {
	Picture  *raster.Raster
	Header   *header.Header
	Minihash Minihash
}

// DecodeFrame parses and reconstructs one compressed frame, mutating the
// decoder's persistent entropy/segmentation state and reference set.
func (d *Decoder) DecodeFrame(data []byte) (*DecodedFrame, error) {
	tag, err := ParseFrameTag(data)
	if err != nil {
		return nil, err
	}
	if tag.Type == header.KeyFrame {
		if !d.haveKeyFrame {
			d.Width, d.Height = tag.Width, tag.Height
			d.MBCols, d.MBRows = mbDim(d.Width), mbDim(d.Height)
			d.Refs = NewReferenceSet(d.Width, d.Height)
			d.haveKeyFrame = true
		} else if tag.Width != d.Width || tag.Height != d.Height {
			return nil, errkind.Invalidf("vp8.DecodeFrame", "key frame resolution %dx%d does not match established %dx%d", tag.Width, tag.Height, d.Width, d.Height)
		}
	} else if !d.haveKeyFrame {
		return nil, errkind.Invalidf("vp8.DecodeFrame", "first frame in sequence must be a key frame")
	}

	body := data[tag.HeaderLen:]
	if len(body) < tag.FirstPartSize {
		return nil, errkind.Invalidf("vp8.DecodeFrame", "first partition size %d exceeds frame body %d", tag.FirstPartSize, len(body))
	}
	firstPart := body[:tag.FirstPartSize]
	residue := body[tag.FirstPartSize:]

	bd := entropy.NewBoolDecoder(firstPart)
	hdr, err := header.Parse(bd, tag.Type, d.Probs, &d.Segmentation)
	if err != nil {
		return nil, err
	}
	hdr.Width, hdr.Height = d.Width, d.Height

	// Parse always returns a non-nil Segmentation (either the persistent
	// one handed in, when this frame carries no update, or a freshly
	// derived one); sync it back so the next frame's persistent baseline
	// reflects it.
	segPtr := hdr.Segmentation
	d.Segmentation = *segPtr

	rd := entropy.NewBoolDecoder(residue)

	picture := raster.New(d.Width, d.Height)
	mbInfos := make([][]MBHeader, d.MBRows)
	for r := range mbInfos {
		mbInfos[r] = make([]MBHeader, d.MBCols)
	}

	aboveNZ := make([]NZState, d.MBCols)
	keyFrame := tag.Type == header.KeyFrame

	for row := 0; row < d.MBRows; row++ {
		leftNZ := NZState{}
		for col := 0; col < d.MBCols; col++ {
			above := neighborAt(mbInfos, row-1, col, d.MBCols)
			left := neighborAt(mbInfos, row, col-1, d.MBCols)
			aboveLeft := neighborAt(mbInfos, row-1, col-1, d.MBCols)

			mb := ParseMBHeader(bd, hdr, segPtr, keyFrame, above, left, aboveLeft)

			hasY2 := !(mb.Ref == RefIntra && mb.YMode == predict.BPred) &&
				!(mb.Ref != RefIntra && mb.MVMode == predict.CtxSplit)

			var deq header.Dequantizers
			if segPtr.Enabled {
				deq = header.DeriveSegment(hdr.Quant, segPtr, mb.Segment)
			} else {
				deq = header.Derive(hdr.Quant)
			}

			var yCoeffs [16]CoeffBlock
			var uCoeffs, vCoeffs [4]CoeffBlock
			var y2Coeffs CoeffBlock
			colNZ := aboveNZ[col]

			if !mb.SkipCoeff {
				if hasY2 {
					ctx := b2i(colNZ.Y2) + b2i(leftNZ.Y2)
					y2Coeffs = ParseCoeffBlock(rd, &hdr.Probabilities.Coeff, BlockY2, ctx, 0)
					colNZ.Y2 = y2Coeffs.HasNonzero
					leftNZ.Y2 = y2Coeffs.HasNonzero
				}
				yBlockType := BlockYWithoutY2
				firstCoeff := 0
				if hasY2 {
					yBlockType = BlockYAfterY2
					firstCoeff = 1
				}
				var yCols [4]bool
				copy(yCols[:], colNZ.Y[:])
				var yRows [4]bool
				copy(yRows[:], leftNZ.Y[:])
				for i := 0; i < 16; i++ {
					c, r := i%4, i/4
					ctx := b2i(yCols[c]) + b2i(yRows[r])
					yCoeffs[i] = ParseCoeffBlock(rd, &hdr.Probabilities.Coeff, yBlockType, ctx, firstCoeff)
					yCols[c] = yCoeffs[i].HasNonzero
					yRows[r] = yCoeffs[i].HasNonzero
				}
				colNZ.Y, leftNZ.Y = yCols, yRows

				parseChroma := func(above, left *[2]bool) [4]CoeffBlock {
					var blocks [4]CoeffBlock
					var cols [2]bool
					copy(cols[:], above[:])
					var rows [2]bool
					copy(rows[:], left[:])
					for i := 0; i < 4; i++ {
						c, r := i%2, i/2
						ctx := b2i(cols[c]) + b2i(rows[r])
						blocks[i] = ParseCoeffBlock(rd, &hdr.Probabilities.Coeff, BlockUV, ctx, 0)
						cols[c] = blocks[i].HasNonzero
						rows[r] = blocks[i].HasNonzero
					}
					*above, *left = cols, rows
					return blocks
				}
				uCoeffs = parseChroma(&colNZ.U, &leftNZ.U)
				vCoeffs = parseChroma(&colNZ.V, &leftNZ.V)
			} else {
				colNZ = NZState{Y2: colNZ.Y2 && !hasY2}
				leftNZ = NZState{Y2: leftNZ.Y2 && !hasY2}
			}
			aboveNZ[col] = colNZ

			mb.hasNonzeroResidual = reconstructMacroblock(picture, &d.Refs, d.MBCols, d.MBRows, col, row, mb, hasY2, yCoeffs, uCoeffs, vCoeffs, y2Coeffs, deq)

			mbInfos[row][col] = mb
		}
	}

	lfMode := hdr.LoopFilter.Mode
	loopfilter.Filter(picture, loopfilter.Params{
		Mode:      lfMode,
		Sharpness: hdr.LoopFilter.Sharpness,
		KeyFrame:  keyFrame,
	}, d.MBCols, d.MBRows, func(col, row int) loopfilter.MBInfo {
		mb := mbInfos[row][col]
		level := deriveFilterLevel(hdr, segPtr, mb)
		return loopfilter.MBInfo{
			FilterLevel:      level,
			HasSubblockModes: mb.YMode == predict.BPred || mb.MVMode == predict.CtxSplit,
			HasNonzero:       mb.hasNonzeroResidual,
		}
	})

	picture.ExtendEdges()

	if hdr.RefreshEntropy {
		d.Probs = hdr.Probabilities
	}
	d.Refs.Apply(hdr, picture)

	mh := ComputeMinihash(d.Refs, d.Probs)

	return &DecodedFrame{Picture: picture, Header: hdr, Minihash: mh}, nil
}

func mbDim(pixels int) int { return (pixels + 15) / 16 }

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func neighborAt(infos [][]MBHeader, row, col, mbCols int) predict.Neighbor {
	if row < 0 || col < 0 || col >= mbCols {
		return predict.Neighbor{}
	}
	mb := infos[row][col]
	if mb.Ref == RefIntra {
		return predict.Neighbor{Present: true, IsIntra: true}
	}
	return predict.Neighbor{Present: true, MV: mb.MV}
}

// DeriveFilterLevel computes a macroblock's effective loop-filter level
// from the frame header, segmentation and the macroblock's resolved
// ref/mode, per §4.4. Exported so the encoder can apply the same loop
// filter to its own reconstructed reference pictures.
func DeriveFilterLevel(h *header.Header, seg *header.Segmentation, mb MBHeader) int {
	return deriveFilterLevel(h, seg, mb)
}

func deriveFilterLevel(h *header.Header, seg *header.Segmentation, mb MBHeader) int {
	level := h.LoopFilter.Level
	if seg.Enabled {
		if seg.AbsoluteValues {
			level = int(seg.FilterLevel[mb.Segment])
		} else {
			level += int(seg.FilterLevel[mb.Segment])
		}
	}
	if h.LoopFilter.DeltaEnabled {
		if mb.Ref == RefIntra {
			level += int(h.LoopFilter.RefDelta[0])
			if mb.YMode == predict.BPred {
				level += int(h.LoopFilter.ModeDelta[0])
			}
		} else {
			switch mb.Ref {
			case RefLast:
				level += int(h.LoopFilter.RefDelta[1])
			case RefGolden:
				level += int(h.LoopFilter.RefDelta[2])
			case RefAltRef:
				level += int(h.LoopFilter.RefDelta[3])
			}
			if mb.MVMode == predict.CtxSplit {
				level += int(h.LoopFilter.ModeDelta[3])
			} else if mb.MVMode == predict.CtxZero {
				level += int(h.LoopFilter.ModeDelta[1])
			} else {
				level += int(h.LoopFilter.ModeDelta[2])
			}
		}
	}
	if level < 0 {
		level = 0
	}
	if level > 63 {
		level = 63
	}
	return level
}

// reconstructMacroblock predicts and reconstructs one macroblock's Y, U
// and V samples in place, reading motion-compensated or intra prediction
// and adding the inverse-transformed residual. It returns whether any
// block in the macroblock carried a nonzero coefficient, which the loop
// filter needs to decide whether interior subblock edges apply.
func reconstructMacroblock(picture *raster.Raster, refs *ReferenceSet, mbCols, mbRows, col, row int, mb MBHeader, hasY2 bool, yCoeffs [16]CoeffBlock, uCoeffs, vCoeffs [4]CoeffBlock, y2Coeffs CoeffBlock, deq header.Dequantizers) bool {
	var y2Out [16]int32
	if hasY2 {
		var y2In transform.Block
		for i, c := range y2Coeffs.Coeffs {
			y2In[i] = c * int32(pick(i == 0, deq.Y2DC, deq.Y2AC))
		}
		transform.IWHT4x4(&y2In, &y2Out)
	}

	anyNonzero := hasY2 && y2Coeffs.HasNonzero

	mbv := raster.MacroblockAt(picture, col, row, mbCols, mbRows)
	ref := refs.Select(mb.Ref)

	switch mb.Ref {
	case RefIntra:
		if mb.YMode != predict.BPred {
			predict.Predict(mbv.Y, mb.YMode)
		}
		if mb.UVMode != predict.BPred {
			predict.Predict(mbv.U, mb.UVMode)
			predict.Predict(mbv.V, mb.UVMode)
		}
	default:
		predict.Inter(mbv.Y, ref.Y, col*16, row*16, scaleMV(mb.MV, 2), predict.FilterBicubic)
		cmv := chromaMVFor(mb)
		predict.Inter(mbv.U, ref.U, col*8, row*8, cmv, predict.FilterBilinear)
		predict.Inter(mbv.V, ref.V, col*8, row*8, cmv, predict.FilterBilinear)
	}

	for i := 0; i < 16; i++ {
		sb := mbv.YSubblock(i)
		if mb.Ref == RefIntra && mb.YMode == predict.BPred {
			predict.PredictSub(sb, mb.SubModes[i])
		} else if mb.Ref != RefIntra && mb.MVMode == predict.CtxSplit {
			predict.Inter(sb, ref.Y, col*16+(i%4)*4, row*16+(i/4)*4, scaleMV(mb.SplitMVs[i], 2), predict.FilterBicubic)
		}
		var blk transform.Block
		for k, c := range yCoeffs[i].Coeffs {
			blk[k] = c * int32(pick(k == 0, deq.YDC, deq.YAC))
		}
		if hasY2 {
			blk[0] = y2Out[i]
		}
		if yCoeffs[i].HasNonzero {
			anyNonzero = true
		}
		transform.IDCT4x4(&blk, sb)
	}

	for plane := 0; plane < 2; plane++ {
		var cv raster.View
		var coeffs [4]CoeffBlock
		if plane == 0 {
			cv, coeffs = mbv.U, uCoeffs
		} else {
			cv, coeffs = mbv.V, vCoeffs
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

// scaleMV converts a quarter-pel MV to eighth-pel units for predict.Inter.
func scaleMV(mv predict.MV, factor int16) predict.MV {
	return predict.MV{X: mv.X * factor, Y: mv.Y * factor}
}

func chromaMVFor(mb MBHeader) predict.MV {
	if mb.MVMode != predict.CtxSplit {
		return scaleMV(mb.MV, 2)
	}
	var luma [4]predict.MV
	copy(luma[:], mb.SplitMVs[:4])
	return scaleMV(predict.ChromaMV(luma), 2)
}
