/*
NAME
  encoder.go

DESCRIPTION
  encoder.go implements encode_frame (§4.7): given a source raster, the
  decoder state (probabilities/segmentation) and reference set a peer
  decoder is known to hold, and a quantizer, produce a compressed frame
  plus the new decoder state and reference set that decoding it would
  produce. Mode decision (modesearch.go) is a simplified but
  self-consistent search: each macroblock tries intra DC/V/H/TM and, on
  inter frames, ZERO/NEAREST/NEAR plus a small diamond around NEAREST
  against LAST, keeping the candidate with the lowest SAD.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package encoder implements Salsify's VP8-compatible frame encoder
// (§4.7), including reencoding support for speculative multi-candidate
// dispatch.
package encoder

import (
	"github.com/salsifyvideo/core/entropy"
	"github.com/salsifyvideo/core/header"
	"github.com/salsifyvideo/core/loopfilter"
	"github.com/salsifyvideo/core/predict"
	"github.com/salsifyvideo/core/raster"
	"github.com/salsifyvideo/core/vp8"
)

// State is the (decoder_state, reference_set) pair an encode call both
// reads and advances, mirroring exactly what decode_frame would produce
// given the bytes encode_frame emits.
type State struct {
	Probs          header.Probabilities
	Segmentation   header.Segmentation
	Refs           vp8.ReferenceSet
	Width, Height  int
	MBCols, MBRows int
}

// NewState returns the initial encoder-side state before any key frame,
// matching vp8.NewDecoder's starting point.
func NewState(width, height int) State {
	return State{
		Probs:  header.DefaultProbabilities(),
		Width:  width,
		Height: height,
		MBCols: (width + 15) / 16,
		MBRows: (height + 15) / 16,
		Refs:   vp8.NewReferenceSet(width, height),
	}
}

// Result is encode_frame's output: the compressed bytes, the new state,
// and the minihash a receiving decoder will compute after applying them.
type Result struct {
	Bytes    []byte
	State    State
	Minihash vp8.Minihash
	// Picture is the reconstruction this encode produced, byte-identical
	// to what a decoder applying Bytes to the source state would produce
	// (§8's testable property 3). The quantizer search (quantizer.go)
	// measures SSIM against it directly rather than re-decoding Bytes.
	Picture *raster.Raster
}

// Encode produces a compressed frame from source, predicting from
// prev.Refs (ignored for key frames) and updating prev's entropy context
// per refreshEntropy. quant is the frame-level quantizer; segmentation is
// not exercised by this encoder (every macroblock uses segment 0 with
// Segmentation.Enabled left false, matching header.NewSegmentation's
// default).
func Encode(source *raster.Raster, prev State, keyFrame bool, quant header.Quantizer, refreshEntropy bool, refreshLast bool) Result {
	st := prev
	st.Width, st.Height = source.Width(), source.Height()
	st.MBCols = (st.Width + 15) / 16
	st.MBRows = (st.Height + 15) / 16

	hdr := &header.Header{
		Type:           headerType(keyFrame),
		Width:          st.Width,
		Height:         st.Height,
		Quant:          quant,
		LoopFilter:     header.LoopFilterParams{Mode: header.FilterNormal, Level: 20, Sharpness: 0},
		MBNoCoeffSkip:  true,
		ProbSkipFalse:  200,
		ProbIntra:      180,
		ProbLast:       200,
		ProbGF:         128,
		RefreshEntropy: refreshEntropy,
		RefreshLast:    refreshLast || keyFrame,
	}
	if keyFrame {
		hdr.Probabilities = header.DefaultProbabilities()
		hdr.RefreshGolden, hdr.RefreshAltRef = true, true
	} else {
		hdr.Probabilities = st.Probs
	}
	seg := header.NewSegmentation()
	hdr.Segmentation = seg

	deq := header.Derive(hdr.Quant)

	firstEnc := entropy.NewBoolEncoder()
	residEnc := entropy.NewBoolEncoder()

	header.Encode(firstEnc, hdr, st.Probs)

	picture := raster.New(st.Width, st.Height)
	mbInfos := make([][]vp8.MBHeader, st.MBRows)
	mbNZ := make([][]bool, st.MBRows)
	for r := range mbInfos {
		mbInfos[r] = make([]vp8.MBHeader, st.MBCols)
		mbNZ[r] = make([]bool, st.MBCols)
	}
	aboveNZ := make([]vp8.NZState, st.MBCols)

	for row := 0; row < st.MBRows; row++ {
		leftNZ := vp8.NZState{}
		for col := 0; col < st.MBCols; col++ {
			above := neighborAt(mbInfos, row-1, col, st.MBCols)
			left := neighborAt(mbInfos, row, col-1, st.MBCols)
			aboveLeft := neighborAt(mbInfos, row-1, col-1, st.MBCols)

			mb, res := decideMacroblock(source, &st.Refs, picture, st.MBCols, st.MBRows, col, row, keyFrame, above, left, aboveLeft, deq)

			vp8.EncodeMBHeader(firstEnc, hdr, seg, keyFrame, above, left, aboveLeft, mb)
			encodeResidual(residEnc, hdr, &aboveNZ[col], &leftNZ, mb, res)

			mbInfos[row][col] = mb
			mbNZ[row][col] = !residualIsZero(res)
		}
	}

	loopfilter.Filter(picture, loopfilter.Params{
		Mode:      hdr.LoopFilter.Mode,
		Sharpness: hdr.LoopFilter.Sharpness,
		KeyFrame:  keyFrame,
	}, st.MBCols, st.MBRows, func(col, row int) loopfilter.MBInfo {
		mb := mbInfos[row][col]
		return loopfilter.MBInfo{
			FilterLevel:      vp8.DeriveFilterLevel(hdr, seg, mb),
			HasSubblockModes: mb.YMode == predict.BPred || mb.MVMode == predict.CtxSplit,
			HasNonzero:       mbNZ[row][col],
		}
	})

	picture.ExtendEdges()

	if refreshEntropy {
		st.Probs = hdr.Probabilities
	}
	st.Refs.Apply(hdr, picture)

	firstBytes := firstEnc.Flush()
	residBytes := residEnc.Flush()

	tagLen := 3
	if keyFrame {
		tagLen = 10
	}
	out := make([]byte, tagLen+len(firstBytes)+len(residBytes))
	writeFrameTag(out, keyFrame, len(firstBytes), st.Width, st.Height)
	copy(out[tagLen:], firstBytes)
	copy(out[tagLen+len(firstBytes):], residBytes)

	mh := vp8.ComputeMinihash(st.Refs, st.Probs)

	return Result{Bytes: out, State: st, Minihash: mh, Picture: picture}
}

func headerType(keyFrame bool) header.FrameType {
	if keyFrame {
		return header.KeyFrame
	}
	return header.InterFrame
}

func neighborAt(infos [][]vp8.MBHeader, row, col, mbCols int) predict.Neighbor {
	if row < 0 || col < 0 || col >= mbCols {
		return predict.Neighbor{}
	}
	mb := infos[row][col]
	if mb.Ref == vp8.RefIntra {
		return predict.Neighbor{Present: true, IsIntra: true}
	}
	return predict.Neighbor{Present: true, MV: mb.MV}
}

func writeFrameTag(out []byte, keyFrame bool, firstPartSize, width, height int) {
	var tag uint32
	if !keyFrame {
		tag |= 1
	}
	tag |= uint32(firstPartSize&0x7FFFF) << 5
	tag |= 1 << 4 // show_frame
	out[0] = byte(tag)
	out[1] = byte(tag >> 8)
	out[2] = byte(tag >> 16)
	if !keyFrame {
		return
	}
	out[3] = 0x9d
	out[4] = 0x01
	out[5] = 0x2a
	out[6] = byte(width)
	out[7] = byte(width >> 8)
	out[8] = byte(height)
	out[9] = byte(height >> 8)
}
