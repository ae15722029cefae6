/*
NAME
  mbheader.go

DESCRIPTION
  mbheader.go parses and serializes one macroblock's mode header: segment
  id, skip-coefficients flag, intra Y/UV mode (or the sixteen B_PRED
  subblock modes), and, on inter frames, the reference-frame choice and
  motion vector (NEAREST/NEAR/NEW/ZERO/SPLITMV) resolved against the
  above/left/above-left neighborhood (§4.3, §4.4).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package vp8

import (
	"github.com/salsifyvideo/core/entropy"
	"github.com/salsifyvideo/core/header"
	"github.com/salsifyvideo/core/predict"
)

// ymodeTree mirrors libvpx's kf_ymode_tree: 5 leaves (DC,V,H,TM,B_PRED)
// over 4 internal nodes, indexed by header.Probabilities.YMode.
var ymodeTree = []entropy.TreeNode{
	0, 2,
	4, 6,
	-1, -2,
	-3, -4,
}

// uvmodeTree mirrors libvpx's uv_mode_tree: 4 leaves (DC,V,H,TM) over 3
// internal nodes, indexed by header.Probabilities.UVMode.
var uvmodeTree = []entropy.TreeNode{
	0, 2,
	-1, 4,
	-2, -3,
}

// bmodeTree covers the ten B_PRED subblock modes. Per-context subblock
// mode probabilities are not part of the persistent entropy state
// (header.Probabilities carries no bmode table), so subblock modes are
// coded against a fixed uniform distribution; this keeps the entropy
// coder self-consistent without tracking an above/left subblock-mode
// context grid.
var bmodeTree = []entropy.TreeNode{
	0, 2,
	4, 6,
	-1, 8,
	10, 12,
	-2, -3,
	-4, -5,
	-6, 14,
	-7, 16,
	-8, -9,
}

var bmodeProbs = [9]uint8{120, 120, 120, 120, 120, 120, 120, 120, 120}

// mvTree is the short-magnitude tree (0..7) shared by both MV components.
var mvTree = []entropy.TreeNode{
	2, 8,
	4, 6,
	0, -1,
	-2, -3,
	10, 12,
	-4, -5,
	-6, -7,
}

// MBHeader is one macroblock's fully decoded mode/MV information.
type MBHeader struct {
	Segment   int
	SkipCoeff bool
	Ref       RefFrame

	YMode  predict.Mode
	UVMode predict.Mode
	SubModes [16]predict.SubMode // valid when YMode == predict.BPred

	MVMode   predict.MVContext
	MV       predict.MV           // valid when not SPLITMV
	Split    predict.SplitShape
	SplitMVs [16]predict.MV       // valid when MVMode == predict.CtxSplit

	hasNonzeroResidual bool // set during reconstruction, read by the loop filter
}

func decodeMVComponent(d *entropy.BoolDecoder, p [19]uint8) int16 {
	if d.Get(p[0]) == 0 {
		return 0
	}
	var mag int32
	if d.Get(p[1]) == 0 {
		// short form: tree over probs[2..8]
		mag = int32(d.Tree(mvTree, p[2:9]))
	} else {
		var bits int32
		for i := 0; i < 10; i++ {
			bits |= int32(d.Get(p[9+i])) << uint(i)
		}
		mag = 8 + bits
	}
	if d.Bit() != 0 {
		mag = -mag
	}
	return int16(mag)
}

func encodeMVComponent(e *entropy.BoolEncoder, p [19]uint8, v int16) {
	if v == 0 {
		e.Put(0, p[0])
		return
	}
	e.Put(1, p[0])
	mag := int32(v)
	neg := mag < 0
	if neg {
		mag = -mag
	}
	if mag < 8 {
		e.Put(0, p[1])
		e.PutTree(int(mag), mvTree, p[2:9])
	} else {
		e.Put(1, p[1])
		bits := mag - 8
		for i := 0; i < 10; i++ {
			e.Put(int((bits>>uint(i))&1), p[9+i])
		}
	}
	e.PutBit(boolToInt(neg))
}

// ParseMBHeader decodes one macroblock's mode header. seg is nil when
// segmentation is disabled for the frame, in which case Segment is left
// at 0. above/left/aboveLeft carry the neighboring macroblocks' resolved
// MV/ref info for the census (§4.4); keyFrame macroblocks are always
// intra and never consult them.
func ParseMBHeader(d *entropy.BoolDecoder, h *header.Header, seg *header.Segmentation, keyFrame bool, above, left, aboveLeft predict.Neighbor) MBHeader {
	var mb MBHeader

	if seg != nil && seg.Enabled && seg.UpdateMap {
		mb.Segment = int(d.Tree(segmentTree, seg.TreeProbs[:]))
	}

	if h.MBNoCoeffSkip {
		mb.SkipCoeff = d.Get(h.ProbSkipFalse) != 0
	}

	if keyFrame {
		mb.Ref = RefIntra
		mb.YMode = predict.Mode(d.Tree(ymodeTree, h.Probabilities.YMode[:]))
		if mb.YMode == predict.BPred {
			for i := range mb.SubModes {
				mb.SubModes[i] = predict.SubMode(d.Tree(bmodeTree, bmodeProbs[:]))
			}
		}
		mb.UVMode = predict.Mode(d.Tree(uvmodeTree, h.Probabilities.UVMode[:]))
		return mb
	}

	isInter := d.Get(h.ProbIntra) != 0
	if !isInter {
		mb.Ref = RefIntra
		mb.YMode = predict.Mode(d.Tree(ymodeTree, h.Probabilities.YMode[:]))
		if mb.YMode == predict.BPred {
			for i := range mb.SubModes {
				mb.SubModes[i] = predict.SubMode(d.Tree(bmodeTree, bmodeProbs[:]))
			}
		}
		mb.UVMode = predict.Mode(d.Tree(uvmodeTree, h.Probabilities.UVMode[:]))
		return mb
	}

	if d.Get(h.ProbLast) == 0 {
		mb.Ref = RefLast
	} else if d.Get(h.ProbGF) == 0 {
		mb.Ref = RefGolden
	} else {
		mb.Ref = RefAltRef
	}

	nearest, near, ctx := predict.Census(above, left, aboveLeft)
	mvProbs := h.Probabilities.MV
	mode := predict.MVContext(d.Tree(mvModeTree, mvModeProbs[ctx][:]))
	mb.MVMode = mode
	switch mode {
	case predict.CtxZero:
		mb.MV = predict.MV{}
	case predict.CtxNearest:
		mb.MV = nearest
	case predict.CtxNear:
		mb.MV = near
	case predict.CtxSplit:
		mb.Split = predict.SplitQuarters
		parts := predict.SplitPartitions(mb.Split)
		n := predict.NumPartitions(mb.Split)
		var pmv [4]predict.MV
		for i := 0; i < n; i++ {
			pmv[i] = predict.MV{
				Y: decodeMVComponent(d, mvProbs[0]),
				X: decodeMVComponent(d, mvProbs[1]),
			}
		}
		for i := 0; i < 16; i++ {
			mb.SplitMVs[i] = pmv[parts[i]]
		}
	default: // CtxNew
		mb.MV = predict.MV{
			Y: nearest.Y + decodeMVComponent(d, mvProbs[0]),
			X: nearest.X + decodeMVComponent(d, mvProbs[1]),
		}
	}
	mb.UVMode = predict.DCPred
	return mb
}

// mvModeTree covers the 5 MV-mode choices (ZERO, NEAREST, NEAR, SPLIT,
// NEW), matching predict.MVContext's iota order.
var mvModeTree = []entropy.TreeNode{
	0, 2,
	-1, 4,
	-2, 6,
	-3, -4,
}

// mvModeProbs holds a fixed per-census-bin probability set for the MV
// mode tree. header.Probabilities carries only the row/col MV component
// tables (adaptive across frames); the mode choice itself is coded
// against this fixed distribution, skewed per bin toward the census's own
// prediction so the common case (mode agrees with context) costs few
// bits without requiring a persistent, adaptively-updated mode table.
var mvModeProbs = [5][4]uint8{
	{248, 128, 128, 128}, // CtxZero:    strongly favour ZERO
	{56, 248, 128, 128},  // CtxNearest: strongly favour NEAREST
	{56, 56, 248, 128},   // CtxNear:    strongly favour NEAR
	{56, 56, 56, 128},    // CtxSplit:   favour NEW/SPLIT over the rest
	{56, 56, 56, 128},    // CtxNew:     favour NEW/SPLIT over the rest
}

// EncodeMBHeader is the inverse of ParseMBHeader: it emits mb's mode
// header against the same frame header, segmentation and neighborhood
// census the matching decode call would reconstruct.
func EncodeMBHeader(e *entropy.BoolEncoder, h *header.Header, seg *header.Segmentation, keyFrame bool, above, left, aboveLeft predict.Neighbor, mb MBHeader) {
	if seg != nil && seg.Enabled && seg.UpdateMap {
		e.PutTree(mb.Segment, segmentTree, seg.TreeProbs[:])
	}

	if h.MBNoCoeffSkip {
		e.Put(boolToInt(mb.SkipCoeff), h.ProbSkipFalse)
	}

	encodeIntraModes := func() {
		e.PutTree(int(mb.YMode), ymodeTree, h.Probabilities.YMode[:])
		if mb.YMode == predict.BPred {
			for _, sm := range mb.SubModes {
				e.PutTree(int(sm), bmodeTree, bmodeProbs[:])
			}
		}
		e.PutTree(int(mb.UVMode), uvmodeTree, h.Probabilities.UVMode[:])
	}

	if keyFrame {
		encodeIntraModes()
		return
	}

	e.Put(boolToInt(mb.Ref != RefIntra), h.ProbIntra)
	if mb.Ref == RefIntra {
		encodeIntraModes()
		return
	}

	e.Put(boolToInt(mb.Ref != RefLast), h.ProbLast)
	if mb.Ref != RefLast {
		e.Put(boolToInt(mb.Ref != RefGolden), h.ProbGF)
	}

	nearest, _, ctx := predict.Census(above, left, aboveLeft)
	mvProbs := h.Probabilities.MV
	e.PutTree(int(mb.MVMode), mvModeTree, mvModeProbs[ctx][:])
	switch mb.MVMode {
	case predict.CtxZero, predict.CtxNearest, predict.CtxNear:
		// Nothing further: value is implied by the census.
	case predict.CtxSplit:
		parts := predict.SplitPartitions(mb.Split)
		n := predict.NumPartitions(mb.Split)
		seen := make([]bool, 16)
		for i := 0; i < 16; i++ {
			p := parts[i]
			if seen[p] {
				continue
			}
			seen[p] = true
			if p >= n {
				continue
			}
			mv := mb.SplitMVs[i]
			encodeMVComponent(e, mvProbs[0], mv.Y)
			encodeMVComponent(e, mvProbs[1], mv.X)
		}
	default: // CtxNew
		encodeMVComponent(e, mvProbs[0], mb.MV.Y-nearest.Y)
		encodeMVComponent(e, mvProbs[1], mb.MV.X-nearest.X)
	}
}

// segmentTree covers the 4-way segment id (2 bits, always full tree).
var segmentTree = []entropy.TreeNode{
	2, 4,
	-0, -1,
	-2, -3,
}
