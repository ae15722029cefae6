/*
NAME
  encode.go

DESCRIPTION
  encode.go serializes a Header into the first compressed partition,
  mirroring Parse field-for-field so that Parse(Encode(h)) reproduces h's
  syntax (the bitstream half of the entropy round-trip property in §8).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package header

import (
	"github.com/salsifyvideo/core/entropy"
)

// Encode writes h's syntax elements to e. baseProbs is the probability
// table in effect before this frame, used to compute which coefficient
// and motion-vector entries changed and so must be flagged as updated.
func Encode(e *entropy.BoolEncoder, h *Header, baseProbs Probabilities) {
	if h.Type == KeyFrame {
		e.PutBit(0) // color_space
		e.PutBit(0) // clamping_type
	}

	encodeSegmentation(e, h)
	encodeLoopFilter(e, h)

	e.PutUint(uint32(h.Log2NumDCTPartitions), 2)

	encodeQuantizer(e, h)

	if h.Type == KeyFrame {
		e.PutFlag(h.RefreshEntropy)
	} else {
		e.PutFlag(h.RefreshGolden)
		e.PutFlag(h.RefreshAltRef)
		if !h.RefreshGolden {
			e.PutUint(uint32(h.CopyToGolden), 2)
		}
		if !h.RefreshAltRef {
			e.PutUint(uint32(h.CopyToAltRef), 2)
		}
		e.PutFlag(h.SignBiasGolden)
		e.PutFlag(h.SignBiasAltRef)
		e.PutFlag(h.RefreshEntropy)
		e.PutFlag(h.RefreshLast)
	}

	encodeCoeffProbUpdates(e, h, baseProbs)

	e.PutFlag(h.MBNoCoeffSkip)
	if h.MBNoCoeffSkip {
		e.PutUint(uint32(h.ProbSkipFalse), 8)
	}

	if h.Type == InterFrame {
		e.PutUint(uint32(h.ProbIntra), 8)
		e.PutUint(uint32(h.ProbLast), 8)
		e.PutUint(uint32(h.ProbGF), 8)
		e.PutFlag(h.Probabilities.YMode != baseProbs.YMode)
		if h.Probabilities.YMode != baseProbs.YMode {
			for _, v := range h.Probabilities.YMode {
				e.PutUint(uint32(v), 8)
			}
		}
		e.PutFlag(h.Probabilities.UVMode != baseProbs.UVMode)
		if h.Probabilities.UVMode != baseProbs.UVMode {
			for _, v := range h.Probabilities.UVMode {
				e.PutUint(uint32(v), 8)
			}
		}
		encodeMVProbUpdates(e, h, baseProbs)
	}
}

func encodeSegmentation(e *entropy.BoolEncoder, h *Header) {
	if h.Segmentation == nil || !h.Segmentation.UpdateMap {
		if h.Segmentation != nil && (h.Segmentation.Enabled) {
			e.PutFlag(true)
			e.PutFlag(false)
			e.PutFlag(false)
			return
		}
		e.PutFlag(false)
		return
	}
	seg := h.Segmentation
	e.PutFlag(true)
	e.PutFlag(seg.UpdateMap)
	e.PutFlag(true) // update_data always emitted alongside an updated map
	e.PutFlag(seg.AbsoluteValues)
	for i := 0; i < 4; i++ {
		e.PutFlag(true)
		e.PutSigned(int32(seg.Quantizer[i]), 7)
	}
	for i := 0; i < 4; i++ {
		e.PutFlag(true)
		e.PutSigned(int32(seg.FilterLevel[i]), 6)
	}
	for i := 0; i < 3; i++ {
		e.PutFlag(true)
		e.PutUint(uint32(seg.TreeProbs[i]), 8)
	}
}

func encodeLoopFilter(e *entropy.BoolEncoder, h *Header) {
	e.PutFlag(h.LoopFilter.Mode == FilterSimple)
	e.PutUint(uint32(h.LoopFilter.Level), 6)
	e.PutUint(uint32(h.LoopFilter.Sharpness), 3)
	e.PutFlag(h.LoopFilter.DeltaEnabled)
	if h.LoopFilter.DeltaEnabled {
		e.PutFlag(true)
		for _, v := range h.LoopFilter.RefDelta {
			e.PutFlag(v != 0)
			if v != 0 {
				e.PutSigned(int32(v), 6)
			}
		}
		for _, v := range h.LoopFilter.ModeDelta {
			e.PutFlag(v != 0)
			if v != 0 {
				e.PutSigned(int32(v), 6)
			}
		}
	}
}

func encodeQuantizer(e *entropy.BoolEncoder, h *Header) {
	e.PutUint(uint32(h.Quant.YACQI), 7)
	writeDelta := func(v int) {
		e.PutFlag(v != 0)
		if v != 0 {
			e.PutSigned(int32(v), 4)
		}
	}
	writeDelta(h.Quant.YDCDelta)
	writeDelta(h.Quant.Y2DCDelta)
	writeDelta(h.Quant.Y2ACDelta)
	writeDelta(h.Quant.UVDCDelta)
	writeDelta(h.Quant.UVACDelta)
}

// updateProb is the fixed "should I update this entry" branch probability,
// matching parseCoeffProbUpdates/parseMVProbUpdates: the arithmetic coder
// requires encoder and decoder to subdivide the interval with the same
// probability at every step, so this must track those exactly.
const updateProb = 252

func encodeCoeffProbUpdates(e *entropy.BoolEncoder, h *Header, base Probabilities) {
	for bt := 0; bt < 4; bt++ {
		for band := 0; band < 8; band++ {
			for ctx := 0; ctx < 3; ctx++ {
				for node := 0; node < 11; node++ {
					nv, ov := h.Probabilities.Coeff[bt][band][ctx][node], base.Coeff[bt][band][ctx][node]
					if nv != ov {
						e.Put(1, updateProb)
						e.PutUint(uint32(nv), 8)
					} else {
						e.Put(0, updateProb)
					}
				}
			}
		}
	}
}

func encodeMVProbUpdates(e *entropy.BoolEncoder, h *Header, base Probabilities) {
	for comp := 0; comp < 2; comp++ {
		for node := 0; node < 19; node++ {
			nv, ov := h.Probabilities.MV[comp][node], base.MV[comp][node]
			if nv != ov {
				e.Put(1, updateProb)
				e.PutUint(uint32(nv>>1), 7)
			} else {
				e.Put(0, updateProb)
			}
		}
	}
}
