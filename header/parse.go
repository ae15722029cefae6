/*
NAME
  parse.go

DESCRIPTION
  parse.go parses a Header from the first compressed partition's bool
  decoder, following the composition the design notes describe: flag(),
  unsigned(n), signed(n), flagged<T>(flag then T), array<T,N> and
  enumerate<T,N> (array whose i-th element may depend on i). A key-frame
  header rejects nonzero color-space/clamping bits as an unsupported VP8
  profile (§4.3).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package header

import (
	"github.com/salsifyvideo/core/entropy"
)

// Parse decodes a Header from d. prevProbs supplies the probability tables
// in effect before this frame (used as the starting point for inter-frame
// probability updates, and restored wholesale by the caller if
// refresh_entropy_probs is false). frameType and, for inter frames, the
// persistent segmentation/filter state are supplied by the caller because
// those live in decoder state, not in each frame's header.
func Parse(d *entropy.BoolDecoder, frameType FrameType, prevProbs Probabilities, persistentSeg *Segmentation) (*Header, error) {
	h := &Header{Type: frameType, Probabilities: prevProbs}

	if frameType == KeyFrame {
		colorSpace := d.Bit()
		clampingType := d.Bit()
		if colorSpace != 0 || clampingType != 0 {
			return nil, unsupportedProfile("color_space/clamping_type must be 0")
		}
		h.Probabilities = DefaultProbabilities()
	}

	if err := parseSegmentation(d, h, persistentSeg); err != nil {
		return nil, err
	}
	parseLoopFilter(d, h)

	h.Log2NumDCTPartitions = int(d.Uint(2))

	parseQuantizer(d, h)

	if frameType == KeyFrame {
		h.RefreshGolden = true
		h.RefreshAltRef = true
		h.RefreshLast = true
		h.RefreshEntropy = d.Flag()
	} else {
		h.RefreshGolden = d.Flag()
		h.RefreshAltRef = d.Flag()
		if !h.RefreshGolden {
			h.CopyToGolden = CopyBuffer(d.Uint(2))
		}
		if !h.RefreshAltRef {
			h.CopyToAltRef = CopyBuffer(d.Uint(2))
		}
		h.SignBiasGolden = d.Flag()
		h.SignBiasAltRef = d.Flag()
		h.RefreshEntropy = d.Flag()
		h.RefreshLast = d.Flag()
	}

	parseCoeffProbUpdates(d, h)

	h.MBNoCoeffSkip = d.Flag()
	if h.MBNoCoeffSkip {
		h.ProbSkipFalse = uint8(d.Uint(8))
	}

	if frameType == InterFrame {
		h.ProbIntra = uint8(d.Uint(8))
		h.ProbLast = uint8(d.Uint(8))
		h.ProbGF = uint8(d.Uint(8))
		if d.Flag() {
			for i := range h.Probabilities.YMode {
				h.Probabilities.YMode[i] = uint8(d.Uint(8))
			}
		}
		if d.Flag() {
			for i := range h.Probabilities.UVMode {
				h.Probabilities.UVMode[i] = uint8(d.Uint(8))
			}
		}
		parseMVProbUpdates(d, h)
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func parseSegmentation(d *entropy.BoolDecoder, h *Header, persistent *Segmentation) error {
	updateEnabled := d.Flag()
	if !updateEnabled {
		h.Segmentation = persistent
		return nil
	}
	seg := NewSegmentation()
	if persistent != nil {
		*seg = *persistent
	}
	seg.Enabled = true
	seg.UpdateMap = d.Flag()
	updateData := d.Flag()
	if updateData {
		seg.AbsoluteValues = d.Flag()
		for i := 0; i < 4; i++ {
			if d.Flag() {
				v := d.Signed(7)
				if seg.AbsoluteValues && v < 0 {
					return invalidAbsoluteQuantizer()
				}
				seg.Quantizer[i] = int8(v)
			} else {
				seg.Quantizer[i] = 0
			}
		}
		for i := 0; i < 4; i++ {
			if d.Flag() {
				v := d.Signed(6)
				if seg.AbsoluteValues && v < 0 {
					return invalidAbsoluteQuantizer()
				}
				seg.FilterLevel[i] = int8(v)
			} else {
				seg.FilterLevel[i] = 0
			}
		}
	}
	if seg.UpdateMap {
		for i := 0; i < 3; i++ {
			if d.Flag() {
				seg.TreeProbs[i] = uint8(d.Uint(8))
			} else {
				seg.TreeProbs[i] = 255
			}
		}
	}
	h.Segmentation = seg
	return nil
}

func parseLoopFilter(d *entropy.BoolDecoder, h *Header) {
	if d.Flag() {
		h.LoopFilter.Mode = FilterSimple
	} else {
		h.LoopFilter.Mode = FilterNormal
	}
	h.LoopFilter.Level = int(d.Uint(6))
	h.LoopFilter.Sharpness = int(d.Uint(3))
	h.LoopFilter.DeltaEnabled = d.Flag()
	if h.LoopFilter.DeltaEnabled && d.Flag() {
		for i := 0; i < 4; i++ {
			if d.Flag() {
				h.LoopFilter.RefDelta[i] = int8(d.Signed(6))
			}
		}
		for i := 0; i < 4; i++ {
			if d.Flag() {
				h.LoopFilter.ModeDelta[i] = int8(d.Signed(6))
			}
		}
	}
}

func parseQuantizer(d *entropy.BoolDecoder, h *Header) {
	h.Quant.YACQI = int(d.Uint(7))
	readDelta := func() int {
		if d.Flag() {
			return int(d.Signed(4))
		}
		return 0
	}
	h.Quant.YDCDelta = readDelta()
	h.Quant.Y2DCDelta = readDelta()
	h.Quant.Y2ACDelta = readDelta()
	h.Quant.UVDCDelta = readDelta()
	h.Quant.UVACDelta = readDelta()
}

func parseCoeffProbUpdates(d *entropy.BoolDecoder, h *Header) {
	const updateProb = 252 // fixed "should I update this entry" probability, per VP8 convention
	for bt := 0; bt < 4; bt++ {
		for band := 0; band < 8; band++ {
			for ctx := 0; ctx < 3; ctx++ {
				for node := 0; node < 11; node++ {
					if d.Get(updateProb) != 0 {
						h.Probabilities.Coeff[bt][band][ctx][node] = uint8(d.Uint(8))
					}
				}
			}
		}
	}
}

func parseMVProbUpdates(d *entropy.BoolDecoder, h *Header) {
	const updateProb = 252
	for comp := 0; comp < 2; comp++ {
		for node := 0; node < 19; node++ {
			if d.Get(updateProb) != 0 {
				v := uint8(d.Uint(7)) << 1
				if v == 0 {
					v = 1
				}
				h.Probabilities.MV[comp][node] = v
			}
		}
	}
}

func unsupportedProfile(msg string) error { return errUnsupported(msg) }

type errUnsupported string

func (e errUnsupported) Error() string { return "unsupported VP8 profile: " + string(e) }

func invalidAbsoluteQuantizer() error {
	return errInvalid("segmentation: absolute quantizer/filter update must be non-negative")
}
