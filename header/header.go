/*
NAME
  header.go

DESCRIPTION
  header.go is the strongly-typed representation of VP8 key- and
  inter-frame headers described in §3/§4.3: quantization, loop-filter
  parameters, probability updates, segmentation, and the reference
  refresh/copy flags.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package header models the parsed VP8 frame header, its derived
// quantizers, and the probability tables it carries updates for.
package header

// FrameType distinguishes a key frame (references none of LAST/GOLDEN/ALT)
// from an inter frame (references at least one).
type FrameType int

const (
	KeyFrame FrameType = iota
	InterFrame
)

// FilterMode selects the loop filter variant applied after reconstruction.
type FilterMode int

const (
	FilterNormal FilterMode = iota
	FilterSimple
	FilterNone
)

// CopyBuffer names a reference buffer an update may copy from instead of
// refreshing from the freshly decoded frame.
type CopyBuffer int

const (
	CopyNone CopyBuffer = iota
	CopyFromLast
	CopyFromGolden
	CopyFromAltRef
)

// Quantizer carries the quantizer indices and deltas parsed from the
// header, before derivation (§4.3).
type Quantizer struct {
	YACQI                                          int
	YDCDelta, Y2DCDelta, Y2ACDelta, UVDCDelta, UVACDelta int
}

// LoopFilterParams carries the loop-filter mode, level, sharpness and
// mode/ref adjustments parsed from the header (§3, §4.4).
type LoopFilterParams struct {
	Mode         FilterMode
	Level        int
	Sharpness    int
	DeltaEnabled bool
	RefDelta     [4]int8 // indexed by reference frame: intra, last, golden, altref
	ModeDelta    [4]int8 // indexed by prediction-mode bucket
}

// Segmentation is the per-macroblock segment map with per-segment
// quantizer and filter deltas (§3, §4.3).
type Segmentation struct {
	Enabled         bool
	UpdateMap       bool
	AbsoluteValues  bool
	Quantizer       [4]int8
	FilterLevel     [4]int8
	TreeProbs       [3]uint8 // defaults to 255 when absent, per §4.3
}

// NewSegmentation returns a Segmentation with TreeProbs defaulted to 255.
func NewSegmentation() *Segmentation {
	return &Segmentation{TreeProbs: [3]uint8{255, 255, 255}}
}

// CoeffContexts is the shape of the coefficient-branch probability table:
// [block type][band][previous-token context][tree node].
type CoeffContexts = [4][8][3][11]uint8

// Probabilities is the decoder/encoder-shared probability table set
// (§3): coefficient-branch, intra Y mode, intra UV mode, and
// motion-vector-component probabilities.
type Probabilities struct {
	Coeff  CoeffContexts
	YMode  [4]uint8
	UVMode [3]uint8
	MV     [2][19]uint8 // [component][node], component 0 = row, 1 = col
}

// Clone deep-copies the probability tables, used to snapshot state before
// decoding a frame whose refresh_entropy_probs flag may require a rewind
// (§3, §4.5 step 11).
func (p Probabilities) Clone() Probabilities { return p } // value type: arrays copy by value

// DefaultProbabilities returns the fixed default tables a key frame resets
// to.
func DefaultProbabilities() Probabilities {
	var p Probabilities
	for bt := range p.Coeff {
		for band := range p.Coeff[bt] {
			for ctx := range p.Coeff[bt][band] {
				for node := range p.Coeff[bt][band][ctx] {
					p.Coeff[bt][band][ctx][node] = defaultCoeffProbs[bt][band][ctx][node]
				}
			}
		}
	}
	p.YMode = defaultYModeProbs
	p.UVMode = defaultUVModeProbs
	p.MV = defaultMVProbs
	return p
}

// Header is the decoded syntax of one VP8 frame header.
type Header struct {
	Type      FrameType
	Version   int
	ShowFrame bool

	// Key-frame-only fields.
	Width, Height   int
	HScale, VScale  uint8

	Quant      Quantizer
	LoopFilter LoopFilterParams

	Log2NumDCTPartitions int

	RefreshEntropy bool
	RefreshGolden  bool
	RefreshAltRef  bool
	RefreshLast    bool
	CopyToGolden   CopyBuffer
	CopyToAltRef   CopyBuffer
	SignBiasGolden bool
	SignBiasAltRef bool

	Segmentation *Segmentation

	MBNoCoeffSkip bool
	ProbSkipFalse uint8

	// Inter-frame mode probabilities.
	ProbIntra uint8
	ProbLast  uint8
	ProbGF    uint8

	Probabilities Probabilities
}

// Validate checks the header once parsing completes. Only
// Log2NumDCTPartitions being in [0,3] is enforced; the §3 reference
// invariant (an inter frame references at least one of LAST/GOLDEN/ALT)
// is not checked here, because the reference a macroblock predicts from
// comes from its parsed mode, not from the header's refresh flags.
func (h *Header) Validate() error {
	if h.Log2NumDCTPartitions < 0 || h.Log2NumDCTPartitions > 3 {
		return errInvalidPartitions
	}
	if h.Type == InterFrame && !h.RefreshLast && !h.RefreshGolden && !h.RefreshAltRef &&
		h.CopyToGolden == CopyNone && h.CopyToAltRef == CopyNone {
		// Still references *something* to predict from even if it
		// refreshes nothing; the invariant concerns referencing, not
		// refreshing, so this is not itself a violation. Nothing to
		// check further here: the reference being used is determined
		// per-macroblock by the parsed mode, not by the header's
		// refresh flags.
		return nil
	}
	return nil
}
