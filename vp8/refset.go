/*
NAME
  refset.go

DESCRIPTION
  refset.go implements the three-slot reference set (LAST, GOLDEN, ALTREF)
  and the refresh/copy transition rules a decoded frame header applies to
  it (§4.6): refresh_last/golden/altref replace a slot with the frame just
  reconstructed; copy_to_golden/copy_to_altref additionally alias another
  slot into golden/altref when the header does not also refresh it from
  the current frame.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package vp8

import (
	"github.com/salsifyvideo/core/header"
	"github.com/salsifyvideo/core/raster"
)

// ReferenceSet holds the three reference rasters SPLITMV/inter prediction
// and reencoding read from.
type ReferenceSet struct {
	Last   *raster.Raster
	Golden *raster.Raster
	AltRef *raster.Raster
}

// NewReferenceSet allocates a reference set with all three slots pointing
// at freshly zeroed rasters of the given display size, used before the
// first key frame is decoded.
func NewReferenceSet(width, height int) ReferenceSet {
	return ReferenceSet{
		Last:   raster.New(width, height),
		Golden: raster.New(width, height),
		AltRef: raster.New(width, height),
	}
}

// Clone returns a ReferenceSet whose three slots are independent copies
// of r's, used when a speculative encode must not mutate the caller's
// live state.
func (r ReferenceSet) Clone() ReferenceSet {
	w, h := r.Last.Width(), r.Last.Height()
	out := NewReferenceSet(w, h)
	out.Last.CopyFrom(r.Last)
	out.Golden.CopyFrom(r.Golden)
	out.AltRef.CopyFrom(r.AltRef)
	return out
}

// Apply performs the §4.6 slot transitions implied by a decoded frame's
// header, given the just-reconstructed current frame. Key frames refresh
// all three slots unconditionally; inter frames apply copy_to_golden and
// copy_to_altref first (so a copy reads the pre-update Last/Golden/AltRef)
// and then apply refresh_last/golden/altref from the current frame.
func (r *ReferenceSet) Apply(h *header.Header, current *raster.Raster) {
	if h.Type == header.KeyFrame {
		r.Last.CopyFrom(current)
		r.Golden.CopyFrom(current)
		r.AltRef.CopyFrom(current)
		return
	}

	goldenBefore := r.Golden
	if h.CopyToGolden != header.CopyNone && h.CopyToAltRef == header.CopyFromGolden {
		goldenBefore = raster.New(r.Golden.Width(), r.Golden.Height())
		goldenBefore.CopyFrom(r.Golden)
	}
	switch h.CopyToGolden {
	case header.CopyFromLast:
		r.Golden.CopyFrom(r.Last)
	case header.CopyFromAltRef:
		r.Golden.CopyFrom(r.AltRef)
	}
	switch h.CopyToAltRef {
	case header.CopyFromLast:
		r.AltRef.CopyFrom(r.Last)
	case header.CopyFromGolden:
		r.AltRef.CopyFrom(goldenBefore)
	}

	if h.RefreshGolden {
		r.Golden.CopyFrom(current)
	}
	if h.RefreshAltRef {
		r.AltRef.CopyFrom(current)
	}
	if h.RefreshLast {
		r.Last.CopyFrom(current)
	}
}

// Select returns the reference raster a macroblock's reference-frame
// choice names.
func (r ReferenceSet) Select(ref RefFrame) *raster.Raster {
	switch ref {
	case RefLast:
		return r.Last
	case RefGolden:
		return r.Golden
	case RefAltRef:
		return r.AltRef
	default:
		return nil
	}
}

// RefFrame names which reference slot an inter macroblock predicts from.
type RefFrame int

const (
	RefIntra RefFrame = iota
	RefLast
	RefGolden
	RefAltRef
)
