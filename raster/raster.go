/*
NAME
  raster.go

DESCRIPTION
  raster.go implements Raster, the (Y, U, V) triple in 4:2:0 format, with
  a content-derived hash identifier used for equality and for referring to
  a raster across the wire (§3).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package raster

import (
	"hash/fnv"
)

// Raster is a decoded or captured Y/U/V frame in 4:2:0 format: U and V are
// exactly half the width and half the height of Y.
type Raster struct {
	Y, U, V *Plane

	hash    uint64
	hashSet bool
}

// New allocates a Raster for a displayable rectangle of w x h luma samples.
// Chroma planes are sized at the 4:2:0 ratio (rounded up).
func New(w, h int) *Raster {
	cw, ch := (w+1)/2, (h+1)/2
	return &Raster{
		Y: NewPlane(w, h),
		U: NewPlane(cw, ch),
		V: NewPlane(cw, ch),
	}
}

// Width and Height report the Raster's displayable luma dimensions.
func (r *Raster) Width() int  { return r.Y.DisplayW }
func (r *Raster) Height() int { return r.Y.DisplayH }

// CopyFrom overwrites r's planes with src's and clears the cached hash.
func (r *Raster) CopyFrom(src *Raster) {
	r.Y.CopyFrom(src.Y)
	r.U.CopyFrom(src.U)
	r.V.CopyFrom(src.V)
	r.hashSet = false
}

// ExtendEdges extends all three planes per §3; called after a raster is
// materialized from an external source.
func (r *Raster) ExtendEdges() {
	r.Y.ExtendEdges()
	r.U.ExtendEdges()
	r.V.ExtendEdges()
	r.hashSet = false
}

// Invalidate clears the cached content hash, e.g. after in-place mutation
// by the loop filter or reconstruction.
func (r *Raster) Invalidate() { r.hashSet = false }

// Hash returns the content-derived identifier used for raster equality and
// for wire reference. It is memoized until Invalidate or CopyFrom is
// called.
func (r *Raster) Hash() uint64 {
	if r.hashSet {
		return r.hash
	}
	h := fnv.New64a()
	for _, p := range []*Plane{r.Y, r.U, r.V} {
		h.Write(p.Data)
	}
	r.hash = h.Sum64()
	r.hashSet = true
	return r.hash
}

// Equal reports whether two rasters have identical content.
func (r *Raster) Equal(other *Raster) bool {
	if r == other {
		return true
	}
	if r == nil || other == nil {
		return false
	}
	return r.Hash() == other.Hash()
}
