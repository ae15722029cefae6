/*
NAME
  minihash.go

DESCRIPTION
  minihash.go computes the 32-bit "minihash" identifier carried on every
  wire fragment (§3): a short fingerprint of a decoder's complete state
  (reference set contents plus persistent entropy context), used by the
  sender and receiver to agree, without transmitting full frames, on which
  decoder state a fragment's delta is relative to.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package vp8

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/salsifyvideo/core/header"
)

// Minihash is the wire-level 32-bit decoder-state identifier.
type Minihash uint32

// ComputeMinihash derives a Minihash from a reference set's raster hashes
// and the persistent probability table, so two decoders holding bit
// identical reference frames and entropy context always agree on the
// same value, and any divergence in either changes it.
func ComputeMinihash(refs ReferenceSet, probs header.Probabilities) Minihash {
	h := fnv.New32a()

	var buf [8]byte
	writeHash := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeHash(refs.Last.Hash())
	writeHash(refs.Golden.Hash())
	writeHash(refs.AltRef.Hash())

	for _, band := range probs.Coeff {
		for _, ctxBand := range band {
			for _, ctx := range ctxBand {
				for _, p := range ctx {
					h.Write([]byte{p})
				}
			}
		}
	}
	h.Write(probs.YMode[:])
	h.Write(probs.UVMode[:])
	h.Write(probs.MV[0][:])
	h.Write(probs.MV[1][:])

	return Minihash(h.Sum32())
}
