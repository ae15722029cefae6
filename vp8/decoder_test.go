/*
NAME
  decoder_test.go

DESCRIPTION
  decoder_test.go is §8's S1 scenario: encoding an all-gray 16x16 raster
  as a key frame and decoding the result from a fresh decoder must
  reproduce the raster and the encoder's declared target minihash.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package vp8

import (
	"testing"

	"github.com/salsifyvideo/core/encoder"
	"github.com/salsifyvideo/core/header"
	"github.com/salsifyvideo/core/raster"
)

func allGray(w, h int) *raster.Raster {
	r := raster.New(w, h)
	r.Y.Fill(128)
	r.U.Fill(128)
	r.V.Fill(128)
	r.ExtendEdges()
	return r
}

// TestKeyFrameRoundTrip is §8's S1: encode an all-gray 16x16 raster at
// y_ac_qi=40, decode it from a fresh decoder, and confirm both the
// reconstructed samples and the minihash contract.
func TestKeyFrameRoundTrip(t *testing.T) {
	src := allGray(16, 16)
	st := encoder.NewState(16, 16)
	quant := header.Quantizer{YACQI: 40}

	result := encoder.Encode(src, st, true, quant, true, true)

	d := NewDecoder()
	decoded, err := d.DecodeFrame(result.Bytes)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}

	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if got := decoded.Picture.Y.At(x, y); absDiff(got, 128) > 1 {
				t.Fatalf("Y(%d,%d) = %d, want 128±1", x, y, got)
			}
		}
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if got := decoded.Picture.U.At(x, y); absDiff(got, 128) > 1 {
				t.Fatalf("U(%d,%d) = %d, want 128±1", x, y, got)
			}
			if got := decoded.Picture.V.At(x, y); absDiff(got, 128) > 1 {
				t.Fatalf("V(%d,%d) = %d, want 128±1", x, y, got)
			}
		}
	}

	if decoded.Minihash != result.Minihash {
		t.Errorf("decoder post-minihash %08x != encoder target minihash %08x", decoded.Minihash, result.Minihash)
	}
}

// TestDimensionsPreserved is §8's testable property 1: decode(encode(R))
// has the same dimensions as R.
func TestDimensionsPreserved(t *testing.T) {
	src := allGray(32, 16)
	st := encoder.NewState(32, 16)
	quant := header.Quantizer{YACQI: 60}

	result := encoder.Encode(src, st, true, quant, true, true)
	d := NewDecoder()
	decoded, err := d.DecodeFrame(result.Bytes)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if decoded.Picture.Width() != src.Width() || decoded.Picture.Height() != src.Height() {
		t.Errorf("got %dx%d, want %dx%d", decoded.Picture.Width(), decoded.Picture.Height(), src.Width(), src.Height())
	}
}

func absDiff(got uint8, want int) int {
	d := int(got) - want
	if d < 0 {
		return -d
	}
	return d
}
