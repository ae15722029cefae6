/*
NAME
  quantizer_test.go

DESCRIPTION
  quantizer_test.go exercises §4.7's three quantizer-selection modes:
  CONSTANT_QUANTIZER passing y_ac_qi through unchanged, MINIMUM_SSIM
  finding a quantizer that meets a target similarity, and
  TARGET_FRAME_SIZE producing a non-empty encode for a target byte
  count. Also covers
  §8's S6 monotonicity property (size is non-increasing in q on
  average).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package encoder

import (
	"testing"

	"github.com/salsifyvideo/core/header"
	"github.com/salsifyvideo/core/raster"
	"github.com/salsifyvideo/core/ssim"
)

func gradientRaster(w, h int) *raster.Raster {
	r := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r.Y.Set(x, y, uint8((x*7+y*3)%256))
		}
	}
	r.U.Fill(120)
	r.V.Fill(140)
	r.ExtendEdges()
	return r
}

func TestSelectQuantizerConstantPassesThrough(t *testing.T) {
	src := gradientRaster(32, 32)
	st := NewState(32, 32)
	got := SelectQuantizer(ConstantQuantizer, src, st, true, header.Quantizer{YACQI: 55}, 0, true, true)
	want := Encode(src, st, true, header.Quantizer{YACQI: 55}, true, true)
	if len(got.Bytes) != len(want.Bytes) {
		t.Errorf("ConstantQuantizer changed the output: got %d bytes, want %d", len(got.Bytes), len(want.Bytes))
	}
}

func TestSelectQuantizerMinimumSSIMMeetsTarget(t *testing.T) {
	src := gradientRaster(32, 32)
	st := NewState(32, 32)
	const target = 0.9
	result := SelectQuantizer(MinimumSSIM, src, st, true, header.Quantizer{}, target, true, true)
	if got := ssim.Compute(src, result.Picture); got < target-0.05 {
		t.Errorf("SSIM %f is far below target %f", got, target)
	}
}

func TestSelectQuantizerTargetFrameSizeNonEmpty(t *testing.T) {
	src := gradientRaster(64, 64)
	st := NewState(64, 64)
	const targetBytes = 400
	result := SelectQuantizer(TargetFrameSize, src, st, true, header.Quantizer{}, targetBytes, true, true)
	if len(result.Bytes) == 0 {
		t.Fatal("expected a non-empty encode")
	}
}

// TestQuantizerMonotonicityOnDemand is §8's S6: size is non-increasing
// in q on average.
func TestQuantizerMonotonicityOnDemand(t *testing.T) {
	src := gradientRaster(64, 64)
	st := NewState(64, 64)
	qs := []int{10, 40, 80, 120}
	var sizes []int
	for _, q := range qs {
		r := Encode(src, st, true, header.Quantizer{YACQI: q}, true, true)
		sizes = append(sizes, len(r.Bytes))
	}
	if sizes[len(sizes)-1] > sizes[0] {
		t.Errorf("size at q=120 (%d) exceeds size at q=10 (%d)", sizes[len(sizes)-1], sizes[0])
	}
}
