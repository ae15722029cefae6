/*
NAME
  ssim.go

DESCRIPTION
  ssim.go computes the structural similarity index between two rasters'
  luma planes over non-overlapping 8x8 windows, using gonum/stat's
  mean/variance/covariance primitives. Used by the encoder's MINIMUM_SSIM
  quantizer search (§4.7) and exposed standalone for the S6 boundary
  scenario (measuring similarity beyond the encoder's own contract).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package ssim computes the structural similarity index (SSIM) between
// two rasters, the similarity scalar the quantizer search and the S6
// test scenario both depend on.
package ssim

import (
	"gonum.org/v1/gonum/stat"

	"github.com/salsifyvideo/core/raster"
)

const window = 8

// Default stabilization constants for 8-bit samples (Wang et al., 2004).
const (
	k1, k2   = 0.01, 0.03
	sampMax  = 255.0
	c1       = (k1 * sampMax) * (k1 * sampMax)
	c2       = (k2 * sampMax) * (k2 * sampMax)
)

// Compute returns the mean SSIM over a's and b's luma planes, windowed in
// non-overlapping 8x8 blocks covering a's displayable area. a and b must have equal dimensions; callers compare rasters
// captured/decoded at the same resolution.
func Compute(a, b *raster.Raster) float64 {
	w, h := a.Width(), a.Height()
	var sum float64
	var n int
	for y := 0; y+window <= h; y += window {
		for x := 0; x+window <= w; x += window {
			sum += windowSSIM(a.Y, b.Y, x, y)
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

func windowSSIM(pa, pb *raster.Plane, x, y int) float64 {
	va := make([]float64, 0, window*window)
	vb := make([]float64, 0, window*window)
	for r := 0; r < window; r++ {
		for c := 0; c < window; c++ {
			va = append(va, float64(pa.At(x+c, y+r)))
			vb = append(vb, float64(pb.At(x+c, y+r)))
		}
	}
	mu1 := stat.Mean(va, nil)
	mu2 := stat.Mean(vb, nil)
	var1 := stat.Variance(va, nil)
	var2 := stat.Variance(vb, nil)
	covar := stat.Covariance(va, vb, nil)

	num := (2*mu1*mu2 + c1) * (2*covar + c2)
	den := (mu1*mu1 + mu2*mu2 + c1) * (var1 + var2 + c2)
	if den == 0 {
		return 1
	}
	return num / den
}
