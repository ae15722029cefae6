/*
NAME
  image.go

DESCRIPTION
  image.go converts a Raster to and from the standard library's
  image.YCbCr. The Raster->YCbCr direction is what the display component
  (out of scope per §1, named interface only) needs to hand a decoded
  frame to an image/Mat-based window; the reverse direction and Downscale
  back this package's rasters onto golang.org/x/image/draw, which the
  encoder's TARGET_FRAME_SIZE quantizer search (§4.7) uses to build its
  quarter-resolution size-estimation proxy.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package raster

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// YCbCr returns an image.YCbCr view of r's displayable rectangle in
// 4:2:0 subsampling, copying out of the stored (macroblock-aligned)
// planes since image.YCbCr's stride must match its own Rect.
func (r *Raster) YCbCr() *image.YCbCr {
	w, h := r.Width(), r.Height()
	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	for y := 0; y < h; y++ {
		copy(img.Y[y*img.YStride:y*img.YStride+w], r.Y.Row(y, 0, w))
	}
	cw, ch := (w+1)/2, (h+1)/2
	for y := 0; y < ch; y++ {
		copy(img.Cb[y*img.CStride:y*img.CStride+cw], r.U.Row(y, 0, cw))
		copy(img.Cr[y*img.CStride:y*img.CStride+cw], r.V.Row(y, 0, cw))
	}
	return img
}

// FromYCbCr builds a Raster from a 4:2:0 image.YCbCr, the inverse of
// YCbCr. img's subsample ratio must be 4:2:0; any other ratio is a
// programmer error since this core never handles other chroma layouts
// (§1's fixed profile).
func FromYCbCr(img *image.YCbCr) *Raster {
	if img.SubsampleRatio != image.YCbCrSubsampleRatio420 {
		panic("raster: FromYCbCr requires 4:2:0 subsampling")
	}
	b := img.Rect
	w, h := b.Dx(), b.Dy()
	r := New(w, h)
	for y := 0; y < h; y++ {
		off := img.YOffset(b.Min.X, b.Min.Y+y)
		copy(r.Y.Row(y, 0, w), img.Y[off:off+w])
	}
	cw, ch := (w+1)/2, (h+1)/2
	for y := 0; y < ch; y++ {
		off := img.COffset(b.Min.X, b.Min.Y+y)
		copy(r.U.Row(y, 0, cw), img.Cb[off:off+cw])
		copy(r.V.Row(y, 0, cw), img.Cr[off:off+cw])
	}
	r.ExtendEdges()
	return r
}

// Downscale returns a new Raster holding r scaled to w x h using
// golang.org/x/image/draw's bilinear scaler, the proxy the encoder's
// TARGET_FRAME_SIZE quantizer search (§4.7) encodes in place of the
// full-resolution raster. image.YCbCr has no Set method, so the scaler
// runs in RGBA space (draw.Image requires Set) and the result is
// converted back to 4:2:0 by hand.
func Downscale(r *Raster, w, h int) *Raster {
	src := r.YCbCr()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)

	out := New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := dst.RGBAAt(x, y)
			yy, cb, cr := color.RGBToYCbCr(px.R, px.G, px.B)
			out.Y.Set(x, y, yy)
			if x%2 == 0 && y%2 == 0 {
				out.U.Set(x/2, y/2, cb)
				out.V.Set(x/2, y/2, cr)
			}
		}
	}
	out.ExtendEdges()
	return out
}
