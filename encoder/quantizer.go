/*
NAME
  quantizer.go

DESCRIPTION
  quantizer.go implements §4.7's three quantizer-selection modes on top
  of Encode: CONSTANT_QUANTIZER passes the caller's y_ac_qi straight
  through, MINIMUM_SSIM binary-searches y_ac_qi against ssim.Compute,
  and TARGET_FRAME_SIZE binary-searches against a fast size estimate
  (a quarter-resolution proxy encode, scaled by 16, per §4.7's Size
  Estimation note).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package encoder

import (
	"github.com/salsifyvideo/core/header"
	"github.com/salsifyvideo/core/raster"
	"github.com/salsifyvideo/core/ssim"
)

// QuantizerMode selects how SelectQuantizer picks y_ac_qi (§4.7).
type QuantizerMode int

const (
	// ConstantQuantizer uses the caller-supplied y_ac_qi unchanged.
	ConstantQuantizer QuantizerMode = iota
	// MinimumSSIM binary-searches for the largest y_ac_qi (most
	// compression) whose reconstruction still meets a target SSIM.
	MinimumSSIM
	// TargetFrameSize binary-searches for the y_ac_qi whose estimated
	// serialized size is closest to a target byte count.
	TargetFrameSize
)

// sizeEstimateDivisor is the downsample factor applied on each axis
// before the proxy encode; §4.7 specifies a quarter-width,
// quarter-height proxy (1/16 the pixel count), whose serialized length
// is then multiplied by 16 to approximate the full-resolution size.
const sizeEstimateDivisor = 4
const sizeEstimateScale = 16

// minQAC and maxQAC bound the binary search, matching the derived
// quantizer table's valid index range (§4.3).
const (
	minQAC = 0
	maxQAC = 127
)

// SelectQuantizer runs encode_frame under mode's search strategy and
// returns the chosen Result. target is interpreted per mode: for
// ConstantQuantizer it is unused (quant.YACQI is used directly); for
// MinimumSSIM it is a target SSIM in [0,1]; for TargetFrameSize it is a
// target serialized size in bytes.
func SelectQuantizer(mode QuantizerMode, source *raster.Raster, prev State, keyFrame bool, quant header.Quantizer, target float64, refreshEntropy, refreshLast bool) Result {
	switch mode {
	case MinimumSSIM:
		return selectBySSIM(source, prev, keyFrame, quant, target, refreshEntropy, refreshLast)
	case TargetFrameSize:
		return selectBySize(source, prev, keyFrame, quant, int(target), refreshEntropy, refreshLast)
	default:
		return Encode(source, prev, keyFrame, quant, refreshEntropy, refreshLast)
	}
}

// selectBySSIM binary-searches y_ac_qi for the highest quantizer (most
// compression) whose reconstruction still meets targetSSIM, per §4.7's
// MINIMUM_SSIM mode. SSIM is measured against each candidate's own
// Result.Picture, the reconstruction encode_frame already produced,
// rather than re-decoding the bitstream (§8's testable property 3
// guarantees the two are byte-identical, and Picture is valid for
// inter frames too, unlike decoding from a bare fresh decoder).
func selectBySSIM(source *raster.Raster, prev State, keyFrame bool, quant header.Quantizer, targetSSIM float64, refreshEntropy, refreshLast bool) Result {
	lo, hi := minQAC, maxQAC
	best := Encode(source, prev, keyFrame, withYAC(quant, hi), refreshEntropy, refreshLast)
	for lo <= hi {
		mid := (lo + hi) / 2
		result := Encode(source, prev, keyFrame, withYAC(quant, mid), refreshEntropy, refreshLast)
		if ssim.Compute(source, result.Picture) >= targetSSIM {
			best = result
			lo = mid + 1 // still meets target; try more compression.
		} else {
			hi = mid - 1 // too lossy; back off toward a lower qi.
		}
	}
	return best
}

// selectBySize binary-searches y_ac_qi for the estimated size closest
// to targetBytes, per §4.7's TARGET_FRAME_SIZE mode.
func selectBySize(source *raster.Raster, prev State, keyFrame bool, quant header.Quantizer, targetBytes int, refreshEntropy, refreshLast bool) Result {
	proxySource := raster.Downscale(source, (source.Width()+sizeEstimateDivisor-1)/sizeEstimateDivisor, (source.Height()+sizeEstimateDivisor-1)/sizeEstimateDivisor)
	proxyPrev := NewState(proxySource.Width(), proxySource.Height())
	if !keyFrame {
		proxyPrev.Probs = prev.Probs
	}

	lo, hi := minQAC, maxQAC
	bestQI := hi
	bestDiff := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		est := estimateSize(proxySource, proxyPrev, keyFrame, withYAC(quant, mid))
		diff := est - targetBytes
		if diff < 0 {
			diff = -diff
		}
		if bestDiff == -1 || diff < bestDiff {
			bestDiff = diff
			bestQI = mid
		}
		if est > targetBytes {
			lo = mid + 1 // too big; more compression.
		} else {
			hi = mid - 1
		}
	}
	return Encode(source, prev, keyFrame, withYAC(quant, bestQI), refreshEntropy, refreshLast)
}

// estimateSize encodes proxySource (already a quarter-resolution proxy)
// and scales the resulting byte count back up per §4.7's Size
// Estimation note.
func estimateSize(proxySource *raster.Raster, proxyPrev State, keyFrame bool, quant header.Quantizer) int {
	result := Encode(proxySource, proxyPrev, keyFrame, quant, false, true)
	return len(result.Bytes) * sizeEstimateScale
}

func withYAC(q header.Quantizer, yac int) header.Quantizer {
	q.YACQI = yac
	return q
}
