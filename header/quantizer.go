/*
NAME
  quantizer.go

DESCRIPTION
  quantizer.go implements the fixed dc_qlookup/ac_qlookup tables and the
  derived-quantizer computation of §4.3: the six effective dequantizers
  (y_ac, y_dc, y2_ac, y2_dc, uv_ac, uv_dc) obtained by clamping
  y_ac_qi + delta to [0,127], indexing the lookup tables, then applying
  VP8's scaling (y2_ac *= 155/100 with a minimum of 8; y2_dc *= 2;
  uv_dc capped at 132), plus the per-segment variants under absolute or
  relative update mode.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package header

// dcQLookup and acQLookup are the 128-entry VP8 quantizer-index to
// dequantization-factor tables.
var dcQLookup = [128]int16{
	4, 5, 6, 7, 8, 9, 10, 10, 11, 12, 13, 14, 15, 16, 17, 17,
	18, 19, 20, 20, 21, 21, 22, 22, 23, 23, 24, 25, 25, 26, 27, 28,
	29, 30, 31, 32, 33, 34, 35, 36, 37, 37, 38, 39, 40, 41, 42, 43,
	44, 45, 46, 46, 47, 48, 49, 50, 51, 52, 53, 54, 55, 56, 57, 58,
	59, 60, 61, 62, 63, 64, 65, 66, 67, 68, 69, 70, 71, 72, 73, 74,
	75, 76, 76, 77, 78, 79, 80, 81, 82, 83, 84, 85, 86, 87, 88, 89,
	91, 93, 95, 96, 98, 100, 101, 102, 104, 106, 108, 110, 112, 114, 116, 118,
	122, 124, 126, 128, 130, 132, 134, 136, 138, 140, 143, 145, 148, 151, 154, 157,
}

var acQLookup = [128]int16{
	4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19,
	20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32, 33, 34, 35,
	36, 37, 38, 39, 40, 41, 42, 43, 44, 45, 46, 47, 48, 49, 50, 51,
	52, 53, 54, 55, 56, 57, 58, 60, 62, 64, 66, 68, 70, 72, 74, 76,
	78, 80, 82, 84, 86, 88, 90, 92, 94, 96, 98, 100, 102, 104, 106, 108,
	110, 112, 114, 116, 119, 122, 125, 128, 131, 134, 137, 140, 143, 146, 149, 152,
	155, 158, 161, 164, 167, 170, 173, 177, 181, 185, 189, 193, 197, 201, 205, 209,
	213, 217, 221, 225, 229, 234, 239, 245, 249, 254, 259, 264, 269, 274, 279, 284,
}

func clampQI(qi int) int {
	if qi < 0 {
		return 0
	}
	if qi > 127 {
		return 127
	}
	return qi
}

// Dequantizers holds the six effective dequantization factors for one
// macroblock or segment.
type Dequantizers struct {
	YDC, YAC   int16
	Y2DC, Y2AC int16
	UVDC, UVAC int16
}

// Derive computes the base (non-segment) Dequantizers from the header's
// quantizer indices and deltas.
func Derive(q Quantizer) Dequantizers {
	yac := clampQI(q.YACQI)
	return deriveFrom(yac, q.YDCDelta, q.Y2DCDelta, q.Y2ACDelta, q.UVDCDelta, q.UVACDelta)
}

// DeriveSegment computes the Dequantizers for segment i, honoring the
// segmentation's absolute/relative update mode. Negative absolute values
// are invalid and must be rejected by the caller before this is called.
func DeriveSegment(q Quantizer, seg *Segmentation, i int) Dequantizers {
	if seg == nil || !seg.Enabled {
		return Derive(q)
	}
	yac := q.YACQI
	if seg.AbsoluteValues {
		yac = int(seg.Quantizer[i])
	} else {
		yac += int(seg.Quantizer[i])
	}
	return deriveFrom(clampQI(yac), q.YDCDelta, q.Y2DCDelta, q.Y2ACDelta, q.UVDCDelta, q.UVACDelta)
}

func deriveFrom(yacQI int, ydcDelta, y2dcDelta, y2acDelta, uvdcDelta, uvacDelta int) Dequantizers {
	ydc := dcQLookup[clampQI(yacQI+ydcDelta)]
	yac := acQLookup[yacQI]
	y2dc := dcQLookup[clampQI(yacQI+y2dcDelta)] * 2
	y2ac := int16(int32(acQLookup[clampQI(yacQI+y2acDelta)]) * 155 / 100)
	if y2ac < 8 {
		y2ac = 8
	}
	uvdc := dcQLookup[clampQI(yacQI+uvdcDelta)]
	if uvdc > 132 {
		uvdc = 132
	}
	uvac := acQLookup[clampQI(yacQI+uvacDelta)]
	return Dequantizers{YDC: ydc, YAC: yac, Y2DC: y2dc, Y2AC: y2ac, UVDC: uvdc, UVAC: uvac}
}
