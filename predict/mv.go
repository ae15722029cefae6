/*
NAME
  mv.go

DESCRIPTION
  mv.go defines the motion-vector type and the "census" that resolves
  NEAREST/NEAR/NEW by inspecting the above, left and above-left
  macroblocks, counting distinct nonzero vectors with weights {2,2,1},
  and classifying into 5 context bins (§4.4).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package predict

// MV is a motion vector in quarter-pel luma units.
type MV struct{ X, Y int16 }

// IsZero reports whether the vector is (0,0).
func (v MV) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Clamp restricts a candidate MV so the 6-tap filter footprint it implies
// stays within a safe border around the reference plane of size refW x
// refH for a block whose top-left sample sits at (blockCol, blockRow) in
// luma pixels.
func (v MV) Clamp(blockCol, blockRow, refW, refH int) MV {
	const border = 16 << 2 // safety margin in quarter-pel units
	minX := int16(-(blockCol<<2) - border)
	maxX := int16(((refW - blockCol) << 2) + border)
	minY := int16(-(blockRow<<2) - border)
	maxY := int16(((refH - blockRow) << 2) + border)
	x, y := v.X, v.Y
	if x < minX {
		x = minX
	} else if x > maxX {
		x = maxX
	}
	if y < minY {
		y = minY
	} else if y > maxY {
		y = maxY
	}
	return MV{X: x, Y: y}
}

// MVContext is one of the 5 bins the census classifies a macroblock's
// neighborhood into.
type MVContext int

const (
	CtxZero MVContext = iota
	CtxNearest
	CtxNear
	CtxSplit
	CtxNew
)

// Neighbor is one candidate neighboring macroblock's motion vector and
// whether it exists (off-frame neighbors are simply absent).
type Neighbor struct {
	MV      MV
	Present bool
	IsIntra bool // intra-coded neighbors contribute no motion vector
}

// Census inspects above, left and aboveLeft and returns the best
// (NEAREST) and second-best (NEAR) candidate vectors plus the context bin
// used to index the mode probability table, per §4.4. Weight is {2,2,1}
// for {above,left,aboveLeft} respectively.
func Census(above, left, aboveLeft Neighbor) (nearest, near MV, ctx MVContext) {
	type cand struct {
		v MV
		w int
	}
	var cands []cand
	add := func(n Neighbor, w int) {
		if !n.Present || n.IsIntra {
			return
		}
		for i := range cands {
			if cands[i].v == n.MV {
				cands[i].w += w
				return
			}
		}
		cands = append(cands, cand{v: n.MV, w: w})
	}
	add(above, 2)
	add(left, 2)
	add(aboveLeft, 1)

	// Sort candidates by descending weight (stable, small N so insertion
	// sort is sufficient and keeps first-seen order on ties).
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0 && cands[j].w > cands[j-1].w; j-- {
			cands[j], cands[j-1] = cands[j-1], cands[j]
		}
	}

	nonZero := 0
	for _, c := range cands {
		if !c.v.IsZero() {
			nonZero++
		}
	}

	switch {
	case len(cands) == 0 || (len(cands) == 1 && cands[0].v.IsZero()):
		ctx = CtxZero
	case nonZero == 0:
		ctx = CtxZero
	case len(cands) >= 1 && cands[0].w >= 3 && !cands[0].v.IsZero():
		ctx = CtxNearest
	case nonZero == 1:
		ctx = CtxNear
	default:
		ctx = CtxNew
	}

	if len(cands) > 0 {
		nearest = cands[0].v
	}
	if len(cands) > 1 {
		near = cands[1].v
	}
	return nearest, near, ctx
}

// ChromaMV derives the chroma vector for a 4x4 chroma subblock as the
// component-wise average of the four co-located luma subblock vectors,
// rounded toward zero, per §4.4's SPLITMV chroma rule.
func ChromaMV(luma [4]MV) MV {
	sumX, sumY := int32(0), int32(0)
	for _, v := range luma {
		sumX += int32(v.X)
		sumY += int32(v.Y)
	}
	return MV{X: int16(roundTowardZero(sumX, 4)), Y: int16(roundTowardZero(sumY, 4))}
}

func roundTowardZero(sum int32, n int32) int32 {
	q := sum / n
	// Go's integer division already truncates toward zero.
	return q
}

// SplitShape names one of the small fixed set of SPLITMV partition
// shapes.
type SplitShape int

const (
	SplitTwoHorizontal SplitShape = iota // top 8 rows / bottom 8 rows
	SplitTwoVertical                     // left 8 cols / right 8 cols
	SplitQuarters                        // four 8x8 quadrants
	SplitSixteenths                      // sixteen independent 4x4 subblocks
)

// SplitPartitions returns, for shape, the partition index (0..N-1) of each
// of the macroblock's 16 4x4 luma subblocks in raster order.
func SplitPartitions(shape SplitShape) [16]int {
	var out [16]int
	for i := 0; i < 16; i++ {
		col, row := i%4, i/4
		switch shape {
		case SplitTwoHorizontal:
			if row < 2 {
				out[i] = 0
			} else {
				out[i] = 1
			}
		case SplitTwoVertical:
			if col < 2 {
				out[i] = 0
			} else {
				out[i] = 1
			}
		case SplitQuarters:
			out[i] = (row/2)*2 + col/2
		case SplitSixteenths:
			out[i] = i
		}
	}
	return out
}

// NumPartitions reports how many distinct motion vectors shape assigns.
func NumPartitions(shape SplitShape) int {
	switch shape {
	case SplitTwoHorizontal, SplitTwoVertical:
		return 2
	case SplitQuarters:
		return 4
	default:
		return 16
	}
}
