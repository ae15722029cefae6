/*
NAME
  coeff.go

DESCRIPTION
  coeff.go parses and serializes one coefficient block's token stream
  (§3, §4.3): 16 signed coefficients in zigzag order, tagged with a block
  type in {Y_after_Y2, Y_without_Y2, UV, Y2}, decoded against the
  coefficient-branch probability table indexed by [block type][band]
  [previous-token context][node], carrying a has_nonzero flag used as the
  left/above neighbor context for the next block.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package vp8

import (
	"github.com/salsifyvideo/core/entropy"
	"github.com/salsifyvideo/core/header"
)

// BlockType indexes the coefficient-branch probability table's first
// dimension.
type BlockType int

const (
	BlockYAfterY2 BlockType = iota
	BlockYWithoutY2
	BlockUV
	BlockY2
)

// coeffTree is VP8's 12-leaf coefficient token tree: EOB, ZERO, ONE, TWO,
// THREE, FOUR, and six Cat-N escape tokens for larger magnitudes.
var coeffTree = []entropy.TreeNode{
	0, 2,
	-1, 4,
	-2, 6,
	8, 12,
	-3, 10,
	-4, -5,
	14, 16,
	-6, -7,
	18, 20,
	-8, -9,
	-10, -11,
}

const (
	tokenEOB  = 0
	token0    = 1
	token1    = 2
	token2    = 3
	token3    = 4
	token4    = 5
	tokenCat1 = 6
	tokenCat2 = 7
	tokenCat3 = 8
	tokenCat4 = 9
	tokenCat5 = 10
	tokenCat6 = 11
)

var catBase = map[int]struct {
	base  int32
	extra int
}{
	6:  {5, 1},
	7:  {7, 2},
	8:  {11, 3},
	9:  {19, 4},
	10: {35, 5},
	11: {67, 11},
}

// coeffBand maps a zigzag scan position (0..15) to one of 8 probability
// bands.
var coeffBand = [16]int{0, 1, 2, 3, 6, 4, 5, 6, 6, 6, 6, 6, 6, 6, 6, 7}

// zigzag is the default VP8 zigzag scan order over a 4x4 block.
var zigzag = [16]int{0, 1, 4, 8, 5, 2, 3, 6, 9, 12, 13, 10, 7, 11, 14, 15}

// CoeffBlock holds one block's 16 coefficients in natural (de-scanned) row
// major order plus its has_nonzero flag.
type CoeffBlock struct {
	Coeffs     [16]int32
	HasNonzero bool
	LastNonzero int // zigzag index of the last nonzero coefficient, -1 if none
}

// ParseCoeffBlock decodes one coefficient block. firstCoeff is 0 normally
// and 1 for Y_after_Y2 blocks (whose zigzag position 0 carries the Y2 DC
// instead). ctx is 0/1/2 from the left/above neighbor's has_nonzero count.
func ParseCoeffBlock(d *entropy.BoolDecoder, probs *header.CoeffContexts, bt BlockType, ctx int, firstCoeff int) CoeffBlock {
	var block CoeffBlock
	block.LastNonzero = -1

	i := firstCoeff
	for i < 16 {
		band := coeffBand[i]
		p := probs[bt][band][ctx][:]
		tok := d.Tree(coeffTree, p)
		if tok == tokenEOB {
			break
		}
		var v int32
		switch tok {
		case token0:
			v = 0
		case token1:
			v = 1
		case token2:
			v = 2
		case token3:
			v = 3
		case token4:
			v = 4
		default:
			c := catBase[tok]
			v = c.base
			for b := 0; b < c.extra; b++ {
				v += int32(d.Bit()) << uint(c.extra-1-b)
			}
		}
		if v != 0 {
			if d.Bit() != 0 {
				v = -v
			}
			block.HasNonzero = true
			block.LastNonzero = i
		}
		block.Coeffs[zigzag[i]] = v

		if v == 0 {
			ctx = 0
		} else if v == 1 || v == -1 {
			ctx = 1
		} else {
			ctx = 2
		}
		i++
	}
	return block
}

// EncodeCoeffBlock is the inverse of ParseCoeffBlock: it emits the token
// stream for a 16-coefficient natural-order block (already de-scanned, as
// produced by quantization) plus a terminating EOB when the remaining
// coefficients are all zero.
func EncodeCoeffBlock(e *entropy.BoolEncoder, probs *header.CoeffContexts, bt BlockType, ctx int, firstCoeff int, coeffs [16]int32, lastNonzero int) {
	i := firstCoeff
	for i < 16 {
		band := coeffBand[i]
		p := probs[bt][band][ctx][:]

		v := coeffs[zigzag[i]]
		if i > lastNonzero {
			e.PutTree(tokenEOB, coeffTree, p)
			return
		}

		switch {
		case v == 0:
			e.PutTree(token0, coeffTree, p)
			ctx = 0
		case v == 1 || v == -1:
			e.PutTree(token1, coeffTree, p)
			e.PutBit(boolToInt(v < 0))
			ctx = 1
		case v == 2 || v == -2:
			e.PutTree(token2, coeffTree, p)
			e.PutBit(boolToInt(v < 0))
			ctx = 2
		case v == 3 || v == -3:
			e.PutTree(token3, coeffTree, p)
			e.PutBit(boolToInt(v < 0))
			ctx = 2
		case v == 4 || v == -4:
			e.PutTree(token4, coeffTree, p)
			e.PutBit(boolToInt(v < 0))
			ctx = 2
		default:
			mag := v
			if mag < 0 {
				mag = -mag
			}
			tok, extra := categoryFor(mag)
			e.PutTree(tok, coeffTree, p)
			c := catBase[tok]
			rem := mag - c.base
			for b := extra - 1; b >= 0; b-- {
				e.PutBit(int((rem >> uint(b)) & 1))
			}
			e.PutBit(boolToInt(v < 0))
			ctx = 2
		}
		i++
	}
}

func categoryFor(mag int32) (int, int) {
	switch {
	case mag <= 6:
		return tokenCat1, 1
	case mag <= 10:
		return tokenCat2, 2
	case mag <= 18:
		return tokenCat3, 3
	case mag <= 34:
		return tokenCat4, 4
	case mag <= 66:
		return tokenCat5, 5
	default:
		return tokenCat6, 11
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
