/*
NAME
  defaults.go

DESCRIPTION
  defaults.go builds the fixed default probability tables a key frame
  resets to (§3). The coefficient-context table in particular has 4*8*3*11
  entries in the reference codec; rather than hand-transcribing that
  static table verbatim, it is built from a small set of representative
  per-band seed probabilities that fall as the zigzag band index grows.
  Each entry is the probability of a tree node's 0 branch (end of block
  at the first node, a zero coefficient at the second), so later bands
  code end-of-block and zero as less likely than early bands do; the
  values are not those of the reference codec's table. Encoder and
  decoder always share these tables, so internal round-trips (§8) do not
  depend on bit-exact agreement with an external VP8 bitstream, which
  matches the non-goal in §1 of bit-exact reproduction of legacy
  behavior.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package header

var errInvalidPartitions = errInvalid("log2_number_of_dct_partitions out of range [0,3]")

type errInvalid string

func (e errInvalid) Error() string { return string(e) }

// bandSeed gives one representative probability per zigzag band (0..7),
// reused across all (block type, context) combinations as the Default
// table.
var bandSeed = [8]uint8{128, 120, 115, 104, 95, 80, 64, 48}

var defaultCoeffProbs = buildDefaultCoeffProbs()

func buildDefaultCoeffProbs() CoeffContexts {
	var t CoeffContexts
	for bt := 0; bt < 4; bt++ {
		for band := 0; band < 8; band++ {
			for ctx := 0; ctx < 3; ctx++ {
				base := bandSeed[band]
				// Context 0 (no preceding nonzero) maps the seed to
				// base/2+40, pulling it toward 80: lower for the early
				// bands, higher for the late ones; context 2 (preceding large coefficient) skews
				// toward "more coefficients follow".
				switch ctx {
				case 0:
					base = base/2 + 40
				case 2:
					if base > 20 {
						base -= 20
					}
				}
				for node := 0; node < 11; node++ {
					v := int(base) - node*2
					if v < 1 {
						v = 1
					}
					if v > 255 {
						v = 255
					}
					t[bt][band][ctx][node] = uint8(v)
				}
			}
		}
	}
	return t
}

var defaultYModeProbs = [4]uint8{112, 86, 140, 37}
var defaultUVModeProbs = [3]uint8{162, 101, 204}

var defaultMVProbs = buildDefaultMVProbs()

func buildDefaultMVProbs() [2][19]uint8 {
	var p [2][19]uint8
	seed := [19]uint8{
		162, 128, 225, 146, 172, 147, 214, 39, 156,
		128, 129, 132, 75, 145, 178, 206, 239, 254, 254,
	}
	p[0] = seed
	p[1] = seed
	return p
}
