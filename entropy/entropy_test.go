/*
NAME
  entropy_test.go

DESCRIPTION
  entropy_test.go exercises the entropy round-trip testable properties of
  §8: encode/decode must agree for raw bits at arbitrary probabilities and
  for tree-coded alphabet values, and a decoder must tolerate reads past
  the end of its input rather than erroring.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package entropy

import "testing"

func TestBoolRoundTrip(t *testing.T) {
	bits := []int{1, 0, 1, 1, 0, 0, 0, 1, 1, 1, 0, 1, 0, 0, 1, 0}
	probs := []Prob{1, 255, 128, 64, 192, 30, 225, 100, 1, 254, 128, 128, 77, 200, 3, 99}

	e := NewBoolEncoder()
	for i, b := range bits {
		e.Put(b, probs[i])
	}
	buf := e.Flush()

	d := NewBoolDecoder(buf)
	for i, want := range bits {
		got := d.Get(probs[i])
		if got != want {
			t.Fatalf("bit %d: got %d, want %d", i, got, want)
		}
	}
}

func TestUintSignedRoundTrip(t *testing.T) {
	e := NewBoolEncoder()
	e.PutUint(0x2a, 7)
	e.PutSigned(-13, 5)
	e.PutSigned(13, 5)
	e.PutFlag(true)
	e.PutFlag(false)
	buf := e.Flush()

	d := NewBoolDecoder(buf)
	if got := d.Uint(7); got != 0x2a {
		t.Errorf("Uint: got %d, want %d", got, 0x2a)
	}
	if got := d.Signed(5); got != -13 {
		t.Errorf("Signed(-13): got %d", got)
	}
	if got := d.Signed(5); got != 13 {
		t.Errorf("Signed(13): got %d", got)
	}
	if got := d.Flag(); got != true {
		t.Errorf("Flag(true): got %v", got)
	}
	if got := d.Flag(); got != false {
		t.Errorf("Flag(false): got %v", got)
	}
}

// TestTreeRoundTrip exercises §8's tree round-trip law against a small
// three-leaf tree shaped like VP8's simplest mode trees.
func TestTreeRoundTrip(t *testing.T) {
	// Tree: node 0 branches to leaf "A" (0) or subtree at 2; node 2
	// branches to leaf "B" (1) or leaf "C" (2).
	tree := []TreeNode{-0, 2, -1, -2}
	probs := []Prob{200, 100}

	for _, v := range []int{0, 1, 2} {
		bits := TreeEncode(v, tree, probs)
		got := TreeDecode(bits, tree, probs)
		if got != v {
			t.Errorf("tree round trip for %d: got %d", v, got)
		}
	}
}

// TestReadPastEnd exercises §4.2/§9's "reads past the end of input yield
// zero bytes" behavior: the decoder must not panic or error, and the
// OnPastEnd hook must fire exactly once.
func TestReadPastEnd(t *testing.T) {
	d := NewBoolDecoder([]byte{0xAA})
	fired := 0
	d.OnPastEnd = func() { fired++ }

	for i := 0; i < 64; i++ {
		d.Bit()
	}
	if fired != 1 {
		t.Errorf("OnPastEnd fired %d times, want exactly 1", fired)
	}
}
