/*
NAME
  tree.go

DESCRIPTION
  tree.go provides free functions over BoolEncoder/BoolDecoder for
  encoding and decoding one alphabet value against a binary tree and
  probability array, used directly by the entropy round-trip testable
  property in §8.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package entropy

// TreeEncode encodes value against tree t and probabilities p into a fresh
// bitstream and returns the flushed bytes.
func TreeEncode(value int, t []TreeNode, p []Prob) []byte {
	e := NewBoolEncoder()
	e.PutTree(value, t, p)
	return e.Flush()
}

// TreeDecode decodes one alphabet value from bits against tree t and
// probabilities p.
func TreeDecode(bits []byte, t []TreeNode, p []Prob) int {
	d := NewBoolDecoder(bits)
	return d.Tree(t, p)
}
