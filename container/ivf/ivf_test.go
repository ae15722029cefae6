/*
NAME
  ivf_test.go

DESCRIPTION
  ivf_test.go exercises §8's IVF round-trip law: ivf_write(ivf_read(F))
  produces a file byte-equal to F.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package ivf

import (
	"bytes"
	"io"
	"testing"
)

func buildFile(t *testing.T, h Header, frames [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteHeader(&buf, h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	for i, f := range frames {
		if err := WriteFrame(&buf, uint64(i), f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	h := Header{Width: 640, Height: 480, FrameRate: 30, TimeScale: 1, FrameCount: 3}
	frames := [][]byte{
		bytes.Repeat([]byte{0xAA}, 10),
		bytes.Repeat([]byte{0xBB}, 0), // zero-length frame must round-trip too
		bytes.Repeat([]byte{0xCC}, 257),
	}
	orig := buildFile(t, h, frames)

	r, err := NewReader(bytes.NewReader(orig))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Header != h {
		t.Fatalf("got header %+v, want %+v", r.Header, h)
	}

	var got []byte
	buf := bytes.NewBuffer(got)
	if err := WriteHeader(buf, r.Header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	for {
		frame, pts, err := r.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if err := WriteFrame(buf, pts, frame); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	if !bytes.Equal(buf.Bytes(), orig) {
		t.Errorf("round trip mismatch: got %d bytes, want %d bytes", buf.Len(), len(orig))
	}
}

func TestRejectsBadMagic(t *testing.T) {
	_, err := NewReader(bytes.NewReader(make([]byte, 32)))
	if err == nil {
		t.Fatal("expected an error for a non-IVF header")
	}
}

func TestRejectsUnsupportedVersion(t *testing.T) {
	h := Header{}
	buf := buildFile(t, h, nil)
	buf[4] = 1 // version field
	_, err := NewReader(bytes.NewReader(buf))
	if err == nil {
		t.Fatal("expected an error for a non-zero IVF version")
	}
}
