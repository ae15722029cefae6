/*
NAME
  ivf.go

DESCRIPTION
  ivf.go reads and writes the IVF container used for file-based testing
  (§6): a 32-byte "DKIF" header followed by {length:32, pts:64,
  bytes:length} per frame.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package ivf reads and writes the IVF frame container (§6), used to
// store compressed test clips independent of the transport.
package ivf

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/salsifyvideo/core/errkind"
)

const (
	headerLen      = 32
	frameHeaderLen = 12
	fourCC         = "VP80"
)

// Header is an IVF file's fixed 32-byte preamble.
type Header struct {
	Width, Height        uint16
	FrameRate, TimeScale uint32
	FrameCount           uint32
}

// WriteHeader writes the 32-byte IVF header to w.
func WriteHeader(w io.Writer, h Header) error {
	buf := make([]byte, headerLen)
	copy(buf[0:4], "DKIF")
	binary.LittleEndian.PutUint16(buf[4:6], 0) // version
	binary.LittleEndian.PutUint16(buf[6:8], headerLen)
	copy(buf[8:12], fourCC)
	binary.LittleEndian.PutUint16(buf[12:14], h.Width)
	binary.LittleEndian.PutUint16(buf[14:16], h.Height)
	binary.LittleEndian.PutUint32(buf[16:20], h.FrameRate)
	binary.LittleEndian.PutUint32(buf[20:24], h.TimeScale)
	binary.LittleEndian.PutUint32(buf[24:28], h.FrameCount)
	_, err := w.Write(buf)
	return err
}

// WriteFrame writes one frame's {length, pts, bytes} record to w.
func WriteFrame(w io.Writer, pts uint64, frame []byte) error {
	buf := make([]byte, frameHeaderLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(frame)))
	binary.LittleEndian.PutUint64(buf[4:12], pts)
	if _, err := w.Write(buf); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}

// Reader sequentially reads frames from an IVF stream.
type Reader struct {
	r      io.Reader
	Header Header
}

// NewReader parses the IVF header from r and returns a Reader positioned
// at the first frame.
func NewReader(r io.Reader) (*Reader, error) {
	buf := make([]byte, headerLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errkind.Invalidf("read ivf header", "%v", err)
	}
	if string(buf[0:4]) != "DKIF" {
		return nil, errkind.Invalidf("read ivf header", "not an IVF file")
	}
	if binary.LittleEndian.Uint16(buf[4:6]) != 0 {
		return nil, errkind.Unsupportedf("read ivf header", "unsupported IVF version")
	}
	hdrLen := binary.LittleEndian.Uint16(buf[6:8])
	if hdrLen != headerLen {
		return nil, errkind.Unsupportedf("read ivf header", "unsupported IVF header length %d", hdrLen)
	}
	return &Reader{
		r: r,
		Header: Header{
			Width:      binary.LittleEndian.Uint16(buf[12:14]),
			Height:     binary.LittleEndian.Uint16(buf[14:16]),
			FrameRate:  binary.LittleEndian.Uint32(buf[16:20]),
			TimeScale:  binary.LittleEndian.Uint32(buf[20:24]),
			FrameCount: binary.LittleEndian.Uint32(buf[24:28]),
		},
	}, nil
}

// ReadFrame reads the next frame's bytes and presentation timestamp. It
// returns io.EOF once the stream is exhausted.
func (r *Reader) ReadFrame() ([]byte, uint64, error) {
	hdr := make([]byte, frameHeaderLen)
	if _, err := io.ReadFull(r.r, hdr); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, errkind.Invalidf("read ivf frame", "truncated frame header")
		}
		return nil, 0, err
	}
	length := binary.LittleEndian.Uint32(hdr[0:4])
	pts := binary.LittleEndian.Uint64(hdr[4:12])
	frame := make([]byte, length)
	if _, err := io.ReadFull(r.r, frame); err != nil {
		return nil, 0, errkind.Invalidf("read ivf frame", "truncated frame payload")
	}
	return frame, pts, nil
}
