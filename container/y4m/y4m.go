/*
NAME
  y4m.go

DESCRIPTION
  y4m.go reads and writes the YUV4MPEG2 ("Y4M") raw raster container
  (§6), used as the sender's INPUT_Y4M_PATH and for round-trip test
  clips. Only 4:2:0 color spaces are supported, matching the original
  tool's own stated scope.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package y4m reads and writes the YUV4MPEG2 raster container.
package y4m

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/salsifyvideo/core/errkind"
	"github.com/salsifyvideo/core/raster"
)

const magic = "YUV4MPEG2"

// Header describes a Y4M stream's fixed parameters, parsed once from the
// leading "YUV4MPEG2 ..." line.
type Header struct {
	Width, Height               int
	FPSNumerator, FPSDenominator int
}

// Reader reads sequential rasters from a Y4M stream.
type Reader struct {
	br     *bufio.Reader
	Header Header
}

// NewReader parses a Y4M header line from r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil {
		return nil, errkind.Invalidf("read y4m header", "%v", err)
	}
	fields := strings.Fields(strings.TrimRight(line, "\n"))
	if len(fields) == 0 || fields[0] != magic {
		return nil, errkind.Invalidf("read y4m header", "invalid YUV4MPEG2 magic code")
	}

	var h Header
	for _, tok := range fields[1:] {
		if tok == "" {
			continue
		}
		switch tok[0] {
		case 'W':
			h.Width, err = strconv.Atoi(tok[1:])
		case 'H':
			h.Height, err = strconv.Atoi(tok[1:])
		case 'F':
			h.FPSNumerator, h.FPSDenominator, err = parseFraction(tok[1:])
		case 'I', 'A':
			// interlacing mode / pixel aspect ratio: accepted, not interpreted.
		case 'C':
			if !strings.HasPrefix(tok, "C420") {
				return nil, errkind.Unsupportedf("read y4m header", "only 4:2:0 color spaces are supported, got %q", tok)
			}
		case 'X':
			// comment
		default:
			return nil, errkind.Invalidf("read y4m header", "invalid stream header field %q", tok)
		}
		if err != nil {
			return nil, errkind.Invalidf("read y4m header", "%v", err)
		}
	}
	if h.Width == 0 || h.Height == 0 {
		return nil, errkind.Invalidf("read y4m header", "width or height missing")
	}
	return &Reader{br: br, Header: h}, nil
}

func parseFraction(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid fraction %q", s)
	}
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	den, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return num, den, nil
}

// ReadFrame reads the next "FRAME" marker and raster, returning io.EOF
// once the stream is exhausted.
func (r *Reader) ReadFrame() (*raster.Raster, error) {
	line, err := r.br.ReadString('\n')
	if err == io.EOF && line == "" {
		return nil, io.EOF
	}
	if err != nil && err != io.EOF {
		return nil, errkind.Invalidf("read y4m frame", "%v", err)
	}
	if !strings.HasPrefix(line, "FRAME") {
		return nil, errkind.Invalidf("read y4m frame", "expected FRAME marker, got %q", line)
	}

	out := raster.New(r.Header.Width, r.Header.Height)
	if err := readPlane(r.br, out.Y); err != nil {
		return nil, err
	}
	if err := readPlane(r.br, out.U); err != nil {
		return nil, err
	}
	if err := readPlane(r.br, out.V); err != nil {
		return nil, err
	}
	out.ExtendEdges()
	return out, nil
}

func readPlane(r io.Reader, p *raster.Plane) error {
	row := make([]byte, p.DisplayW)
	for y := 0; y < p.DisplayH; y++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return errkind.Invalidf("read y4m frame", "truncated plane data: %v", err)
		}
		for x, v := range row {
			p.Set(x, y, v)
		}
	}
	return nil
}

// WriteHeader writes the "YUV4MPEG2 ..." header line for 4:2:0,
// progressive, square-pixel content.
func WriteHeader(w io.Writer, h Header) error {
	_, err := fmt.Fprintf(w, "YUV4MPEG2 W%d H%d F%d:%d Ip A1:1 C420\n",
		h.Width, h.Height, h.FPSNumerator, h.FPSDenominator)
	return err
}

// WriteFrame writes one "FRAME" marker and raster's raw planes to w.
func WriteFrame(w io.Writer, r *raster.Raster) error {
	if _, err := io.WriteString(w, "FRAME\n"); err != nil {
		return err
	}
	for _, p := range []*raster.Plane{r.Y, r.U, r.V} {
		if err := writePlane(w, p); err != nil {
			return err
		}
	}
	return nil
}

func writePlane(w io.Writer, p *raster.Plane) error {
	row := make([]byte, p.DisplayW)
	for y := 0; y < p.DisplayH; y++ {
		for x := range row {
			row[x] = p.At(x, y)
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
