/*
NAME
  y4mfile.go

DESCRIPTION
  y4mfile.go implements source.Source over a YUV4MPEG2 file, the
  sender's INPUT_Y4M_PATH (§6).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package y4mfile adapts a YUV4MPEG2 file to source.Source.
package y4mfile

import (
	"io"
	"os"

	"github.com/salsifyvideo/core/container/y4m"
	"github.com/salsifyvideo/core/raster"
)

// Source reads sequential rasters from a Y4M file on disk, grounded on
// device/file's small open-on-Start/close-on-Stop lifecycle.
type Source struct {
	path      string
	f         *os.File
	r         *y4m.Reader
	isRunning bool
}

// New returns a Source for the Y4M file at path.
func New(path string) *Source {
	return &Source{path: path}
}

func (s *Source) Name() string { return "Y4MFile" }

func (s *Source) Start() error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	r, err := y4m.NewReader(f)
	if err != nil {
		f.Close()
		return err
	}
	s.f = f
	s.r = r
	s.isRunning = true
	return nil
}

func (s *Source) Stop() error {
	if !s.isRunning {
		return nil
	}
	s.isRunning = false
	return s.f.Close()
}

func (s *Source) IsRunning() bool { return s.isRunning }

// Next returns the next frame, or io.EOF at end of file.
func (s *Source) Next() (*raster.Raster, error) {
	if !s.isRunning {
		return nil, io.ErrClosedPipe
	}
	return s.r.ReadFrame()
}

// Width and Height report the stream's raster dimensions, valid after
// Start.
func (s *Source) Width() int  { return s.r.Header.Width }
func (s *Source) Height() int { return s.r.Header.Height }
