/*
NAME
  webcam.go

DESCRIPTION
  webcam.go implements source.Source over a live camera device, piping
  raw frames from ffmpeg exactly as the teacher's device/webcam does,
  but converting each frame into a raster.Raster instead of handing back
  an encoded access unit. The per-pixel-format conversion (NV12, YUYV,
  YU12) is grounded on original_source/src/input/camera.cc's v4l2
  frame-layout switch; MJPG frames are decoded with the standard
  library's image/jpeg, since no third-party JPEG decoder appears
  anywhere in the retrieval pack (ausocean-av's own codec/jpeg only
  lexes/extracts frame boundaries from a bitstream, it does not decode
  pixels).

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package webcam adapts a live camera, read through an ffmpeg pipe, to
// source.Source.
package webcam

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os/exec"

	"github.com/ausocean/utils/logging"

	"github.com/salsifyvideo/core/raster"
)

// PixFmt is one of the sender CLI's --pixfmt values (§6).
type PixFmt int

const (
	NV12 PixFmt = iota
	YUYV
	YU12
	MJPG
)

// Config configures a Source's capture device and format.
type Config struct {
	InputPath string
	Width     int
	Height    int
	FrameRate int
	PixFmt    PixFmt
}

// Source captures rasters from a camera device via an ffmpeg subprocess,
// grounded on device/webcam.Webcam's cmd/pipe lifecycle.
type Source struct {
	cfg Config
	log logging.Logger

	cmd       *exec.Cmd
	out       io.ReadCloser
	br        *bufio.Reader
	isRunning bool
}

// New returns a Source for cfg, logging through l.
func New(cfg Config, l logging.Logger) *Source {
	return &Source{cfg: cfg, log: l}
}

func (s *Source) Name() string { return "Webcam" }

func pixFmtArg(p PixFmt) string {
	switch p {
	case NV12:
		return "nv12"
	case YUYV:
		return "yuyv422"
	case YU12:
		return "yuv420p"
	case MJPG:
		return "mjpeg"
	default:
		return "yuv420p"
	}
}

func (s *Source) Start() error {
	args := []string{
		"-f", "v4l2",
		"-input_format", pixFmtArg(s.cfg.PixFmt),
		"-video_size", fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
		"-framerate", fmt.Sprint(s.cfg.FrameRate),
		"-i", s.cfg.InputPath,
		"-f", "rawvideo",
	}
	if s.cfg.PixFmt != MJPG {
		args = append(args, "-pix_fmt", "yuv420p")
	}
	args = append(args, "-")

	s.cmd = exec.Command("ffmpeg", args...)
	out, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("webcam: failed to create pipe: %w", err)
	}
	s.out = out
	s.br = bufio.NewReaderSize(out, 1<<20)

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("webcam: failed to start ffmpeg: %w", err)
	}
	s.isRunning = true
	s.log.Info("webcam started", "device", s.cfg.InputPath)
	return nil
}

func (s *Source) Stop() error {
	if !s.isRunning {
		return nil
	}
	s.isRunning = false
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	return s.out.Close()
}

func (s *Source) IsRunning() bool { return s.isRunning }

// Next reads and decodes the next camera frame.
func (s *Source) Next() (*raster.Raster, error) {
	if !s.isRunning {
		return nil, io.ErrClosedPipe
	}
	if s.cfg.PixFmt == MJPG {
		return s.nextMJPG()
	}
	return s.nextPlanar()
}

func (s *Source) nextMJPG() (*raster.Raster, error) {
	img, err := jpeg.Decode(s.br)
	if err != nil {
		return nil, err
	}
	yc, ok := img.(*image.YCbCr)
	if !ok || yc.SubsampleRatio != image.YCbCrSubsampleRatio420 {
		return nil, fmt.Errorf("webcam: unsupported jpeg color layout %T", img)
	}
	return raster.FromYCbCr(yc), nil
}

// nextPlanar reads one frame already converted to yuv420p by ffmpeg
// (-pix_fmt yuv420p covers both YU12 and NV12 source formats; ffmpeg
// performs the NV12/YUYV-to-planar conversion camera.cc does by hand).
func (s *Source) nextPlanar() (*raster.Raster, error) {
	w, h := s.cfg.Width, s.cfg.Height
	cw, ch := (w+1)/2, (h+1)/2
	frameLen := w*h + 2*cw*ch
	buf := make([]byte, frameLen)
	if _, err := io.ReadFull(s.br, buf); err != nil {
		return nil, err
	}
	out := raster.New(w, h)
	writePlane(out.Y, buf[:w*h], w)
	writePlane(out.U, buf[w*h:w*h+cw*ch], cw)
	writePlane(out.V, buf[w*h+cw*ch:], cw)
	out.ExtendEdges()
	return out, nil
}

func writePlane(p *raster.Plane, data []byte, stride int) {
	for y := 0; y < p.DisplayH; y++ {
		row := data[y*stride : y*stride+p.DisplayW]
		for x, v := range row {
			p.Set(x, y, v)
		}
	}
}
