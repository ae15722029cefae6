/*
NAME
  source.go

DESCRIPTION
  source.go defines Source, the frame-input abstraction the sender's
  event loop polls for captured rasters (§5's "capture frame" suspension
  point), generalizing the teacher's AVDevice interface from a raw byte
  stream to a raster stream.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package source provides Source, the sender's frame-input abstraction,
// and its file and webcam implementations.
package source

import "github.com/salsifyvideo/core/raster"

// Source is a configurable frame input the sender can start and stop,
// grounded on device.AVDevice's Name/Set/Start/Stop/IsRunning shape but
// adapted to hand back decoded rasters directly instead of an
// io.Reader byte stream, since every Salsify source (Y4M file, webcam)
// ultimately produces a raster, not an encoded access unit.
type Source interface {
	// Name returns the source's name, for logging.
	Name() string

	// Start begins capture; Next may be called only after Start succeeds.
	Start() error

	// Stop ends capture. Further Next calls return an error.
	Stop() error

	// IsRunning reports whether Start has been called without a matching
	// Stop.
	IsRunning() bool

	// Next blocks until a raster is available, returning io.EOF once the
	// source is exhausted (e.g. end of a Y4M file).
	Next() (*raster.Raster, error)
}
