/*
NAME
  config.go

DESCRIPTION
  config.go provides the sender's configuration settings (§6's
  salsify-sender CLI), adapted from revid/config.Config's flat
  field-plus-defaulting-comment style.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package config holds the salsify-sender configuration.
package config

import (
	"github.com/ausocean/utils/logging"
)

// Mode selects the controller's per-frame candidate strategy (§4.8).
type Mode int

const (
	// Conventional encodes against the controller's own last-sent state,
	// as S1 does; the sender still runs the improve/fail-small pair for
	// it, and there is no single-encode path.
	Conventional Mode = iota
	// S1 runs the improve/fail-small pair, each against the controller's
	// own last-sent state.
	S1
	// S2 runs the improve/fail-small pair, each against the freshest
	// state the receiver has acknowledged complete.
	S2
)

// PixFmt mirrors source/webcam.PixFmt for the --pixfmt flag, duplicated
// here (rather than imported) so this package does not pull in the
// webcam source (and its ffmpeg/image dependency) merely to parse a
// flag value.
type PixFmt int

const (
	NV12 PixFmt = iota
	YUYV
	YU12
	MJPG
)

// Config holds salsify-sender's parameters: the positional
// INPUT_Y4M_PATH/QUANTIZER/HOST/PORT/CONNECTION_ID arguments plus the
// documented flags (§6).
type Config struct {
	// InputPath is either a Y4M file path or, when Device is set, ignored
	// in favor of the live camera.
	InputPath string

	// Quantizer is the initial y_ac_qi, used as the controller's
	// last_used_q before any ack has been observed.
	Quantizer uint8

	Host         string
	Port         int
	ConnectionID uint16

	// Mode selects the controller strategy (--mode).
	Mode Mode

	// Device, if nonempty, captures from a live camera instead of
	// InputPath (--device).
	Device string

	// PixFmt is the camera's pixel format when Device is set (--pixfmt).
	PixFmt PixFmt

	// UpdateRate bounds how many frames per second the sender attempts
	// to capture and encode (--update-rate).
	UpdateRate uint

	// LogMemUsage enables periodic runtime.MemStats logging
	// (--log-mem-usage).
	LogMemUsage bool

	Width, Height int

	// Logger must be set for the sender to run.
	Logger logging.Logger
}

// defaultUpdateRate is used whenever UpdateRate is left at zero.
const defaultUpdateRate = 24

// Validate defaults any unset fields and reports the values it
// defaulted through c.Logger, mirroring revid/config.Config's
// defaulting convention. The live-reconfiguration Variables table that
// pattern also provides is not carried over: it exists to receive
// updates from ausocean's netsender HTTP control plane, which has no
// counterpart here.
func (c *Config) Validate() error {
	if c.UpdateRate == 0 {
		c.logDefault("UpdateRate", defaultUpdateRate)
		c.UpdateRate = defaultUpdateRate
	}
	if c.Quantizer == 0 {
		c.logDefault("Quantizer", 63)
		c.Quantizer = 63
	}
	return nil
}

func (c *Config) logDefault(name string, def interface{}) {
	if c.Logger == nil {
		return
	}
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
