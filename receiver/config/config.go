/*
NAME
  config.go

DESCRIPTION
  config.go provides the receiver's configuration settings (§6's
  salsify-receiver CLI), adapted from revid/config.Config's flat
  field-plus-defaulting-comment style.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package config holds the salsify-receiver configuration.
package config

import (
	"github.com/ausocean/utils/logging"
)

// Config holds salsify-receiver's parameters: the positional
// PORT/WIDTH/HEIGHT arguments plus the documented flags (§6).
type Config struct {
	Port          int
	Width, Height int

	// Fullscreen requests a fullscreen display window (--fullscreen).
	Fullscreen bool

	// Verbose raises the logger's verbosity (--verbose).
	Verbose bool

	// Logger must be set for the receiver to run.
	Logger logging.Logger
}

// Validate reports any missing required field through c.Logger, the
// same defaulting convention as sender/config.Config.
func (c *Config) Validate() error {
	if c.Width == 0 || c.Height == 0 {
		c.logDefault("Width/Height", "640x480")
		if c.Width == 0 {
			c.Width = 640
		}
		if c.Height == 0 {
			c.Height = 480
		}
	}
	return nil
}

func (c *Config) logDefault(name string, def interface{}) {
	if c.Logger == nil {
		return
	}
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
