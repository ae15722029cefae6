/*
NAME
  diagnostics.go

DESCRIPTION
  diagnostics.go implements the sender's --log-mem-usage flag (§6):
  periodic logging of runtime.MemStats through the same Logger
  interface the rest of the core uses.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package diagnostics provides optional runtime self-monitoring for the
// sender and receiver commands.
package diagnostics

import (
	"runtime"
	"time"

	"github.com/ausocean/utils/logging"
)

// MemLogger periodically logs runtime.MemStats through l, grounded on
// config.Config.Logger's logging.Logger interface used throughout the
// rest of the core.
type MemLogger struct {
	log    logging.Logger
	period time.Duration
	stop   chan struct{}
}

// NewMemLogger returns a MemLogger that, once started, logs memory
// statistics every period.
func NewMemLogger(l logging.Logger, period time.Duration) *MemLogger {
	return &MemLogger{log: l, period: period, stop: make(chan struct{})}
}

// Start begins the logging goroutine. Stop ends it.
func (m *MemLogger) Start() {
	go func() {
		ticker := time.NewTicker(m.period)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.logOnce()
			}
		}
	}()
}

// Stop ends the logging goroutine. Safe to call once.
func (m *MemLogger) Stop() { close(m.stop) }

func (m *MemLogger) logOnce() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.log.Info("memory usage",
		"allocBytes", ms.Alloc,
		"totalAllocBytes", ms.TotalAlloc,
		"sysBytes", ms.Sys,
		"numGC", ms.NumGC,
		"goroutines", runtime.NumGoroutine(),
	)
}
