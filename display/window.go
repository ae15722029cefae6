/*
NAME
  window.go

DESCRIPTION
  window.go is the gocv-backed Display: one gocv.Window fed through a
  Queue, converting each decoded raster to an RGB gocv.Mat the same way
  filter/debug.go converts a frame for its own debug windows
  (image.Image -> gocv.ImageToMatRGB). --fullscreen maps to gocv's
  fullscreen window property.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package display

import (
	"github.com/ausocean/utils/logging"
	"gocv.io/x/gocv"

	"github.com/salsifyvideo/core/raster"
)

// Window shows decoded rasters in an on-screen gocv window.
type Window struct {
	win   *gocv.Window
	queue *Queue
	log   logging.Logger
}

// NewWindow opens a window titled name and starts its consumer
// goroutine. If fullscreen is set, the window is switched to gocv's
// fullscreen property immediately.
func NewWindow(name string, fullscreen bool, log logging.Logger) *Window {
	win := gocv.NewWindow(name)
	if fullscreen {
		win.SetWindowProperty(gocv.WindowPropertyFullscreen, gocv.WindowFullscreen)
	}
	w := &Window{win: win, log: log}
	w.queue = NewQueue(w.show, w.warnBacklog)
	return w
}

func (w *Window) show(r *raster.Raster) {
	mat, err := gocv.ImageToMatRGB(r.YCbCr())
	if err != nil {
		w.log.Error("convert decoded frame for display", "err", err)
		return
	}
	defer mat.Close()
	w.win.IMShow(mat)
	w.win.WaitKey(1)
}

func (w *Window) warnBacklog(n int) {
	w.log.Warning("display queue backlog growing", "frames", n)
}

// Push hands r to the display thread.
func (w *Window) Push(r *raster.Raster) { w.queue.Push(r) }

// Close stops the consumer and releases the window.
func (w *Window) Close() error {
	w.queue.Close()
	return w.win.Close()
}
