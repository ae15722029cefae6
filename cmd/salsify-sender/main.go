/*
NAME
  main.go

DESCRIPTION
  main.go is salsify-sender (§6): INPUT_Y4M_PATH QUANTIZER HOST PORT
  CONNECTION_ID plus --mode/--device/--pixfmt/--update-rate/--log-mem-usage.
  It drives the per-frame event loop described in §5: capture a raster,
  dispatch the controller's two speculative encodes (every --mode,
  conventional included, runs both; there is no single-encode path), pick a
  candidate against the current capacity estimate, and pace its
  fragments onto the UDP socket, all while draining acks to keep the
  controller's state cache and the pacer's delay estimate current.

  Grounded on exp/rvcl/main.go's "build the Logger, build the pipeline,
  run it, report a one-line error to stderr" shape, adapted from revid's
  config-driven device/sender wiring to this core's source/controller/
  transport wiring.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Command salsify-sender captures, encodes and transmits a Salsify
// video stream (§6's salsify-sender CLI).
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"

	"github.com/salsifyvideo/core/controller"
	"github.com/salsifyvideo/core/diagnostics"
	"github.com/salsifyvideo/core/encoder"
	"github.com/salsifyvideo/core/errkind"
	"github.com/salsifyvideo/core/header"
	"github.com/salsifyvideo/core/raster"
	senderconfig "github.com/salsifyvideo/core/sender/config"
	"github.com/salsifyvideo/core/source"
	"github.com/salsifyvideo/core/source/webcam"
	"github.com/salsifyvideo/core/source/y4mfile"
	"github.com/salsifyvideo/core/statesync"
	"github.com/salsifyvideo/core/transport"
	"github.com/salsifyvideo/core/vp8"
)

const pkg = "salsify-sender: "

// logPath, logMaxSize, logMaxBackup and logMaxAge mirror cmd/rv's
// lumberjack-backed file rotation.
const (
	logPath      = "/var/log/salsify/sender.log"
	logMaxSize   = 100 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
)

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, pkg+"args: "+err.Error())
		os.Exit(2)
	}

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(logging.Info, io.MultiWriter(os.Stderr, fileLog), true)
	cfg.Logger = log
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, pkg+"config: "+err.Error())
		os.Exit(2)
	}

	if err := run(cfg, log); err != nil {
		kind, _ := errkind.KindOf(err)
		fmt.Fprintf(os.Stderr, pkg+"%s: %v\n", kind, err)
		os.Exit(1)
	}
}

func parseArgs(args []string) (senderconfig.Config, error) {
	fs := flag.NewFlagSet("salsify-sender", flag.ContinueOnError)
	mode := fs.String("mode", "conventional", "s1|s2|conventional")
	device := fs.String("device", "", "capture from this camera device instead of INPUT_Y4M_PATH")
	pixfmt := fs.String("pixfmt", "YU12", "NV12|YUYV|YU12|MJPG, when --device is set")
	updateRate := fs.Uint("update-rate", 0, "target frames captured/encoded per second")
	logMem := fs.Bool("log-mem-usage", false, "periodically log runtime.MemStats")

	if err := fs.Parse(args); err != nil {
		return senderconfig.Config{}, err
	}
	pos := fs.Args()
	if len(pos) != 5 {
		return senderconfig.Config{}, fmt.Errorf("want 5 positional args (INPUT_Y4M_PATH QUANTIZER HOST PORT CONNECTION_ID), got %d", len(pos))
	}

	qi, err := strconv.Atoi(pos[1])
	if err != nil {
		return senderconfig.Config{}, fmt.Errorf("QUANTIZER: %w", err)
	}
	port, err := strconv.Atoi(pos[3])
	if err != nil {
		return senderconfig.Config{}, fmt.Errorf("PORT: %w", err)
	}
	connID, err := strconv.ParseUint(pos[4], 10, 16)
	if err != nil {
		return senderconfig.Config{}, fmt.Errorf("CONNECTION_ID: %w", err)
	}

	m, err := parseMode(*mode)
	if err != nil {
		return senderconfig.Config{}, err
	}
	pf, err := parsePixFmt(*pixfmt)
	if err != nil {
		return senderconfig.Config{}, err
	}

	return senderconfig.Config{
		InputPath:    pos[0],
		Quantizer:    uint8(qi),
		Host:         pos[2],
		Port:         port,
		ConnectionID: uint16(connID),
		Mode:         m,
		Device:       *device,
		PixFmt:       pf,
		UpdateRate:   *updateRate,
		LogMemUsage:  *logMem,
	}, nil
}

func parseMode(s string) (senderconfig.Mode, error) {
	switch s {
	case "conventional":
		return senderconfig.Conventional, nil
	case "s1":
		return senderconfig.S1, nil
	case "s2":
		return senderconfig.S2, nil
	default:
		return 0, fmt.Errorf("--mode: unknown value %q", s)
	}
}

func parsePixFmt(s string) (senderconfig.PixFmt, error) {
	switch s {
	case "NV12":
		return senderconfig.NV12, nil
	case "YUYV":
		return senderconfig.YUYV, nil
	case "YU12":
		return senderconfig.YU12, nil
	case "MJPG":
		return senderconfig.MJPG, nil
	default:
		return 0, fmt.Errorf("--pixfmt: unknown value %q", s)
	}
}

func run(cfg senderconfig.Config, log logging.Logger) error {
	deviceConfigPath := ""
	if senderconfig.IsDeviceConfigFile(cfg.Device) {
		deviceConfigPath = cfg.Device
		device, qi, err := senderconfig.ParseDeviceFile(cfg.Device)
		if err != nil {
			return errkind.Wrap(errkind.Internal, "read device config", err)
		}
		cfg.Device = device
		if qi != 0 {
			cfg.Quantizer = qi
		}
	}

	src, width, height, err := openSource(cfg, log)
	if err != nil {
		return errkind.Wrap(errkind.Internal, "open source", err)
	}
	defer src.Stop()

	if cfg.LogMemUsage {
		ml := diagnostics.NewMemLogger(log, 10*time.Second)
		ml.Start()
		defer ml.Stop()
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	if err != nil {
		return errkind.Wrap(errkind.Internal, "resolve address", err)
	}
	conn, err := transport.Dial(addr, cfg.ConnectionID)
	if err != nil {
		return errkind.Wrap(errkind.Transient, "dial", err)
	}
	defer conn.Close()

	ctrl := controller.New(encoder.NewState(width, height))
	loop := &senderLoop{cfg: cfg, log: log, src: src, conn: conn, ctrl: ctrl}
	loop.quantizer.Store(uint32(cfg.Quantizer))

	if deviceConfigPath != "" {
		w, err := senderconfig.WatchDeviceFile(deviceConfigPath, log, func(qi uint8) { loop.quantizer.Store(uint32(qi)) })
		if err != nil {
			log.Warning("device config watch unavailable", "err", err)
		} else {
			defer w.Close()
		}
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warning("sd_notify failed", "err", err)
	} else if ok {
		log.Debug("notified systemd of readiness")
	}

	return loop.run()
}

func openSource(cfg senderconfig.Config, log logging.Logger) (source.Source, int, int, error) {
	if cfg.Device != "" {
		wcfg := webcam.Config{
			InputPath: cfg.Device,
			Width:     cfg.Width,
			Height:    cfg.Height,
			FrameRate: int(cfg.UpdateRate),
			PixFmt:    webcam.PixFmt(cfg.PixFmt),
		}
		s := webcam.New(wcfg, log)
		if err := s.Start(); err != nil {
			return nil, 0, 0, err
		}
		return s, cfg.Width, cfg.Height, nil
	}

	s := y4mfile.New(cfg.InputPath)
	if err := s.Start(); err != nil {
		return nil, 0, 0, err
	}
	return s, s.Width(), s.Height(), nil
}

// senderLoop is the per-frame pipeline of §5: capture, speculative
// encode, pick, fragment, pace, and drain acks, all driven from one
// goroutine so the controller and connection are never touched
// concurrently (§5's "single-threaded event-loop task" owns both).
// The two speculative encodes of sendFrame are the sole exception:
// they run on their own goroutines but touch only their own cloned
// ReferenceSet, never the controller or connection.
type senderLoop struct {
	cfg  senderconfig.Config
	log  logging.Logger
	src  source.Source
	conn *transport.Conn
	ctrl *controller.Controller

	frameNo        uint32
	fragmentsSent  int
	fragmentsAcked int

	// lastAckedComplete is the most recently received ack's
	// complete_states list (oldest-first), used by Mode S2 to always
	// source the next pair of speculative encodes from the freshest
	// state the receiver has acknowledged complete.
	lastAckedComplete []vp8.Minihash

	// quantizer is the key-frame quantizer, live-reloadable from a
	// device-config file (senderconfig.WatchDeviceFile) without
	// restarting the sender.
	quantizer atomic.Uint32
}

func (l *senderLoop) run() error {
	for {
		r, err := l.src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errkind.Wrap(errkind.Transient, "capture frame", err)
		}

		if err := l.sendFrame(r); err != nil {
			return err
		}
		l.pump()
	}
}

// sendFrame runs the key-frame path for frame 0 and the controller's
// speculative dual-candidate path for every later frame (§4.8).
func (l *senderLoop) sendFrame(r *raster.Raster) error {
	now := time.Now()

	if l.frameNo == 0 {
		before, _ := l.ctrl.Lookup(l.ctrl.InitialMinihash())
		result := encoder.Encode(r, before, true, header.Quantizer{YACQI: int(l.quantizer.Load())}, true, true)
		l.transmit(before, result, now)
		return nil
	}

	before := l.sourceState(now)
	improveQI, failQI := l.ctrl.ImproveQI(), l.ctrl.FailSmallQI()

	improveState, failState := before, before
	improveState.Refs = before.Refs.Clone()
	failState.Refs = before.Refs.Clone()

	type encOut struct {
		res encoder.Result
	}
	improveCh := make(chan encOut, 1)
	failCh := make(chan encOut, 1)
	go func() {
		improveCh <- encOut{encoder.Encode(r, improveState, false, header.Quantizer{YACQI: improveQI}, true, true)}
	}()
	go func() {
		failCh <- encOut{encoder.Encode(r, failState, false, header.Quantizer{YACQI: failQI}, true, true)}
	}()
	improve := <-improveCh
	fail := <-failCh

	capacity := transport.CapacityEstimate(l.conn.AvgDelayMicros(), l.fragmentsSent-l.fragmentsAcked)
	decision := l.ctrl.Choose(improve.res, fail.res, improveQI, failQI, capacity)
	if !decision.Send {
		return nil
	}
	l.transmit(before, decision.Result, now)
	return nil
}

// sourceState picks the state this frame's speculative encodes should
// start from: Conventional and S1 use the controller's last-sent state
// (or, once conservative mode is active, the freshest acked-complete
// state); S2 always starts from the freshest acked-complete state,
// conservative mode or not (§4.8).
func (l *senderLoop) sourceState(now time.Time) encoder.State {
	if l.cfg.Mode == senderconfig.S2 {
		return l.ctrl.FreshestComplete(l.lastAckedComplete)
	}
	return l.ctrl.SourceState(now, l.ctrl.LastSent(), l.lastAckedComplete)
}

func (l *senderLoop) transmit(before encoder.State, result encoder.Result, now time.Time) {
	fh := statesync.BuildFrameHeader(before, result)
	l.conn.EnqueueFrame(l.frameNo, fh.SourceMinihash, fh.TargetMinihash, result.Bytes, now)
	l.frameNo++
}

// ackPollInterval bounds how long pump's non-blocking ack read waits
// before giving up for this iteration; it is intentionally short since
// pump also has due fragments to drain on every call.
const ackPollInterval = 2 * time.Millisecond

// pump drains every currently-due fragment, matching §4.9's "socket
// writable + pacer has a due packet" suspension point, then makes one
// non-blocking attempt to read a pending ack so the controller's cache
// and the pacer's delay estimate stay current without a second
// goroutine touching either (§5's single-threaded event-loop model).
func (l *senderLoop) pump() {
	for {
		now := time.Now()
		n, err := l.conn.SendDue(now)
		if err != nil {
			l.log.Error("send", "err", err)
			return
		}
		l.fragmentsSent += n

		l.drainAck()

		due, ok := l.conn.NextDue()
		if !ok || due.After(now) {
			return
		}
	}
}

// drainAck makes one bounded-wait attempt to read and apply a pending
// ack, doing nothing if none arrives within ackPollInterval.
func (l *senderLoop) drainAck() {
	if err := l.conn.SetReadDeadline(time.Now().Add(ackPollInterval)); err != nil {
		l.log.Error("set read deadline", "err", err)
		return
	}
	a, err := l.conn.ReceiveAck()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return
		}
		l.log.Error("receive ack", "err", err)
		return
	}

	l.fragmentsAcked++
	l.conn.SetPacerAvgDelay(a.AvgDelayMicros)

	complete := make([]vp8.Minihash, len(a.CompleteStates))
	for i, v := range a.CompleteStates {
		complete[i] = vp8.Minihash(v)
	}
	l.lastAckedComplete = complete
	l.ctrl.ObserveAck(time.Now(), vp8.Minihash(a.CurrentStateMinihash), complete)
}
