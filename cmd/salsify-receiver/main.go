/*
NAME
  main.go

DESCRIPTION
  main.go is salsify-receiver (§6): PORT WIDTH HEIGHT plus
  --fullscreen/--verbose. It listens on PORT, addressing whichever
  sender's connection_id it first observes, reassembles fragments into
  frames, applies each to the one decoder it tracks through
  statesync.DecoderCache, pushes the result to the display component,
  and acks every received packet (§4.9) with the decoder's current
  state and the complete_states the receiver has actually produced.

  Grounded on exp/rvcl/main.go's Logger-then-pipeline shape, adapted to
  this core's transport/statesync/vp8/display wiring.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Command salsify-receiver decodes and displays a received Salsify
// video stream (§6's salsify-receiver CLI).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"

	"github.com/salsifyvideo/core/display"
	"github.com/salsifyvideo/core/errkind"
	receiverconfig "github.com/salsifyvideo/core/receiver/config"
	"github.com/salsifyvideo/core/statesync"
	"github.com/salsifyvideo/core/transport"
)

const pkg = "salsify-receiver: "

// logPath, logMaxSize, logMaxBackup and logMaxAge mirror cmd/rv's
// lumberjack-backed file rotation.
const (
	logPath      = "/var/log/salsify/receiver.log"
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

	level := logging.Info
	if cfg.Verbose {
		level = logging.Debug
	}
	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(level, io.MultiWriter(os.Stderr, fileLog), true)
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

func parseArgs(args []string) (receiverconfig.Config, error) {
	fs := flag.NewFlagSet("salsify-receiver", flag.ContinueOnError)
	fullscreen := fs.Bool("fullscreen", false, "show the decoded stream in a fullscreen window")
	verbose := fs.Bool("verbose", false, "raise the logger's verbosity")

	if err := fs.Parse(args); err != nil {
		return receiverconfig.Config{}, err
	}
	pos := fs.Args()
	if len(pos) != 3 {
		return receiverconfig.Config{}, fmt.Errorf("want 3 positional args (PORT WIDTH HEIGHT), got %d", len(pos))
	}

	port, err := strconv.Atoi(pos[0])
	if err != nil {
		return receiverconfig.Config{}, fmt.Errorf("PORT: %w", err)
	}
	width, err := strconv.Atoi(pos[1])
	if err != nil {
		return receiverconfig.Config{}, fmt.Errorf("WIDTH: %w", err)
	}
	height, err := strconv.Atoi(pos[2])
	if err != nil {
		return receiverconfig.Config{}, fmt.Errorf("HEIGHT: %w", err)
	}

	return receiverconfig.Config{
		Port:       port,
		Width:      width,
		Height:     height,
		Fullscreen: *fullscreen,
		Verbose:    *verbose,
	}, nil
}

func run(cfg receiverconfig.Config, log logging.Logger) error {
	conn, err := transport.Listen(cfg.Port)
	if err != nil {
		return errkind.Wrap(errkind.Internal, "listen", err)
	}
	defer conn.Close()

	disp := openDisplay(cfg, log)
	defer disp.Close()

	loop := &receiverLoop{
		cfg:      cfg,
		log:      log,
		conn:     conn,
		decoders: statesync.NewDecoderCache(),
		complete: statesync.NewCompleteStates(),
		display:  disp,
	}
	return loop.run()
}

// openDisplay honors §6's DISPLAY environment note: without a display
// server to talk to, gocv's window creation would fail the whole
// process, so the receiver falls back to a no-op display and keeps
// decoding and acking.
func openDisplay(cfg receiverconfig.Config, log logging.Logger) display.Display {
	if os.Getenv("DISPLAY") == "" {
		log.Warning("DISPLAY not set, running headless (decoded frames will not be shown)")
		return display.Null{}
	}
	return display.NewWindow("salsify", cfg.Fullscreen, log)
}

// receiverLoop is §5's receiver-side single-threaded event loop: read
// one datagram, reassemble, decode what completed, ack the packet just
// received. The decoder itself runs synchronously here (§5 accepts
// this: "decoding one ~1ms frame between poll iterations is
// acceptable"); only the display consumes frames off this goroutine.
type receiverLoop struct {
	cfg      receiverconfig.Config
	log      logging.Logger
	conn     *transport.Conn
	decoders *statesync.DecoderCache
	complete *statesync.CompleteStates
	display  display.Display
}

func (l *receiverLoop) run() error {
	for {
		now := time.Now()
		f, outcome, complete, flushed, err := l.conn.ReceiveFragment(now)
		if err != nil {
			if errkind.Is(err, errkind.Invalid) {
				l.log.Error("receive fragment", "err", err)
				continue
			}
			return errkind.Wrap(errkind.Transient, "receive fragment", err)
		}

		switch outcome {
		case transport.OutcomeComplete:
			l.applyFrame(f.SourceMinihash, complete)
		case transport.OutcomeFlushed:
			for _, ff := range flushed {
				l.applyFrame(ff.SourceMinihash, ff.Bytes)
			}
		}

		if err := l.ack(f); err != nil {
			l.log.Error("send ack", "err", err)
		}
	}
}

// applyFrame selects the decoder whose state matches sourceMinihash and
// decodes frameBytes against it, recovering locally on any error per
// §7's Invalid/CacheMiss propagation policy (confined to the frame that
// caused them).
func (l *receiverLoop) applyFrame(sourceMinihash uint32, frameBytes []byte) {
	d, err := l.decoders.Select(sourceMinihash)
	if err != nil {
		l.log.Debug("decoder cache miss, dropping frame", "err", err)
		return
	}
	decoded, err := d.DecodeFrame(frameBytes)
	if err != nil {
		l.log.Error("decode frame", "err", err)
		return
	}
	l.complete.MarkComplete(decoded.Minihash)
	l.display.Push(decoded.Picture)
}

// ack reports the packet just received, the decoder's current state
// and the receiver's own complete_states list, per §4.9's one-ack-per-
// received-packet rule.
func (l *receiverLoop) ack(f transport.Fragment) error {
	return l.conn.SendAck(transport.Ack{
		ConnectionID:         f.ConnectionID,
		FrameNo:              f.FrameNo,
		FragmentNo:           f.FragmentNo,
		AvgDelayMicros:       l.conn.AvgDelayMicros(),
		CurrentStateMinihash: uint32(l.decoders.CurrentMinihash()),
		CompleteStates:       l.complete.List(),
	})
}
