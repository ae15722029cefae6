/*
NAME
  socket.go

DESCRIPTION
  socket.go wires the fragmenter, pacer, delay estimator and reassembler
  to a real UDP socket, tuning its send/receive buffers per §4.9's
  "single sendmsg call drains all currently due packets" note.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package transport

import (
	"net"
	"time"

	"github.com/ausocean/utils/bitrate"
	"golang.org/x/sys/unix"
)

const sockBufBytes = 1 << 20 // 1MiB; generous enough for a 100ms capacity window of 1400B fragments

// Conn is one UDP endpoint, paced on send and reassembling on receive.
// Its own fields are accessed only from the owning event-loop task (§5);
// it performs no internal locking.
type Conn struct {
	sock *net.UDPConn

	// remote is the peer address a Listen-side Conn sends to: nil until
	// the receiver has observed its first datagram, per §6's "addresses
	// any sender matching a connection_id it first sees". A Dial-side
	// Conn leaves this nil and writes via the connected socket instead.
	remote *net.UDPAddr

	frag  *Fragmenter
	pace  *Pacer
	delay DelayEstimator
	asm   *Reassembler
	rate  bitrate.Calculator
}

// Dial opens a UDP socket to addr and tunes its buffers for the
// connection's one sender or one receiver role.
func Dial(addr *net.UDPAddr, connID uint16) (*Conn, error) {
	sock, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	tuneBuffers(sock)
	return &Conn{
		sock: sock,
		frag: NewFragmenter(connID),
		pace: NewPacer(),
		asm:  NewReassembler(),
	}, nil
}

// Listen opens a UDP socket bound to port for the receiver side. The
// socket is left unconnected: the receiver learns its peer's address
// from the first fragment it reads (see ReceiveFragment) rather than
// requiring it up front.
func Listen(port int) (*Conn, error) {
	sock, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}
	tuneBuffers(sock)
	return &Conn{
		sock: sock,
		pace: NewPacer(),
		asm:  NewReassembler(),
	}, nil
}

// RemoteAddr reports the peer address learned from the first received
// fragment, or nil if none has arrived yet.
func (c *Conn) RemoteAddr() *net.UDPAddr { return c.remote }

func tuneBuffers(sock *net.UDPConn) {
	raw, err := sock.SyscallConn()
	if err != nil {
		return
	}
	raw.Control(func(fd uintptr) {
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, sockBufBytes)
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, sockBufBytes)
	})
}

// EnqueueFrame fragments frameBytes and pushes its fragments onto the
// pacer; it does not send them (the caller drains due fragments on its
// own poll cadence, per §5's event-loop model).
func (c *Conn) EnqueueFrame(frameNo, sourceMinihash, targetMinihash uint32, frameBytes []byte, now time.Time) {
	for _, f := range c.frag.Split(frameNo, sourceMinihash, targetMinihash, frameBytes, now) {
		c.pace.Push(f, now)
	}
}

// SendDue writes every currently-due fragment in a single batch of
// socket writes, reporting each datagram's size to the bitrate
// calculator for diagnostics.
func (c *Conn) SendDue(now time.Time) (int, error) {
	due := c.pace.DrainDue(now)
	for _, f := range due {
		b := f.Marshal()
		if err := c.write(b); err != nil {
			return 0, err
		}
		c.rate.Report(len(b))
	}
	return len(due), nil
}

// write sends b to the connected peer (Dial side) or to the learned
// remote address (Listen side).
func (c *Conn) write(b []byte) error {
	if c.remote != nil {
		_, err := c.sock.WriteToUDP(b, c.remote)
		return err
	}
	_, err := c.sock.Write(b)
	return err
}

// Bitrate returns the sender's most recently computed outbound bitrate.
func (c *Conn) Bitrate() float64 { return c.rate.Bitrate() }

// PacerEmpty reports whether every enqueued fragment has been sent.
func (c *Conn) PacerEmpty() bool { return c.pace.Empty() }

// NextDue returns the due time of the pacer's front fragment, letting a
// caller's event loop sleep until it is worth polling SendDue again.
func (c *Conn) NextDue() (time.Time, bool) { return c.pace.NextDue() }

// ReceiveFragment reads one datagram, parses it, and feeds it to the
// reassembler, also updating the inter-arrival delay estimate.
func (c *Conn) ReceiveFragment(now time.Time) (Fragment, Outcome, []byte, []FlushedFrame, error) {
	buf := make([]byte, maxPayload+fragHeaderSz)
	n, from, err := c.sock.ReadFromUDP(buf)
	if err != nil {
		return Fragment{}, OutcomeNone, nil, nil, err
	}
	if c.remote == nil {
		c.remote = from
	}
	f, err := UnmarshalFragment(buf[:n])
	if err != nil {
		return Fragment{}, OutcomeNone, nil, nil, err
	}
	c.delay.Observe(now)
	outcome, complete, flushed := c.asm.Receive(f)
	return f, outcome, complete, flushed, nil
}

// AvgDelayMicros returns the receiver's current inter-arrival delay
// estimate, reported back to the sender in every ack.
func (c *Conn) AvgDelayMicros() uint32 { return c.delay.AvgMicros() }

// SendAck writes an ack datagram immediately (acks are not paced; §4.9
// requires one per received packet).
func (c *Conn) SendAck(a Ack) error {
	return c.write(a.Marshal())
}

// SetPacerAvgDelay updates the sender's pacing interval from an ack's
// reported avg_delay_us.
func (c *Conn) SetPacerAvgDelay(avgDelayUs uint32) { c.pace.SetAvgDelay(avgDelayUs) }

// ReceiveAck reads and parses one ack datagram, the sender-side
// counterpart to ReceiveFragment.
func (c *Conn) ReceiveAck() (Ack, error) {
	buf := make([]byte, ackHeaderSz+4*1024)
	n, err := c.sock.Read(buf)
	if err != nil {
		return Ack{}, err
	}
	return UnmarshalAck(buf[:n])
}

// SetReadDeadline exposes the underlying socket's read deadline so
// callers can poll for acks without blocking the event loop forever.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.sock.SetReadDeadline(t) }

// Close releases the underlying socket.
func (c *Conn) Close() error { return c.sock.Close() }
