/*
NAME
  transport_test.go

DESCRIPTION
  transport_test.go exercises §8's S3 (fragment reassembly), S5 (pacer
  clamp), and the wire/capacity testable properties.

AUTHORS
  Salsify core contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package transport

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFragmentWireRoundTrip(t *testing.T) {
	f := Fragment{
		ConnectionID:         7,
		SourceMinihash:       0x11223344,
		TargetMinihash:       0x55667788,
		FrameNo:              42,
		FragmentNo:           1,
		FragmentsInThisFrame: 3,
		TimeSinceLastMicros:  12345,
		Payload:              []byte("hello fragment"),
	}
	got, err := UnmarshalFragment(f.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(f, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFragmentEmptyPayloadRejected(t *testing.T) {
	f := Fragment{FragmentsInThisFrame: 1}
	_, err := UnmarshalFragment(f.Marshal())
	if err == nil {
		t.Fatal("expected an error for an empty-payload fragment")
	}
}

func TestAckWireRoundTrip(t *testing.T) {
	a := Ack{
		ConnectionID:         3,
		FrameNo:              9,
		FragmentNo:           2,
		AvgDelayMicros:       900,
		CurrentStateMinihash: 0xdeadbeef,
		CompleteStates:       []uint32{1, 2, 3},
	}
	got, err := UnmarshalAck(a.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.CompleteStates) != 3 || got.CompleteStates[2] != 3 {
		t.Errorf("complete_states mismatch: %v", got.CompleteStates)
	}
	if got.CurrentStateMinihash != a.CurrentStateMinihash {
		t.Errorf("current_state mismatch: got %x, want %x", got.CurrentStateMinihash, a.CurrentStateMinihash)
	}
}

// TestFragmentSplitSizes is §8's S3: a 3000-byte frame splits into
// exactly 3 fragments sized {1400, 1400, 200}.
func TestFragmentSplitSizes(t *testing.T) {
	frame := make([]byte, 3000)
	fr := NewFragmenter(1)
	frags := fr.Split(0, 0xA, 0xB, frame, time.Now())
	if len(frags) != 3 {
		t.Fatalf("got %d fragments, want 3", len(frags))
	}
	wantSizes := []int{1400, 1400, 200}
	for i, f := range frags {
		if len(f.Payload) != wantSizes[i] {
			t.Errorf("fragment %d: got %d bytes, want %d", i, len(f.Payload), wantSizes[i])
		}
		if int(f.FragmentsInThisFrame) != 3 || int(f.FragmentNo) != i {
			t.Errorf("fragment %d: bad header fields %+v", i, f)
		}
	}
}

// TestReassemblyOutOfOrder is §8's S3: fragments delivered out of order
// {2, 0, 1} reassemble to the original bytes, completing only on the
// final delivery.
func TestReassemblyOutOfOrder(t *testing.T) {
	frame := make([]byte, 3000)
	for i := range frame {
		frame[i] = byte(i)
	}
	fr := NewFragmenter(1)
	frags := fr.Split(0, 0xA, 0xB, frame, time.Now())

	r := NewReassembler()
	order := []int{2, 0, 1}
	var complete []byte
	var outcome Outcome
	for i, idx := range order {
		outcome, complete, _ = r.Receive(frags[idx])
		if i < len(order)-1 && outcome == OutcomeComplete {
			t.Fatalf("completed early after delivering fragment %d", idx)
		}
	}
	if outcome != OutcomeComplete {
		t.Fatalf("final outcome = %v, want OutcomeComplete", outcome)
	}
	if !bytes.Equal(complete, frame) {
		t.Error("reassembled frame does not match original")
	}
}

func TestReassemblyDropsStale(t *testing.T) {
	r := NewReassembler()
	r.nextExpected = 5
	outcome, _, _ := r.Receive(Fragment{FrameNo: 3, FragmentsInThisFrame: 1, Payload: []byte{1}})
	if outcome != OutcomeDropped {
		t.Errorf("got %v, want OutcomeDropped", outcome)
	}
}

func TestReassemblyFlushPrevious(t *testing.T) {
	r := NewReassembler()
	// Frame 0 arrives partially (1 of 2 fragments).
	r.Receive(Fragment{FrameNo: 0, FragmentNo: 0, FragmentsInThisFrame: 2, Payload: []byte{1, 2}})
	// Frame 1 arrives complete, jumping past frame 0.
	outcome, _, flushed := r.Receive(Fragment{FrameNo: 1, FragmentNo: 0, FragmentsInThisFrame: 1, Payload: []byte{9}})
	if outcome != OutcomeFlushed {
		t.Fatalf("got %v, want OutcomeFlushed", outcome)
	}
	if len(flushed) != 1 || flushed[0].FrameNo != 0 || !bytes.Equal(flushed[0].Bytes, []byte{1, 2}) {
		t.Errorf("unexpected flushed frames: %+v", flushed)
	}
}

// TestPacerClamp is §8's S5: inter-send delay is clamped to [500µs,
// 2000µs] regardless of the reported average delay.
func TestPacerClamp(t *testing.T) {
	p := NewPacer()
	p.SetAvgDelay(100)
	if p.interSend != minInterSend {
		t.Errorf("low avg_delay: got %v, want %v", p.interSend, minInterSend)
	}
	p.SetAvgDelay(20000)
	if p.interSend != maxInterSend {
		t.Errorf("high avg_delay: got %v, want %v", p.interSend, maxInterSend)
	}
}

func TestPacerNextDueWithinBound(t *testing.T) {
	p := NewPacer()
	p.SetAvgDelay(1500)
	now := time.Now()
	p.Push(Fragment{Payload: []byte{1}}, now)
	p.Push(Fragment{Payload: []byte{2}}, now)
	due, ok := p.NextDue()
	if !ok {
		t.Fatal("expected a pending fragment")
	}
	if due.After(now.Add(2000 * time.Microsecond)) {
		t.Errorf("front due time %v exceeds now+2000us bound", due)
	}
}

func TestCapacityEstimate(t *testing.T) {
	// avg_delay_us = 100000 (== MAX_DELAY_US), no fragments in flight:
	// budget is exactly 1 frame's worth.
	if got := CapacityEstimate(100000, 0); got != maxPayload {
		t.Errorf("got %d, want %d", got, maxPayload)
	}
	// More fragments in flight than the delay budget allows: capacity
	// floors at zero rather than going negative.
	if got := CapacityEstimate(100000, 10); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
	if got := CapacityEstimate(0, 0); got != 0 {
		t.Errorf("zero avg_delay should yield 0 capacity, got %d", got)
	}
}

func TestDelayEstimatorResetOnGap(t *testing.T) {
	var d DelayEstimator
	base := time.Now()
	d.Observe(base)
	d.Observe(base.Add(1 * time.Millisecond))
	avgBefore := d.AvgMicros()
	if avgBefore == 0 {
		t.Fatal("expected a nonzero average after two close samples")
	}
	// A gap over 200ms must reset (replace), not blend.
	after := d.Observe(base.Add(1*time.Millisecond + 300*time.Millisecond))
	if after != 300000 {
		t.Errorf("got %d after a >200ms gap, want a reset to the raw sample (300000)", after)
	}
}
