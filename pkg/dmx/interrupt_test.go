// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

func TestReceivePlainFrame(t *testing.T) {
	d, u, _ := newTestDriver(t, Config{})

	frame := make([]byte, 65)
	frame[0] = SCDMX
	for i := 1; i < len(frame); i++ {
		frame[i] = byte(i)
	}
	u.InjectBreak()
	settle()
	u.InjectRx(frame)
	settle()
	u.InjectBreak() // closes out the frame

	p, err := d.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if p.Err != nil || p.SC != SCDMX || p.Size != len(frame) || p.IsRDM {
		t.Fatalf("got %+v", p)
	}
	var got [65]byte
	d.Read(0, got[:])
	if got != [65]byte(frame) {
		t.Fatal("slot buffer does not hold the received frame")
	}
}

func TestReceiveFullBufferPublishesOnce(t *testing.T) {
	d, u, _ := newTestDriver(t, Config{})

	u.InjectBreak()
	settle()
	u.InjectRx(make([]byte, PacketSize+50))
	settle()

	p, err := d.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if p.Size != PacketSize || p.Err != nil {
		t.Fatalf("got %+v, want a clean %d byte frame", p, PacketSize)
	}
	// The 50 overrun bytes were discarded, not delivered as a frame.
	if _, err := d.Receive(20 * time.Millisecond); err != ErrTimeout {
		t.Fatalf("second Receive = %v, want ErrTimeout", err)
	}
}

func TestReceiveOverflow(t *testing.T) {
	d, u, _ := newTestDriver(t, Config{})

	u.InjectBreak()
	settle()
	u.InjectRx(make([]byte, 10))
	settle()
	u.InjectOverflow()

	p, err := d.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !errors.Is(p.Err, ErrOverflow) {
		t.Fatalf("Err = %v, want ErrOverflow", p.Err)
	}
	if p.SC != -1 {
		t.Fatalf("overflow start code = %d, want -1", p.SC)
	}
	if p.Size != 10 {
		t.Fatalf("overflow size = %d, want 10", p.Size)
	}

	// The next break starts a fresh frame at slot 0.
	u.InjectBreak()
	settle()
	u.InjectRx([]byte{SCDMX, 1, 2, 3, 4})
	settle()
	u.InjectBreak()

	p, err = d.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive after overflow: %v", err)
	}
	if p.Err != nil || p.Size != 5 || p.SC != SCDMX {
		t.Fatalf("frame after overflow: %+v", p)
	}
}

func TestReceiveFramingError(t *testing.T) {
	d, u, _ := newTestDriver(t, Config{})

	u.InjectBreak()
	settle()
	u.InjectRx([]byte{SCDMX, 9, 9})
	settle()
	u.InjectFrameError()

	p, err := d.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !errors.Is(p.Err, ErrFramingError) || p.SC != -1 || p.Size != 3 {
		t.Fatalf("got %+v", p)
	}
}

// RDM packets carry their own length and are not followed by a break, so
// a complete one must be delivered as soon as it has been drained.
func TestReceiveRDMWithoutTrailingBreak(t *testing.T) {
	d, u, _ := newTestDriver(t, Config{UID: testUID})

	h := rdm.Header{
		DestUID: testUID,
		SrcUID:  peerUID,
		TN:      3,
		CC:      rdm.CCGetCommand,
		PID:     rdm.PIDDeviceInfo,
	}
	var pkt [64]byte
	n := rdm.WritePacket(pkt[:], &h, nil)

	u.InjectBreak()
	settle()
	u.InjectRx(pkt[:n])

	p, err := d.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !p.IsRDM || p.SC != rdm.SC || p.Size != n {
		t.Fatalf("got %+v, want an RDM frame of %d bytes", p, n)
	}
}

func TestReceiveQueueOverflowWarns(t *testing.T) {
	var warned atomic.Bool
	d, u, _ := newTestDriver(t, Config{
		QueueSize: 1,
		Log:       func(string, ...any) { warned.Store(true) },
	})

	for i := 0; i < 3; i++ {
		u.InjectBreak()
		settle()
		u.InjectRx([]byte{SCDMX, byte(i)})
		settle()
	}
	u.InjectBreak()
	settle()

	if !warned.Load() {
		t.Fatal("dropping events from a full queue did not warn")
	}
	if _, err := d.Receive(time.Second); err != nil {
		t.Fatalf("the queued event was lost: %v", err)
	}
}
