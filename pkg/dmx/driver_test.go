// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import (
	"bytes"
	"testing"
	"time"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx/hal/stub"
	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

var (
	testUID = rdm.UID{ManID: 0x05e0, DevID: 0x00000042}
	peerUID = rdm.UID{ManID: 0x05e0, DevID: 0x00000099}
)

func newTestDriver(t *testing.T, cfg Config) (*Driver, *stub.UART, *stub.Timer) {
	t.Helper()
	u := stub.NewUART()
	tm := stub.NewTimer()
	d, err := Install(0, u, tm, cfg)
	if err != nil {
		u.Close()
		t.Fatalf("Install: %v", err)
	}
	t.Cleanup(func() {
		Delete(0)
		u.Close()
	})
	if err := d.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	return d, u, tm
}

// settle lets the stub's interrupt delivery drain between injections.
func settle() { time.Sleep(3 * time.Millisecond) }

func TestInstallLifecycle(t *testing.T) {
	u := stub.NewUART()
	defer u.Close()
	tm := stub.NewTimer()

	if _, err := Install(-1, u, tm, Config{}); err != ErrInvalidPort {
		t.Fatalf("Install(-1) = %v, want ErrInvalidPort", err)
	}
	d, err := Install(1, u, tm, Config{UID: testUID})
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	defer Delete(1)

	if _, err := Install(1, u, tm, Config{}); err != ErrAlreadyInstalled {
		t.Fatalf("second Install = %v, want ErrAlreadyInstalled", err)
	}
	got, ok := Port(1)
	if !ok || got != d {
		t.Fatal("Port(1) did not return the installed driver")
	}
	if d.Enabled() {
		t.Fatal("driver enabled before Enable")
	}
	if _, err := d.Send(0); err != ErrNotEnabled {
		t.Fatalf("Send before Enable = %v, want ErrNotEnabled", err)
	}

	if err := Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := Delete(1); err != ErrNotInstalled {
		t.Fatalf("second Delete = %v, want ErrNotInstalled", err)
	}
}

func TestTimingAccessorsClamp(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{})

	if d.BreakLen() != DefaultBreakLen || d.MABLen() != DefaultMABLen {
		t.Fatalf("defaults: break=%d mab=%d", d.BreakLen(), d.MABLen())
	}
	d.SetBreakLen(1)
	if d.BreakLen() != MinBreakLen {
		t.Fatalf("break clamped to %d, want %d", d.BreakLen(), MinBreakLen)
	}
	d.SetMABLen(2 * MaxMABLen)
	if d.MABLen() != MaxMABLen {
		t.Fatalf("mab clamped to %d, want %d", d.MABLen(), MaxMABLen)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{})

	for _, size := range []int{0, 1, 7, 128, 512} {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i * 3)
		}
		frame := append([]byte{SCDMX}, payload...)
		if n := d.Write(0, frame); n != len(frame) {
			t.Fatalf("size %d: Write = %d", size, n)
		}
		got := make([]byte, len(frame))
		if n := d.Read(0, got); n != len(frame) {
			t.Fatalf("size %d: Read = %d", size, n)
		}
		if !bytes.Equal(got, frame) {
			t.Fatalf("size %d: round trip mismatch", size)
		}
	}
}

func TestBufferAccessClamp(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{})

	big := make([]byte, PacketSize+100)
	if n := d.Write(0, big); n != PacketSize {
		t.Fatalf("oversized Write = %d, want %d", n, PacketSize)
	}
	if n := d.Write(PacketSize, []byte{1}); n != 0 {
		t.Fatalf("out-of-range Write = %d, want 0", n)
	}
	if n := d.Read(-1, make([]byte, 4)); n != 0 {
		t.Fatalf("negative-offset Read = %d, want 0", n)
	}
	if _, ok := d.ReadSlot(PacketSize); ok {
		t.Fatal("ReadSlot past the buffer succeeded")
	}
	if !d.WriteSlot(5, 0xaa) {
		t.Fatal("WriteSlot(5) failed")
	}
	v, ok := d.ReadSlot(5)
	if !ok || v != 0xaa {
		t.Fatalf("ReadSlot(5) = %#x, %v", v, ok)
	}
}

func TestSendZeroResendsWrittenSize(t *testing.T) {
	d, u, _ := newTestDriver(t, Config{})

	const n = 25
	frame := make([]byte, n)
	frame[0] = SCDMX
	for i := 1; i < n; i++ {
		frame[i] = byte(i)
	}
	if got := d.Write(0, frame); got != n {
		t.Fatalf("Write = %d", got)
	}

	sent, err := d.Send(0)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sent != n {
		t.Fatalf("Send(0) = %d, want %d", sent, n)
	}
	if err := d.WaitSent(time.Second); err != nil {
		t.Fatalf("WaitSent: %v", err)
	}
	settle()

	if got := u.TxLog(); !bytes.Equal(got, frame) {
		t.Fatalf("wire carried % x, want % x", got, frame)
	}
	if u.Breaks() != 1 {
		t.Fatalf("generated %d breaks, want 1", u.Breaks())
	}
}
