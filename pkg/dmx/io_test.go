// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import (
	"testing"
	"time"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

func writeRequest(t *testing.T, d *Driver, dest rdm.UID, cc rdm.CommandClass, pid rdm.PID, pd []byte) int {
	t.Helper()
	h := rdm.Header{DestUID: dest, SrcUID: d.UID(), CC: cc, PID: pid}
	var buf [280]byte
	n := rdm.WritePacket(buf[:], &h, pd)
	if n == 0 {
		t.Fatal("building request packet failed")
	}
	if d.Write(0, buf[:n]) != n {
		t.Fatal("writing request into slot buffer failed")
	}
	return n
}

func TestTransactionNumbering(t *testing.T) {
	d, u, _ := newTestDriver(t, Config{UID: testUID})

	start := d.TransactionNumber()

	// A unicast GET advances the counter and is stamped on the wire.
	n := writeRequest(t, d, peerUID, rdm.CCGetCommand, rdm.PIDDeviceInfo, nil)
	if _, err := d.Send(n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := d.WaitSent(time.Second); err != nil {
		t.Fatalf("WaitSent: %v", err)
	}
	settle()
	if got := d.TransactionNumber(); got != start+1 {
		t.Fatalf("counter = %d, want %d", got, start+1)
	}
	h, ok := rdm.ReadHeader(u.TxLog())
	if !ok {
		t.Fatal("wire does not carry a valid RDM packet")
	}
	if h.TN != start {
		t.Fatalf("stamped transaction number %d, want %d", h.TN, start)
	}

	// A broadcast SET advances it too.
	u.ClearTxLog()
	n = writeRequest(t, d, rdm.BroadcastAll, rdm.CCSetCommand, rdm.PIDIdentifyDevice, []byte{1})
	if _, err := d.Send(n); err != nil {
		t.Fatalf("broadcast Send: %v", err)
	}
	if err := d.WaitSent(time.Second); err != nil {
		t.Fatalf("WaitSent: %v", err)
	}
	if got := d.TransactionNumber(); got != start+2 {
		t.Fatalf("counter = %d after broadcast, want %d", got, start+2)
	}

	// Discovery-unique-branch traffic never advances it.
	pd := make([]byte, 12)
	for i := 6; i < 12; i++ {
		pd[i] = 0xff
	}
	n = writeRequest(t, d, rdm.BroadcastAll, rdm.CCDiscCommand, rdm.PIDDiscUniqueBranch, pd)
	if _, err := d.Send(n); err != nil {
		t.Fatalf("discovery Send: %v", err)
	}
	if err := d.WaitSent(time.Second); err != nil {
		t.Fatalf("WaitSent: %v", err)
	}
	if got := d.TransactionNumber(); got != start+2 {
		t.Fatalf("counter = %d after discovery, want %d", got, start+2)
	}
}

func TestBackToBackRequestSpacing(t *testing.T) {
	d, _, tm := newTestDriver(t, Config{UID: testUID})

	n := writeRequest(t, d, peerUID, rdm.CCGetCommand, rdm.PIDDeviceInfo, nil)
	if _, err := d.Send(n); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if err := d.WaitSent(time.Second); err != nil {
		t.Fatalf("WaitSent: %v", err)
	}
	sentAt := tm.Now()

	// The second send may not start until the request-no-response
	// spacing has elapsed since the first request's last slot.
	n = writeRequest(t, d, peerUID, rdm.CCGetCommand, rdm.PIDSoftwareVersionLabel, nil)
	if _, err := d.Send(n); err != nil {
		t.Fatalf("second Send: %v", err)
	}
	// sentAt trails the hardware timestamp by scheduling jitter, so
	// allow some slack below the nominal spacing interval.
	if gap := tm.Now() - sentAt; gap < rdm.RequestNoResponsePacketSpacing-500 {
		t.Fatalf("second send started after %d µs, want about %d", gap, rdm.RequestNoResponsePacketSpacing)
	}
	if err := d.WaitSent(time.Second); err != nil {
		t.Fatalf("WaitSent: %v", err)
	}
}

func TestReceiveEarlyTimeoutAfterUnicastRequest(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{UID: testUID})

	n := writeRequest(t, d, peerUID, rdm.CCGetCommand, rdm.PIDDeviceInfo, nil)
	if _, err := d.Send(n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := d.WaitSent(time.Second); err != nil {
		t.Fatalf("WaitSent: %v", err)
	}

	// No responder on the bus: the response-lost deadline cuts the wait
	// far short of the caller's timeout.
	start := time.Now()
	_, err := d.Receive(5 * time.Second)
	if err != ErrTimeout {
		t.Fatalf("Receive = %v, want ErrTimeout", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Fatalf("waited %v, the response-lost deadline never fired", waited)
	}
}

func TestReceiveTimeoutWithoutTraffic(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{})

	start := time.Now()
	if _, err := d.Receive(30 * time.Millisecond); err != ErrTimeout {
		t.Fatalf("Receive = %v, want ErrTimeout", err)
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Fatal("Receive returned before the caller's timeout")
	}
}

func TestSendRequestNoResponder(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{UID: testUID})

	ack, err := d.SendRequest(Request{
		DestUID: peerUID,
		CC:      rdm.CCGetCommand,
		PID:     rdm.PIDDeviceInfo,
	}, 5*time.Second)
	if err != ErrTimeout {
		t.Fatalf("SendRequest = %v, want ErrTimeout", err)
	}
	if ack.Type != rdm.ResponseTypeNone {
		t.Fatalf("ack type = %v, want NONE", ack.Type)
	}
}

func TestSendRequestBroadcastExpectsNoResponse(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{UID: testUID})

	ack, err := d.SendRequest(Request{
		DestUID: rdm.BroadcastAll,
		CC:      rdm.CCSetCommand,
		PID:     rdm.PIDIdentifyDevice,
		PD:      []byte{0},
	}, time.Second)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if ack.Type != rdm.ResponseTypeNone {
		t.Fatalf("ack type = %v, want NONE", ack.Type)
	}
}

func TestSendRequestRejectsResponseClass(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{UID: testUID})

	if _, err := d.SendRequest(Request{
		DestUID: peerUID,
		CC:      rdm.CCGetCommandResponse,
		PID:     rdm.PIDDeviceInfo,
	}, time.Second); err != ErrInvalidRequest {
		t.Fatalf("SendRequest = %v, want ErrInvalidRequest", err)
	}
}
