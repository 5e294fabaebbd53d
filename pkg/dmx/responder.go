// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import (
	"time"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

// SendResponse dispatches the RDM request currently sitting in the slot
// buffer and transmits the reply, honoring the respond-to-request
// spacing. It reports whether a reply went onto the wire; requests not
// addressed to this device and suppressed broadcast replies return
// false with a nil error. Call it after Receive delivers an RDM packet.
func (d *Driver) SendResponse() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.Enabled() {
		return false, ErrNotEnabled
	}
	if d.uid.IsNull() {
		return false, nil
	}

	d.cs.enter()
	size := d.rxSize
	reqH, ok := rdm.ReadHeader(d.buf[:size])
	var pd []byte
	if ok && reqH.PDL > 0 {
		pd = append(pd, d.buf[rdm.HeaderLen:rdm.HeaderLen+int(reqH.PDL)]...)
	}
	d.cs.exit()

	if !ok || !reqH.CC.IsRequest() || !reqH.DestUID.Targets(d.uid) {
		return false, nil
	}
	isDUB := reqH.PID == rdm.PIDDiscUniqueBranch

	var (
		resp     Response
		callback Callback
		cbCtx    any
	)
	d.cs.enter()
	p := d.params.lookup(reqH.PID)
	var handler Handler
	if p != nil {
		handler = p.handler
		callback = p.callback
		cbCtx = p.cbCtx
	}
	d.cs.exit()

	switch {
	case p == nil:
		resp = NackResponse(rdm.NRUnknownPID)
	case reqH.SubDevice != rdm.SubDeviceRoot && !(reqH.SubDevice == rdm.SubDeviceAll && reqH.CC == rdm.CCSetCommand):
		// Root device only.
		resp = NackResponse(rdm.NRSubDeviceOutOfRange)
	default:
		resp = handler(d, &reqH, pd)
	}

	// RDM requires an answer to every unicast non-discovery request;
	// a handler declining to answer one is a device fault.
	if !isDUB && !reqH.DestUID.IsBroadcast() {
		switch resp.Type {
		case rdm.ResponseTypeAck, rdm.ResponseTypeAckTimer,
			rdm.ResponseTypeNackReason, rdm.ResponseTypeAckOverflow:
		default:
			resp = NackResponse(rdm.NRHardwareFault)
		}
	}

	suppressed := reqH.DestUID.IsBroadcast() && !isDUB
	sent := false
	if !suppressed && resp.Type != rdm.ResponseTypeNone && resp.Type != rdm.ResponseTypeInvalid {
		n, err := d.writeResponse(&reqH, resp)
		if err == nil && n > 0 {
			if _, err = d.sendLocked(n); err == nil {
				err = d.waitSentLocked(time.Second)
				sent = err == nil
			}
		}
		if err != nil {
			// Too late or the bus is wedged; the controller treats the
			// silence as response-lost and recovers.
			d.uart.SetRTS(false)
			return false, err
		}
	}

	d.uart.SetRTS(false)
	d.cs.enter()
	d.head = -1
	d.rxRequest = false
	d.cs.exit()

	if callback != nil {
		var respH *rdm.Header
		if sent {
			h := d.lastResponseHeader(resp, &reqH)
			respH = &h
		}
		callback(d, &reqH, respH, cbCtx)
	}
	return sent, nil
}

// writeResponse encodes the reply into the slot buffer and returns its
// size. An oversized discovery response is silently dropped.
func (d *Driver) writeResponse(reqH *rdm.Header, resp Response) (int, error) {
	h := d.lastResponseHeader(resp, reqH)

	pd := resp.PD
	if resp.Type == rdm.ResponseTypeNackReason {
		pd = []byte{byte(resp.NackReason >> 8), byte(resp.NackReason)}
	}
	if len(pd) > rdm.MaxPDL {
		return 0, ErrNoStorage
	}

	d.cs.enter()
	defer d.cs.exit()
	n := rdm.WritePacket(d.buf[:], &h, pd)
	return n, nil
}

// lastResponseHeader builds the reply header for a request: UIDs
// swapped, command class bumped to its response variant, response type
// stamped, transaction number and parameter ID echoed, and the message
// count advertising the pending-data queue.
func (d *Driver) lastResponseHeader(resp Response, reqH *rdm.Header) rdm.Header {
	pid := reqH.PID
	if resp.PID != 0 {
		pid = resp.PID
	}
	return rdm.Header{
		DestUID:      reqH.SrcUID,
		SrcUID:       d.uid,
		TN:           reqH.TN,
		PortID:       uint8(resp.Type),
		MessageCount: uint8(d.QueuedMessageCount()),
		SubDevice:    reqH.SubDevice,
		CC:           reqH.CC + 1,
		PID:          pid,
	}
}
