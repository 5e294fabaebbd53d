// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import (
	"time"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx/hal"
	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

// Packet describes one received frame. Err carries a bus-level fault
// (ErrOverflow, ErrFramingError) for the frame itself; frames with a
// non-nil Err have an unknown start code.
type Packet struct {
	SC    int // start code, -1 when unknown
	Size  int
	IsRDM bool
	Err   error
}

// Read copies up to len(dst) octets of the slot buffer starting at
// offset (0 is the start code) and returns the count copied. Offsets are
// clamped to the frame size; there are no side effects.
func (d *Driver) Read(offset int, dst []byte) int {
	if offset < 0 || offset >= PacketSize {
		return 0
	}
	d.cs.enter()
	defer d.cs.exit()
	return copy(dst, d.buf[offset:PacketSize])
}

// Write copies src into the slot buffer at offset and sets the transmit
// size to cover exactly the written range, so a following Send(0) sends
// what was just written. Returns the count copied after clamping.
func (d *Driver) Write(offset int, src []byte) int {
	if offset < 0 || offset >= PacketSize {
		return 0
	}
	d.cs.enter()
	defer d.cs.exit()
	n := copy(d.buf[offset:PacketSize], src)
	d.txSize = offset + n
	return n
}

// ReadSlot returns one octet of the slot buffer.
func (d *Driver) ReadSlot(offset int) (byte, bool) {
	if offset < 0 || offset >= PacketSize {
		return 0, false
	}
	d.cs.enter()
	defer d.cs.exit()
	return d.buf[offset], true
}

// WriteSlot sets one octet of the slot buffer, growing the transmit size
// to include it if needed.
func (d *Driver) WriteSlot(offset int, value byte) bool {
	if offset < 0 || offset >= PacketSize {
		return false
	}
	d.cs.enter()
	defer d.cs.exit()
	d.buf[offset] = value
	if d.txSize < offset+1 {
		d.txSize = offset + 1
	}
	return true
}

// Send transmits size octets of the slot buffer; size 0 re-sends the
// previously written size. The call blocks until any in-flight
// transmission finishes and until the RDM inter-packet spacing owed from
// the previous bus action has elapsed, then starts the frame and returns
// the octet count handed to the state machine. When responding to an RDM
// request whose response window has already closed, it sends nothing.
func (d *Driver) Send(size int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendLocked(size)
}

func (d *Driver) sendLocked(size int) (int, error) {
	if !d.Enabled() {
		return 0, ErrNotEnabled
	}
	if size < 0 || size > PacketSize {
		size = PacketSize
	}

	// Let any in-flight frame finish its FIFO handoff first.
	if err := d.waitSentLocked(time.Second); err != nil {
		return 0, err
	}

	d.cs.enter()
	if size == 0 {
		size = d.txSize
	} else {
		d.txSize = size
	}
	var cls sendClass
	var dubResponse bool
	if h, ok := rdm.ReadHeader(d.buf[:size]); ok {
		cls = sendClass{
			isRDM:       true,
			isRequest:   h.CC.IsRequest(),
			isBroadcast: h.DestUID.IsBroadcast(),
			isDUB:       h.PID == rdm.PIDDiscUniqueBranch,
		}
		dubResponse = h.IsDiscUniqueBranchResponse()
	}
	sentLast := d.flags&flagSentLast != 0
	last := d.lastSent
	rxRequest := d.rxRequest
	lastSlot := d.lastSlotTS
	d.cs.exit()

	// Mandatory spacing from the previous bus action.
	var gap int64
	if sentLast {
		switch {
		case last.isRequest && last.isDUB:
			gap = rdm.DiscoveryNoResponsePacketSpacing
		case last.isRequest && last.isBroadcast:
			gap = rdm.BroadcastPacketSpacing
		case last.isRequest:
			gap = rdm.RequestNoResponsePacketSpacing
		}
	} else if rxRequest {
		if d.timer.Now()-lastSlot > rdm.ResponderResponseLostTimeout {
			// The controller has given up on us; answering now would
			// collide with its next packet.
			return 0, ErrTimeout
		}
		gap = rdm.RespondToRequestPacketSpacing
	}
	if gap > 0 {
		if elapsed := d.timer.Now() - lastSlot; elapsed < gap {
			if !d.note.acquire() {
				return 0, ErrBusy
			}
			d.cs.enter()
			d.phase = phaseAwaitGap
			d.cs.exit()
			d.timer.Arm(gap - elapsed)
			<-d.note.c()
			d.note.release()
		}
	}

	// Requests carry the driver's transaction number; discovery-unique-
	// branch traffic does not advance it.
	if cls.isRequest && !cls.isDUB {
		d.cs.enter()
		d.buf[15] = d.tn
		msgLen := int(d.buf[2])
		sum := rdm.Checksum(d.buf[:msgLen])
		d.buf[msgLen] = byte(sum >> 8)
		d.buf[msgLen+1] = byte(sum)
		d.tn++
		d.cs.exit()
	}

	d.uart.SetRTS(true)
	d.cs.enter()
	d.flags |= flagSending | flagSentLast
	d.lastSent = cls
	d.txHead = 0
	if dubResponse {
		// Discovery responses begin with a preamble, not a break; frame
		// sequencing must not delay them.
		d.phase = phaseWriteData
		d.txHead = d.uart.WriteFIFO(d.buf[:size])
		d.uart.EnableInterrupt(hal.IntrTxDone)
	} else {
		d.phase = phaseBreak
		d.uart.InvertTx(true)
		d.timer.Arm(d.breakLen)
	}
	d.cs.exit()
	return size, nil
}

// WaitSent blocks until the in-flight frame has been fully handed to the
// transmit FIFO, or the timeout expires.
func (d *Driver) WaitSent(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waitSentLocked(timeout)
}

func (d *Driver) waitSentLocked(timeout time.Duration) error {
	d.cs.enter()
	sending := d.flags&flagSending != 0
	d.cs.exit()
	if !sending {
		return nil
	}
	if !d.note.acquire() {
		return ErrBusy
	}
	defer d.note.release()

	// Re-check: completion may have raced the acquire.
	d.cs.enter()
	sending = d.flags&flagSending != 0
	d.cs.exit()
	if !sending {
		return nil
	}
	select {
	case <-d.note.c():
		return nil
	case <-time.After(timeout):
		return ErrTimeout
	}
}

// Receive waits for the next completed or errored frame event. When the
// port's previous action was sending a unicast or discovery request, a
// shorter response-lost deadline measured from the end of that request
// applies as well, so scans fail fast on silent branches.
func (d *Driver) Receive(timeout time.Duration) (Packet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.receiveLocked(timeout)
}

func (d *Driver) receiveLocked(timeout time.Duration) (Packet, error) {
	if !d.Enabled() {
		return Packet{}, ErrNotEnabled
	}

	d.cs.enter()
	sentLast := d.flags&flagSentLast != 0
	last := d.lastSent
	lastSlot := d.lastSlotTS
	d.cs.exit()

	var noteCh <-chan struct{}
	early := false
	if sentLast && last.isRequest && (!last.isBroadcast || last.isDUB) {
		remaining := rdm.ControllerResponseLostTimeout - (d.timer.Now() - lastSlot)
		if remaining <= 0 {
			select {
			case ev := <-d.events:
				return eventPacket(ev), nil
			default:
				return Packet{}, ErrTimeout
			}
		}
		if !d.note.acquire() {
			return Packet{}, ErrBusy
		}
		early = true
		noteCh = d.note.c()
		d.cs.enter()
		d.phase = phaseAwaitRx
		d.cs.exit()
		d.timer.Arm(remaining)
	}
	if early {
		defer func() {
			d.timer.Stop()
			d.cs.enter()
			if d.phase == phaseAwaitRx {
				d.phase = phaseIdle
			}
			d.cs.exit()
			d.note.release()
		}()
	}

	select {
	case ev := <-d.events:
		return eventPacket(ev), nil
	case <-noteCh:
		return Packet{}, ErrTimeout
	case <-time.After(timeout):
		return Packet{}, ErrTimeout
	}
}

func eventPacket(ev frameEvent) Packet {
	p := Packet{SC: ev.sc, Size: ev.size, IsRDM: ev.isRDM}
	switch ev.status {
	case frameOverflow:
		p.Err = ErrOverflow
	case frameError:
		p.Err = ErrFramingError
	}
	return p
}

// Request is an outgoing RDM request built by SendRequest.
type Request struct {
	DestUID   rdm.UID
	SubDevice uint16
	CC        rdm.CommandClass
	PID       rdm.PID
	PD        []byte
}

// Ack is the decoded outcome of an RDM transaction. Type is
// ResponseTypeNone when no response arrived (always the case for
// non-discovery broadcasts) and ResponseTypeInvalid when a response
// arrived but failed validation against the request.
type Ack struct {
	Type       rdm.ResponseType
	NackReason rdm.NackReason
	TimerDelay time.Duration
	PD         []byte
	Header     rdm.Header
}

// SendRequest writes an RDM request into the slot buffer, transmits it,
// and waits for the matching response under the early-timeout rule. The
// response is validated against the request's transaction number,
// parameter ID, command class, and UIDs before being decoded.
func (d *Driver) SendRequest(req Request, timeout time.Duration) (Ack, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !req.CC.IsRequest() {
		return Ack{}, ErrInvalidRequest
	}
	h := rdm.Header{
		DestUID:   req.DestUID,
		SrcUID:    d.uid,
		PortID:    uint8(d.port + 1),
		SubDevice: req.SubDevice,
		CC:        req.CC,
		PID:       req.PID,
	}
	var pkt [rdm.HeaderLen + rdm.MaxPDL + rdm.ChecksumLen]byte
	n := rdm.WritePacket(pkt[:], &h, req.PD)
	if n == 0 {
		return Ack{}, ErrNoStorage
	}

	d.cs.enter()
	copy(d.buf[:n], pkt[:n])
	tn := d.tn
	d.cs.exit()

	if _, err := d.sendLocked(n); err != nil {
		return Ack{}, err
	}
	if err := d.waitSentLocked(time.Second); err != nil {
		return Ack{}, err
	}
	d.uart.SetRTS(false)

	isDUB := req.PID == rdm.PIDDiscUniqueBranch
	if req.DestUID.IsBroadcast() && !isDUB {
		return Ack{Type: rdm.ResponseTypeNone}, nil
	}

	p, err := d.receiveLocked(timeout)
	if err != nil {
		return Ack{Type: rdm.ResponseTypeNone}, err
	}
	if p.Err != nil || !p.IsRDM {
		return Ack{Type: rdm.ResponseTypeInvalid}, nil
	}

	d.cs.enter()
	resp, ok := rdm.ReadHeader(d.buf[:p.Size])
	var pd []byte
	if ok && !resp.IsDiscUniqueBranchResponse() {
		pd = append(pd, d.buf[rdm.HeaderLen:rdm.HeaderLen+int(resp.PDL)]...)
	}
	d.cs.exit()
	if !ok {
		return Ack{Type: rdm.ResponseTypeInvalid}, nil
	}

	if resp.IsDiscUniqueBranchResponse() {
		if !isDUB {
			return Ack{Type: rdm.ResponseTypeInvalid}, nil
		}
		return Ack{Type: rdm.ResponseTypeAck, Header: resp}, nil
	}
	// Responses to GET QUEUED_MESSAGE carry the queued parameter's ID.
	pidOK := resp.PID == req.PID || req.PID == rdm.PIDQueuedMessage
	if resp.CC != req.CC+1 || !pidOK || resp.TN != tn ||
		resp.SrcUID != req.DestUID || resp.DestUID != d.uid {
		return Ack{Type: rdm.ResponseTypeInvalid, Header: resp}, nil
	}

	ack := Ack{Type: resp.ResponseType(), PD: pd, Header: resp}
	switch ack.Type {
	case rdm.ResponseTypeAckTimer:
		if len(pd) == 2 {
			// Estimated response delay arrives in 100 ms units.
			ack.TimerDelay = time.Duration(uint16(pd[0])<<8|uint16(pd[1])) * 100 * time.Millisecond
		}
	case rdm.ResponseTypeNackReason:
		if len(pd) == 2 {
			ack.NackReason = rdm.NackReason(uint16(pd[0])<<8 | uint16(pd[1]))
		}
	case rdm.ResponseTypeAck, rdm.ResponseTypeAckOverflow:
	default:
		ack.Type = rdm.ResponseTypeInvalid
	}
	return ack, nil
}
