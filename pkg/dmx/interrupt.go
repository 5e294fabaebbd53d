// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import (
	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx/hal"
	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

// handleUART is the port's single interrupt handler. It services every
// asserted cause in turn and returns only when none remain. It runs in
// interrupt context and must never block.
func (d *Driver) handleUART() {
	for {
		st := d.uart.InterruptStatus()
		switch {
		case st&hal.IntrRxBreak != 0:
			d.onBreak()
		case st&hal.IntrRxOverflow != 0:
			d.onRxFault(hal.IntrRxOverflow, frameOverflow)
		case st&hal.IntrRxError != 0:
			d.onRxFault(hal.IntrRxError, frameError)
		case st&(hal.IntrRxData|hal.IntrRxTimeout) != 0:
			d.onRxData()
		case st&hal.IntrTxDone != 0:
			d.onTxDone()
		default:
			return
		}
	}
}

// onBreak closes out the frame accumulated since the previous break and
// starts a fresh one at slot index 0.
func (d *Driver) onBreak() {
	d.uart.ClearInterrupt(hal.IntrRxBreak)
	d.uart.ResetRxFIFO()

	now := d.timer.Now()
	d.cs.enter()
	if d.head > 0 {
		d.rxSize = d.head
		d.publishLocked(frameOK, d.head, now)
	}
	d.head = 0
	d.cs.exit()
}

// onRxData drains the receive FIFO into the slot buffer. Three outcomes
// end a frame early: the buffer fills, or the accumulated bytes form a
// complete RDM packet (RDM responses are not followed by a break, so
// waiting for one would never terminate), after either of which the
// cursor holds the discard sentinel until the next break.
func (d *Driver) onRxData() {
	d.uart.ClearInterrupt(hal.IntrRxData | hal.IntrRxTimeout)

	now := d.timer.Now()
	d.cs.enter()
	defer d.cs.exit()

	if d.head < 0 {
		var scratch [64]byte
		for {
			if n := d.uart.ReadFIFO(scratch[:]); n < len(scratch) {
				break
			}
		}
		return
	}

	n := d.uart.ReadFIFO(d.buf[d.head:PacketSize])
	if n == 0 {
		return
	}
	d.head += n
	d.lastSlotTS = now

	if d.head >= PacketSize {
		d.rxSize = d.head
		d.publishLocked(frameOK, d.head, now)
		d.head = -1
		return
	}
	if d.buf[0] == rdm.SC || d.buf[0] == rdm.Preamble || d.buf[0] == rdm.Delimiter {
		if _, ok := rdm.ReadHeader(d.buf[:d.head]); ok {
			d.rxSize = d.head
			d.publishLocked(frameOK, d.head, now)
			d.head = -1
		}
	}
}

// onRxFault publishes whatever was collected with an error status and
// discards line data until the next break.
func (d *Driver) onRxFault(cause hal.Intr, status frameStatus) {
	d.uart.ClearInterrupt(cause)

	now := d.timer.Now()
	d.cs.enter()
	size := d.head
	if size < 0 {
		size = 0
	}
	d.publishLocked(status, size, now)
	d.head = -1
	d.cs.exit()

	d.uart.ResetRxFIFO()
}

// onTxDone refills the transmit FIFO and, once every slot has been
// handed to the hardware, releases the sending task. Completion is the
// software handoff, not line idle; the last octets are still shifting
// out when the waiter wakes.
func (d *Driver) onTxDone() {
	d.uart.ClearInterrupt(hal.IntrTxDone)

	d.cs.enter()
	defer d.cs.exit()
	if d.phase != phaseWriteData {
		return
	}
	if d.txHead < d.txSize {
		d.txHead += d.uart.WriteFIFO(d.buf[d.txHead:d.txSize])
	}
	if d.txHead >= d.txSize {
		d.uart.DisableInterrupt(hal.IntrTxDone)
		d.flags &^= flagSending
		d.lastSlotTS = d.timer.Now()
		d.phase = phaseIdle
		d.note.notify()
	}
}

// publishLocked queues one receive event. Callers hold the critical
// section. A full queue is an application sizing error and is logged,
// never silently absorbed.
func (d *Driver) publishLocked(status frameStatus, size int, now int64) {
	ev := frameEvent{status: status, sc: -1, size: size, ts: now}
	d.rxRequest = false
	if status == frameOK && size > 0 {
		ev.sc = int(d.buf[0])
		if h, ok := rdm.ReadHeader(d.buf[:size]); ok {
			ev.isRDM = true
			d.rxRequest = h.CC.IsRequest() && h.DestUID.Targets(d.uid)
		}
	}
	d.flags &^= flagSentLast

	select {
	case d.events <- ev:
	default:
		d.log("dmx: port %d receive queue full, dropping %d byte frame", d.port, size)
	}
}

// handleTimer services the countdown alarm. The armed phase tells it
// what the expiry means; a stale alarm for any other phase is ignored.
func (d *Driver) handleTimer() {
	d.cs.enter()
	defer d.cs.exit()

	switch d.phase {
	case phaseAwaitGap, phaseAwaitRx:
		// A task is blocked on the timing engine; wake it.
		d.timer.Stop()
		d.phase = phaseIdle
		d.note.notify()
	case phaseBreak:
		d.uart.InvertTx(false)
		d.phase = phaseMarkAfterBreak
		d.timer.Arm(d.mabLen)
	case phaseMarkAfterBreak:
		d.timer.Stop()
		d.phase = phaseWriteData
		d.txHead = d.uart.WriteFIFO(d.buf[:d.txSize])
		d.uart.EnableInterrupt(hal.IntrTxDone)
	default:
		d.timer.Stop()
	}
}
