// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

// Package hal declares the hardware interfaces the DMX driver core runs
// against: a UART-class serial peripheral with FIFO and interrupt control,
// and a single-shot microsecond countdown timer. Implementations carry no
// protocol state; all sequencing lives in the dmx package.
package hal

// Intr is a bitmask of interrupt causes reported by a UART.
type Intr uint32

const (
	// IntrRxBreak fires when a break condition is detected on the line.
	IntrRxBreak Intr = 1 << iota
	// IntrRxData fires when the receive FIFO crosses its fill threshold.
	IntrRxData
	// IntrRxTimeout fires when the line goes idle with data pending.
	IntrRxTimeout
	// IntrRxOverflow fires when the receive FIFO overflows; pending data
	// is lost.
	IntrRxOverflow
	// IntrRxError fires on a framing or parity error.
	IntrRxError
	// IntrTxDone fires when the transmit FIFO drains below its threshold.
	IntrTxDone
)

// IntrRx covers every receive-side cause.
const IntrRx = IntrRxBreak | IntrRxData | IntrRxTimeout | IntrRxOverflow | IntrRxError

// UART is the serial peripheral. The driver's interrupt handler is the
// only caller of the FIFO and interrupt methods once installed; the
// handler registered with OnInterrupt must never block.
type UART interface {
	// InterruptStatus returns the currently asserted causes.
	InterruptStatus() Intr
	ClearInterrupt(mask Intr)
	EnableInterrupt(mask Intr)
	DisableInterrupt(mask Intr)

	// ReadFIFO drains up to len(p) pending receive octets into p.
	ReadFIFO(p []byte) int
	// WriteFIFO queues up to len(p) octets for transmission and reports
	// how many fit.
	WriteFIFO(p []byte) int
	ResetRxFIFO()

	BaudRate() int
	SetBaudRate(rate int)

	// SetRTS selects the bus direction on half-duplex transceivers;
	// true drives the line.
	SetRTS(transmit bool)
	// InvertTx inverts the idle level of the transmit line. Holding the
	// inversion generates the DMX break.
	InvertTx(invert bool)

	// OnInterrupt registers the handler invoked whenever an enabled
	// cause asserts.
	OnInterrupt(fn func())
}

// Timer is a single-shot microsecond countdown. Arm replaces any pending
// countdown; the alarm never re-arms itself.
type Timer interface {
	Arm(delay int64)
	Stop()
	// Now returns a monotonic microsecond timestamp.
	Now() int64
	OnAlarm(fn func())
}
