// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

// Package serial adapts a host operating system serial port to the
// driver's UART interface. Host UART drivers hide most line-level
// detail, so the adaptation is best-effort: transmitted breaks use the
// port's break ioctl with the duration the driver held the line, and
// received breaks are inferred from a zero octet arriving after an idle
// gap. Half-duplex direction control maps to RTS when the adapter
// supports it.
package serial

import (
	"fmt"
	"sync"
	"time"

	bugst "go.bug.st/serial"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx/hal"
)

// An idle gap this long before a zero octet is read as a break. DMX
// inter-slot gaps stay well under this; host read timestamps are too
// coarse for anything tighter.
const breakGap = 500 * time.Microsecond

const readChunk = 64

type txOp struct {
	brk  time.Duration // nonzero: hold a break instead of writing data
	data []byte
}

// UART implements hal.UART on a host serial port.
type UART struct {
	mu       sync.Mutex
	port     bugst.Port
	baud     int
	status   hal.Intr
	enabled  hal.Intr
	rx       []byte
	handler  func()
	brkStart time.Time
	inverted bool
	lastByte time.Time
	ops      chan txOp
	closed   chan struct{}
	wg       sync.WaitGroup
}

// Open opens device at the DMX baud rate (8N2) and starts the receive
// and transmit pumps. The returned UART must be Closed when done.
func Open(device string) (*UART, error) {
	const baud = 250000
	port, err := bugst.Open(device, &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.TwoStopBits,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: opening %s: %w", device, err)
	}
	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial: read timeout on %s: %w", device, err)
	}
	u := &UART{
		port:   port,
		baud:   baud,
		ops:    make(chan txOp, 8),
		closed: make(chan struct{}),
	}
	u.wg.Add(2)
	go u.rxPump()
	go u.txPump()
	return u, nil
}

// Close stops the pumps and closes the port.
func (u *UART) Close() error {
	close(u.closed)
	err := u.port.Close()
	u.wg.Wait()
	return err
}

// rxPump turns reads into interrupt causes. It is the adapter's
// interrupt context: the registered handler runs on this goroutine.
func (u *UART) rxPump() {
	defer u.wg.Done()
	buf := make([]byte, readChunk)
	for {
		select {
		case <-u.closed:
			return
		default:
		}
		n, err := u.port.Read(buf)
		if err != nil {
			return
		}
		now := time.Now()

		u.mu.Lock()
		if n == 0 {
			// Read timeout: the line went idle.
			if len(u.rx) > 0 {
				u.status |= hal.IntrRxTimeout
			}
		} else {
			data := buf[:n]
			if data[0] == 0 && now.Sub(u.lastByte) >= breakGap {
				u.status |= hal.IntrRxBreak
				data = data[1:]
			}
			u.lastByte = now
			if len(data) > 0 {
				u.rx = append(u.rx, data...)
				u.status |= hal.IntrRxData
			}
		}
		fire := u.status&u.enabled != 0
		h := u.handler
		u.mu.Unlock()

		if fire && h != nil {
			h()
		}
	}
}

// txPump serializes break and data operations onto the wire in the
// order the driver issued them.
func (u *UART) txPump() {
	defer u.wg.Done()
	for {
		select {
		case <-u.closed:
			return
		case op := <-u.ops:
			if op.brk > 0 {
				u.port.Break(op.brk)
				continue
			}
			u.port.Write(op.data)
			u.mu.Lock()
			u.status |= hal.IntrTxDone
			fire := u.status&u.enabled != 0
			h := u.handler
			u.mu.Unlock()
			if fire && h != nil {
				h()
			}
		}
	}
}

func (u *UART) InterruptStatus() hal.Intr {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

func (u *UART) ClearInterrupt(mask hal.Intr) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status &^= mask
}

func (u *UART) EnableInterrupt(mask hal.Intr) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.enabled |= mask
}

func (u *UART) DisableInterrupt(mask hal.Intr) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.enabled &^= mask
}

func (u *UART) ReadFIFO(p []byte) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := copy(p, u.rx)
	u.rx = u.rx[:copy(u.rx, u.rx[n:])]
	if len(u.rx) == 0 {
		u.status &^= hal.IntrRxData | hal.IntrRxTimeout
	}
	return n
}

func (u *UART) WriteFIFO(p []byte) int {
	data := append([]byte(nil), p...)
	select {
	case u.ops <- txOp{data: data}:
		return len(p)
	default:
		return 0
	}
}

func (u *UART) ResetRxFIFO() {
	u.mu.Lock()
	u.rx = u.rx[:0]
	u.status &^= hal.IntrRx
	u.mu.Unlock()
	u.port.ResetInputBuffer()
}

func (u *UART) BaudRate() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.baud
}

func (u *UART) SetBaudRate(rate int) {
	u.mu.Lock()
	u.baud = rate
	u.mu.Unlock()
	u.port.SetMode(&bugst.Mode{
		BaudRate: rate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.TwoStopBits,
	})
}

func (u *UART) SetRTS(transmit bool) {
	u.port.SetRTS(transmit)
}

// InvertTx emulates holding the line low. The inversion interval is
// measured and replayed as a break ioctl when the driver releases it.
func (u *UART) InvertTx(invert bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if invert && !u.inverted {
		u.brkStart = time.Now()
	}
	if !invert && u.inverted {
		d := time.Since(u.brkStart)
		if d < time.Millisecond {
			// Host break ioctls round down to zero below ~1 ms.
			d = time.Millisecond
		}
		select {
		case u.ops <- txOp{brk: d}:
		default:
		}
	}
	u.inverted = invert
}

func (u *UART) OnInterrupt(fn func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.handler = fn
}
