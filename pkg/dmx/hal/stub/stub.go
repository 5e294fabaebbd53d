// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

// Package stub provides in-memory hal implementations for host testing.
// Bus activity is injected with the Inject methods and observed through
// the transmit log; interrupt delivery runs on a single goroutine so the
// driver sees the same one-at-a-time handler contract real hardware gives.
package stub

import (
	"sync"
	"time"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx/hal"
)

const fifoCap = 128

// UART is an in-memory hal.UART.
type UART struct {
	mu      sync.Mutex
	handler func()
	status  hal.Intr
	enabled hal.Intr
	rx      []byte
	tx      []byte
	txLog   []byte
	baud    int
	rts     bool
	invert  bool
	breaks  int

	kick   chan struct{}
	closed chan struct{}
}

// NewUART returns a running stub peripheral. Close it when done.
func NewUART() *UART {
	u := &UART{
		baud:   250000,
		kick:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	go u.run()
	return u
}

// Close stops the interrupt delivery goroutine.
func (u *UART) Close() { close(u.closed) }

func (u *UART) run() {
	for {
		select {
		case <-u.kick:
		case <-u.closed:
			return
		}
		for u.step() {
		}
	}
}

// step drains the transmit FIFO onto the log, then delivers at most one
// handler invocation. It reports whether the handler ran.
func (u *UART) step() bool {
	u.mu.Lock()
	if len(u.tx) > 0 {
		u.txLog = append(u.txLog, u.tx...)
		u.tx = u.tx[:0]
		u.status |= hal.IntrTxDone
	}
	fire := u.status & u.enabled
	h := u.handler
	u.mu.Unlock()
	if fire == 0 || h == nil {
		return false
	}
	h()
	return true
}

func (u *UART) wake() {
	select {
	case u.kick <- struct{}{}:
	default:
	}
}

func (u *UART) InterruptStatus() hal.Intr {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

func (u *UART) ClearInterrupt(mask hal.Intr) {
	u.mu.Lock()
	u.status &^= mask
	u.mu.Unlock()
}

func (u *UART) EnableInterrupt(mask hal.Intr) {
	u.mu.Lock()
	u.enabled |= mask
	u.mu.Unlock()
	u.wake()
}

func (u *UART) DisableInterrupt(mask hal.Intr) {
	u.mu.Lock()
	u.enabled &^= mask
	u.mu.Unlock()
}

func (u *UART) ReadFIFO(p []byte) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := copy(p, u.rx)
	u.rx = u.rx[n:]
	if len(u.rx) == 0 {
		u.status &^= hal.IntrRxData | hal.IntrRxTimeout
	}
	return n
}

func (u *UART) WriteFIFO(p []byte) int {
	u.mu.Lock()
	n := fifoCap - len(u.tx)
	if n > len(p) {
		n = len(p)
	}
	u.tx = append(u.tx, p[:n]...)
	u.mu.Unlock()
	u.wake()
	return n
}

func (u *UART) ResetRxFIFO() {
	u.mu.Lock()
	u.rx = u.rx[:0]
	u.status &^= hal.IntrRxData | hal.IntrRxTimeout
	u.mu.Unlock()
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
}

func (u *UART) SetRTS(transmit bool) {
	u.mu.Lock()
	u.rts = transmit
	u.mu.Unlock()
}

func (u *UART) InvertTx(invert bool) {
	u.mu.Lock()
	if u.invert && !invert {
		u.breaks++
	}
	u.invert = invert
	u.mu.Unlock()
}

func (u *UART) OnInterrupt(fn func()) {
	u.mu.Lock()
	u.handler = fn
	u.mu.Unlock()
}

// InjectBreak simulates a break condition on the line.
func (u *UART) InjectBreak() {
	u.mu.Lock()
	u.status |= hal.IntrRxBreak
	u.mu.Unlock()
	u.wake()
}

// InjectRx feeds received octets into the FIFO.
func (u *UART) InjectRx(p []byte) {
	u.mu.Lock()
	u.rx = append(u.rx, p...)
	u.status |= hal.IntrRxData
	u.mu.Unlock()
	u.wake()
}

// InjectOverflow simulates a receive FIFO overflow.
func (u *UART) InjectOverflow() {
	u.mu.Lock()
	u.status |= hal.IntrRxOverflow
	u.mu.Unlock()
	u.wake()
}

// InjectFrameError simulates a framing error.
func (u *UART) InjectFrameError() {
	u.mu.Lock()
	u.status |= hal.IntrRxError
	u.mu.Unlock()
	u.wake()
}

// TxLog returns a copy of everything written to the wire so far.
func (u *UART) TxLog() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]byte(nil), u.txLog...)
}

// ClearTxLog discards the transmit log.
func (u *UART) ClearTxLog() {
	u.mu.Lock()
	u.txLog = u.txLog[:0]
	u.mu.Unlock()
}

// Breaks reports how many break conditions have been generated.
func (u *UART) Breaks() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.breaks
}

// RTS reports the current bus direction, true meaning transmit.
func (u *UART) RTS() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rts
}

// Timer is a hal.Timer backed by the host clock.
type Timer struct {
	mu    sync.Mutex
	alarm func()
	timer *time.Timer
	epoch time.Time
}

// NewTimer returns a stopped timer.
func NewTimer() *Timer {
	return &Timer{epoch: time.Now()}
}

func (t *Timer) Arm(delay int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(time.Duration(delay)*time.Microsecond, t.fire)
}

func (t *Timer) fire() {
	t.mu.Lock()
	fn := t.alarm
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *Timer) Now() int64 {
	return time.Since(t.epoch).Microseconds()
}

func (t *Timer) OnAlarm(fn func()) {
	t.mu.Lock()
	t.alarm = fn
	t.mu.Unlock()
}
