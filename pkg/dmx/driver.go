// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import (
	"fmt"
	"log"
	"sync"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx/hal"
	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

// DeviceInfo is the static portion of the responder's DEVICE_INFO
// parameter.
type DeviceInfo struct {
	ModelID            uint16
	ProductCategory    uint16
	SoftwareVersionID  uint32
	Footprint          uint16
	CurrentPersonality uint8
	PersonalityCount   uint8
	StartAddress       uint16
	SubDeviceCount     uint16
	SensorCount        uint8
}

// Config parameterizes a driver installation. The zero value is usable;
// missing fields take the documented defaults.
type Config struct {
	// UID is this device's RDM address. Leaving it zero disables the
	// responder role for the port.
	UID rdm.UID

	BreakLen int64 // µs, clamped to [MinBreakLen, MaxBreakLen]
	MABLen   int64 // µs, clamped to [MinMABLen, MaxMABLen]

	// QueueSize bounds the receive event queue. Default 32.
	QueueSize int
	// ParameterCapacity bounds the parameter table. Default 16.
	ParameterCapacity int
	// HeapSize bounds the parameter backing storage in bytes. Default 256.
	HeapSize int

	DeviceInfo           DeviceInfo
	SoftwareVersionLabel string
	DeviceLabel          string

	Store Store
	Log   Logger
}

func (cfg *Config) applyDefaults() {
	if cfg.BreakLen == 0 {
		cfg.BreakLen = DefaultBreakLen
	}
	if cfg.MABLen == 0 {
		cfg.MABLen = DefaultMABLen
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.ParameterCapacity <= 0 {
		cfg.ParameterCapacity = 16
	}
	if cfg.HeapSize <= 0 {
		cfg.HeapSize = 256
	}
	if cfg.DeviceInfo.PersonalityCount == 0 {
		cfg.DeviceInfo.PersonalityCount = 1
	}
	if cfg.DeviceInfo.CurrentPersonality == 0 {
		cfg.DeviceInfo.CurrentPersonality = 1
	}
	if cfg.DeviceInfo.StartAddress == 0 {
		cfg.DeviceInfo.StartAddress = 1
	}
	if cfg.Log == nil {
		cfg.Log = log.Printf
	}
}

func clamp64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// driver state flags, guarded by the critical section.
const (
	flagEnabled uint8 = 1 << iota
	flagSending
	flagSentLast // the last bus action was a transmission by this port
)

// txPhase is the transmit state machine position. An armed timer alarm
// is only meaningful for the phase that armed it.
type txPhase uint8

const (
	phaseIdle txPhase = iota
	phaseAwaitGap
	phaseBreak
	phaseMarkAfterBreak
	phaseWriteData
	phaseAwaitRx
)

// sendClass is the RDM classification of the most recent transmission,
// taken from the packet's first bytes immediately before it was sent.
type sendClass struct {
	isRDM       bool
	isRequest   bool
	isBroadcast bool
	isDUB       bool
}

// Driver is one installed DMX port. All exported methods are safe for
// concurrent use; blocking methods serialize on an internal mutex that
// interrupt context never takes.
type Driver struct {
	port  int
	uart  hal.UART
	timer hal.Timer
	log   Logger
	store Store
	uid   rdm.UID

	mu sync.Mutex // task-level operations
	cs critical   // fields shared with interrupt context

	// Guarded by cs.
	buf        [PacketSize]byte
	head       int // [-1, PacketSize]; -1 discards until the next break
	txSize     int
	rxSize     int
	txHead     int
	flags      uint8
	tn         uint8
	lastSlotTS int64
	phase      txPhase
	lastSent   sendClass
	rxRequest  bool // last received frame was an RDM request for us

	breakLen int64
	mabLen   int64

	events chan frameEvent
	note   *notifier

	params parameterTable
	muted  bool
}

var (
	portsMu sync.Mutex
	ports   [MaxPorts]*Driver
)

// Install creates the driver for a port slot and binds it to the
// peripheral and timer. Exactly one driver may occupy a slot at a time.
// The driver starts disabled; call Enable once the bus is ready.
func Install(port int, u hal.UART, t hal.Timer, cfg Config) (*Driver, error) {
	if port < 0 || port >= MaxPorts {
		return nil, ErrInvalidPort
	}
	cfg.applyDefaults()

	portsMu.Lock()
	defer portsMu.Unlock()
	if ports[port] != nil {
		return nil, ErrAlreadyInstalled
	}

	d := &Driver{
		port:     port,
		uart:     u,
		timer:    t,
		log:      cfg.Log,
		store:    cfg.Store,
		uid:      cfg.UID,
		head:     -1,
		txSize:   PacketSize,
		breakLen: clamp64(cfg.BreakLen, MinBreakLen, MaxBreakLen),
		mabLen:   clamp64(cfg.MABLen, MinMABLen, MaxMABLen),
		events:   make(chan frameEvent, cfg.QueueSize),
		note:     newNotifier(),
	}
	d.params.init(cfg.ParameterCapacity, cfg.HeapSize)
	if err := d.registerDefaults(cfg); err != nil {
		return nil, fmt.Errorf("dmx: registering default parameters: %w", err)
	}

	u.SetBaudRate(BaudRate)
	u.DisableInterrupt(hal.IntrRx | hal.IntrTxDone)
	u.ClearInterrupt(hal.IntrRx | hal.IntrTxDone)
	u.OnInterrupt(d.handleUART)
	t.OnAlarm(d.handleTimer)

	ports[port] = d
	return d, nil
}

// Port returns the driver installed on a slot.
func Port(port int) (*Driver, bool) {
	if port < 0 || port >= MaxPorts {
		return nil, false
	}
	portsMu.Lock()
	defer portsMu.Unlock()
	d := ports[port]
	return d, d != nil
}

// Delete disables the driver and frees its port slot.
func Delete(port int) error {
	if port < 0 || port >= MaxPorts {
		return ErrInvalidPort
	}
	portsMu.Lock()
	d := ports[port]
	ports[port] = nil
	portsMu.Unlock()
	if d == nil {
		return ErrNotInstalled
	}
	return d.Disable()
}

// Enable starts servicing the bus: the port listens for incoming frames
// and accepts Send calls.
func (d *Driver) Enable() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cs.enter()
	d.flags |= flagEnabled
	d.head = -1
	d.phase = phaseIdle
	d.cs.exit()

	d.uart.SetRTS(false)
	d.uart.ResetRxFIFO()
	d.uart.ClearInterrupt(hal.IntrRx | hal.IntrTxDone)
	d.uart.EnableInterrupt(hal.IntrRx)
	return nil
}

// Disable stops servicing the bus. In-flight state is dropped; pending
// receive events stay readable.
func (d *Driver) Disable() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.uart.DisableInterrupt(hal.IntrRx | hal.IntrTxDone)
	d.timer.Stop()

	d.cs.enter()
	d.flags &^= flagEnabled | flagSending
	d.phase = phaseIdle
	d.cs.exit()
	return nil
}

// Enabled reports whether the port is servicing the bus.
func (d *Driver) Enabled() bool {
	d.cs.enter()
	defer d.cs.exit()
	return d.flags&flagEnabled != 0
}

// UID returns the device address the responder answers to.
func (d *Driver) UID() rdm.UID { return d.uid }

// BreakLen returns the transmit break duration in microseconds.
func (d *Driver) BreakLen() int64 {
	d.cs.enter()
	defer d.cs.exit()
	return d.breakLen
}

// SetBreakLen sets the transmit break duration, clamped to the legal
// DMX range.
func (d *Driver) SetBreakLen(us int64) {
	d.cs.enter()
	d.breakLen = clamp64(us, MinBreakLen, MaxBreakLen)
	d.cs.exit()
}

// MABLen returns the mark-after-break duration in microseconds.
func (d *Driver) MABLen() int64 {
	d.cs.enter()
	defer d.cs.exit()
	return d.mabLen
}

// SetMABLen sets the mark-after-break duration, clamped to the legal
// DMX range.
func (d *Driver) SetMABLen(us int64) {
	d.cs.enter()
	d.mabLen = clamp64(us, MinMABLen, MaxMABLen)
	d.cs.exit()
}

// BaudRate returns the peripheral's current rate.
func (d *Driver) BaudRate() int { return d.uart.BaudRate() }

// SetBaudRate overrides the signalling rate. Standard DMX uses BaudRate;
// this exists for bench testing against marginal equipment.
func (d *Driver) SetBaudRate(rate int) { d.uart.SetBaudRate(rate) }

// TransactionNumber returns the controller transaction counter as it
// will be stamped into the next outgoing request.
func (d *Driver) TransactionNumber() uint8 {
	d.cs.enter()
	defer d.cs.exit()
	return d.tn
}
