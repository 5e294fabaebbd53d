// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

// Package dmx implements a DMX512 port driver with an RDM responder and
// controller transaction layer on top of the same wire.
//
// The driver runs against the hardware interfaces in pkg/dmx/hal. An
// interrupt-driven state machine produces and consumes frames (break,
// mark-after-break, data slots); the transaction layer enforces RDM's
// inter-packet spacing and early-timeout rules; a fixed-capacity
// parameter dictionary backs the responder. Application goroutines talk
// to the interrupt side only through the driver's synchronization
// primitives, never the peripheral directly.
package dmx

import "errors"

const (
	// PacketSize is the largest DMX frame: a start code plus 512 slots.
	PacketSize = 513

	// BaudRate is the DMX512 signalling rate.
	BaudRate = 250000

	// SCDMX is the null start code of a plain dimmer frame.
	SCDMX = 0x00

	DefaultBreakLen = 176 // µs
	DefaultMABLen   = 12  // µs

	MinBreakLen = 92 // µs
	MaxBreakLen = 1_000_000
	MinMABLen   = 12 // µs
	MaxMABLen   = 999_999
)

// MaxPorts is the size of the port arena; one driver may be installed
// per slot.
const MaxPorts = 3

var (
	ErrInvalidPort      = errors.New("dmx: invalid port number")
	ErrNotInstalled     = errors.New("dmx: driver not installed")
	ErrAlreadyInstalled = errors.New("dmx: driver already installed")
	ErrNotEnabled       = errors.New("dmx: driver not enabled")
	ErrTimeout          = errors.New("dmx: timed out")
	ErrBusy             = errors.New("dmx: another task is waiting on the driver")
	ErrInvalidRequest   = errors.New("dmx: command class is not a request")
	ErrOverflow         = errors.New("dmx: receiver overflow")
	ErrFramingError     = errors.New("dmx: framing error")
	ErrParameterExists  = errors.New("dmx: parameter already registered")
	ErrParameterUnknown = errors.New("dmx: parameter not registered")
	ErrTableFull        = errors.New("dmx: parameter table full")
	ErrNoStorage        = errors.New("dmx: no backing storage")
	ErrQueueFull        = errors.New("dmx: message queue full")
)

// Logger receives the driver's warnings. The default writes through the
// standard library logger.
type Logger func(format string, args ...any)

// Store persists parameter data outside the driver's lifetime. Load
// reports ok=false when nothing is stored for the parameter. The driver
// calls Load during installation and Save opportunistically whenever a
// parameter whose persist flag is set changes.
type Store interface {
	Load(pid uint16) (data []byte, ok bool, err error)
	Save(pid uint16, data []byte) error
}
