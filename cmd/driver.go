// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ben Rosenfeld

package cmd

import (
	"fmt"
	"log"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx"
	halserial "github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx/hal/serial"
	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx/store"
	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

// openDriver installs the DMX driver on the serial port named by the
// --port flag and enables it. The returned teardown closes everything.
func openDriver() (*dmx.Driver, func(), error) {
	if portName == "" {
		return nil, nil, fmt.Errorf("a serial port is required (--port)")
	}
	uid, err := rdm.ParseUID(uidFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --uid: %v", err)
	}

	uart, err := halserial.Open(portName)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(store.DefaultPath())
	if err != nil {
		// Persistence is a convenience; run without it.
		log.Printf("parameter store unavailable: %v", err)
		st = nil
	}

	cfg := dmx.Config{UID: uid}
	if st != nil {
		cfg.Store = st
	}
	d, err := dmx.Install(0, uart, halserial.NewTimer(), cfg)
	if err != nil {
		uart.Close()
		return nil, nil, err
	}
	if err := d.Enable(); err != nil {
		dmx.Delete(0)
		uart.Close()
		return nil, nil, err
	}

	teardown := func() {
		d.Disable()
		dmx.Delete(0)
		uart.Close()
	}
	return d, teardown, nil
}
