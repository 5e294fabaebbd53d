// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld
//
// dmx - DMX512/RDM bus tool
//
// A CLI for driving and inspecting DMX512/RDM buses over a serial
// transceiver or a WebSocket capture feed.

package main

import (
	"os"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
