// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ben Rosenfeld

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Controller identity
	uidFlag string
)

var rootCmd = &cobra.Command{
	Use:   "dmx",
	Short: "DMX512/RDM bus tool",
	Long: `dmx - a CLI for driving and inspecting DMX512/RDM buses.

Provides commands for transmitting DMX universes, running RDM discovery,
getting and setting RDM parameters, and live monitoring.

Connection modes:
  Serial:    --port /dev/ttyUSB0
  WebSocket: --url ws://host/path [--username user]

Commands that transmit (send, discover, get, set, tui) need a serial port;
monitor also accepts a WebSocket capture feed. For WebSocket authentication
the password is read from the DMX_PASSWORD environment variable, or prompted
interactively if not set. There is deliberately no --password flag so
credentials never land in shell history.`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&uidFlag, "uid", "7ff0:12345678", "Controller UID (manid:devid)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
