// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ben Rosenfeld

package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx"
	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

var (
	setSubDevice uint16
	setText      bool
)

var setCmd = &cobra.Command{
	Use:   "set <uid> <pid> [data]",
	Short: "SET an RDM parameter",
	Long: `Send a SET_COMMAND for one parameter.

Data is hex octets by default (--text sends it as ASCII). Broadcast
destinations (ffff:ffffffff or manid:ffffffff) are accepted; broadcast
sets produce no response.

Examples:
  dmx set -p /dev/ttyUSB0 05e0:00000042 DMX_START_ADDRESS 000a
  dmx set -p /dev/ttyUSB0 05e0:00000042 DEVICE_LABEL --text "dimmer 12"`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runSet,
}

func init() {
	setCmd.Flags().Uint16Var(&setSubDevice, "sub", 0, "Sub-device (0 is the root device)")
	setCmd.Flags().BoolVar(&setText, "text", false, "Treat data as ASCII instead of hex")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	dest, err := rdm.ParseUID(args[0])
	if err != nil {
		return fmt.Errorf("invalid destination UID: %v", err)
	}
	pid, err := parsePID(args[1])
	if err != nil {
		return err
	}

	var pd []byte
	if len(args) == 3 {
		if setText {
			pd = []byte(args[2])
		} else if pd, err = parseSetData(args[2]); err != nil {
			return err
		}
	}
	if len(pd) > rdm.MaxPDL {
		return fmt.Errorf("parameter data is %d octets, the limit is %d", len(pd), rdm.MaxPDL)
	}

	d, teardown, err := openDriver()
	if err != nil {
		return err
	}
	defer teardown()

	ack, err := d.SendRequest(dmx.Request{
		DestUID:   dest,
		SubDevice: setSubDevice,
		CC:        rdm.CCSetCommand,
		PID:       pid,
		PD:        pd,
	}, rdmTimeout)
	if err == dmx.ErrTimeout {
		return fmt.Errorf("no response from %s", dest)
	}
	if err != nil {
		return err
	}
	if dest.IsBroadcast() {
		fmt.Printf("%v: broadcast sent\n", pid)
		return nil
	}
	return printAck(pid, ack)
}

// parseSetData accepts hex octets, with a decimal fallback for a single
// small value so "dmx set ... IDENTIFY_DEVICE 1" does what it looks like.
func parseSetData(s string) ([]byte, error) {
	if pd, err := hex.DecodeString(s); err == nil {
		return pd, nil
	}
	if v, err := strconv.ParseUint(s, 10, 8); err == nil {
		return []byte{byte(v)}, nil
	}
	return nil, fmt.Errorf("data %q is neither hex octets nor a small decimal", s)
}
