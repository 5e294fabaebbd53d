// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ben Rosenfeld

package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx"
	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

var (
	getSubDevice uint16
	getFormat    string
)

var getCmd = &cobra.Command{
	Use:   "get <uid> <pid>",
	Short: "GET an RDM parameter",
	Long: `Send a GET_COMMAND for one parameter and print the response.

The parameter may be a name (DEVICE_INFO, DEVICE_LABEL, ...) or a
numeric ID. With --format the parameter data is decoded field by field
instead of dumped as hex.

Example:
  dmx get -p /dev/ttyUSB0 05e0:00000042 SOFTWARE_VERSION_LABEL`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

func init() {
	getCmd.Flags().Uint16Var(&getSubDevice, "sub", 0, "Sub-device (0 is the root device)")
	getCmd.Flags().StringVar(&getFormat, "format", "", "Parameter data format string for decoding")
	rootCmd.AddCommand(getCmd)
}

// pidNames maps the parameter names this tool accepts on the command
// line; anything else must be given numerically.
var pidNames = map[string]rdm.PID{
	"DISC_MUTE":              rdm.PIDDiscMute,
	"DISC_UN_MUTE":           rdm.PIDDiscUnMute,
	"QUEUED_MESSAGE":         rdm.PIDQueuedMessage,
	"SUPPORTED_PARAMETERS":   rdm.PIDSupportedParameters,
	"DEVICE_INFO":            rdm.PIDDeviceInfo,
	"DEVICE_LABEL":           rdm.PIDDeviceLabel,
	"SOFTWARE_VERSION_LABEL": rdm.PIDSoftwareVersionLabel,
	"DMX_START_ADDRESS":      rdm.PIDDMXStartAddress,
	"IDENTIFY_DEVICE":        rdm.PIDIdentifyDevice,
	"RESET_DEVICE":           rdm.PIDResetDevice,
}

func parsePID(s string) (rdm.PID, error) {
	if pid, ok := pidNames[strings.ToUpper(s)]; ok {
		return pid, nil
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown parameter %q", s)
	}
	return rdm.PID(v), nil
}

func runGet(cmd *cobra.Command, args []string) error {
	dest, err := rdm.ParseUID(args[0])
	if err != nil {
		return fmt.Errorf("invalid destination UID: %v", err)
	}
	pid, err := parsePID(args[1])
	if err != nil {
		return err
	}

	d, teardown, err := openDriver()
	if err != nil {
		return err
	}
	defer teardown()

	ack, err := d.SendRequest(dmx.Request{
		DestUID:   dest,
		SubDevice: getSubDevice,
		CC:        rdm.CCGetCommand,
		PID:       pid,
	}, rdmTimeout)
	if err == dmx.ErrTimeout {
		return fmt.Errorf("no response from %s", dest)
	}
	if err != nil {
		return err
	}
	return printAck(pid, ack)
}

func printAck(pid rdm.PID, ack dmx.Ack) error {
	switch ack.Type {
	case rdm.ResponseTypeAck:
	case rdm.ResponseTypeAckTimer:
		fmt.Printf("%v: ACK_TIMER, retry in %v\n", pid, ack.TimerDelay)
		return nil
	case rdm.ResponseTypeNackReason:
		return fmt.Errorf("%v: NACK (%v)", pid, ack.NackReason)
	case rdm.ResponseTypeAckOverflow:
		fmt.Printf("%v: ACK_OVERFLOW, partial data follows\n", pid)
	default:
		return fmt.Errorf("%v: invalid response", pid)
	}

	if getFormat != "" {
		f, err := rdm.ParseFormat(getFormat)
		if err != nil {
			return fmt.Errorf("bad --format: %v", err)
		}
		vals, err := f.Decode(ack.PD)
		if err != nil {
			return fmt.Errorf("decoding response: %v", err)
		}
		for _, v := range vals {
			fmt.Printf("%v: %v\n", pid, v)
		}
		return nil
	}

	if len(ack.PD) == 0 {
		fmt.Printf("%v: ACK\n", pid)
		return nil
	}
	if isPrintable(ack.PD) {
		fmt.Printf("%v: %q\n", pid, string(ack.PD))
		return nil
	}
	fmt.Printf("%v: %s\n", pid, hex.EncodeToString(ack.PD))
	return nil
}

func isPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return len(b) > 0
}
