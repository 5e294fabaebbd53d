// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ben Rosenfeld

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx"
)

var (
	sendStart int
	sendCount int
	sendFPS   int
)

var sendCmd = &cobra.Command{
	Use:   "send <levels>",
	Short: "Transmit DMX level data",
	Long: `Transmit a DMX universe with the given slot levels.

Levels are comma-separated 0-255 values placed starting at --start
(slot 1 by default); every other slot is zero. The universe is repeated
--count times at --fps frames per second; count 0 repeats until
interrupted.

Example:
  dmx send -p /dev/ttyUSB0 255,128,0 --start 10 --count 40`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().IntVar(&sendStart, "start", 1, "First slot to fill (1-512)")
	sendCmd.Flags().IntVar(&sendCount, "count", 1, "Frames to send, 0 for continuous")
	sendCmd.Flags().IntVar(&sendFPS, "fps", 40, "Frame rate for repeated sends")
	rootCmd.AddCommand(sendCmd)
}

func parseLevels(s string) ([]byte, error) {
	fields := strings.Split(s, ",")
	levels := make([]byte, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 0, 8)
		if err != nil {
			return nil, fmt.Errorf("bad level %q: %v", f, err)
		}
		levels = append(levels, byte(v))
	}
	return levels, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	levels, err := parseLevels(args[0])
	if err != nil {
		return err
	}
	if sendStart < 1 || sendStart+len(levels)-1 > dmx.PacketSize-1 {
		return fmt.Errorf("slots %d-%d out of range 1-%d", sendStart, sendStart+len(levels)-1, dmx.PacketSize-1)
	}
	if sendFPS < 1 {
		return fmt.Errorf("--fps must be at least 1")
	}

	d, teardown, err := openDriver()
	if err != nil {
		return err
	}
	defer teardown()

	frame := make([]byte, dmx.PacketSize)
	copy(frame[sendStart:], levels)
	if d.Write(0, frame) != len(frame) {
		return fmt.Errorf("writing the universe failed")
	}

	interval := time.Second / time.Duration(sendFPS)
	for i := 0; sendCount == 0 || i < sendCount; i++ {
		if _, err := d.Send(dmx.PacketSize); err != nil {
			return fmt.Errorf("send: %v", err)
		}
		if err := d.WaitSent(time.Second); err != nil {
			return fmt.Errorf("waiting for transmission: %v", err)
		}
		time.Sleep(interval)
	}
	return nil
}
