// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ben Rosenfeld

package cmd

import (
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx"
	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

var (
	monitorStatsEvery time.Duration
	monitorSlots      int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display bus traffic in human-readable format",
	Long: `Continuously decode and display DMX and RDM frames as they arrive.

Each frame is shown with a timestamp, its start code, and either the
leading slot levels (DMX) or the decoded RDM header. A statistics
summary is printed periodically.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorStatsEvery, "stats", 10*time.Second, "Statistics summary interval, 0 to disable")
	monitorCmd.Flags().IntVar(&monitorSlots, "slots", 16, "DMX slots to show per frame")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("dmx - Bus Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := dmx.NewStatistics()
	lastStats := time.Now()
	buf := make([]byte, dmx.PacketSize)

	for {
		n, err := conn.ReadFrame(buf)
		if err != nil {
			if err == ErrConnectionClosed {
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}
		if n == 0 {
			continue
		}

		frame := buf[:n]
		p := dmx.Packet{SC: int(frame[0]), Size: n}
		if _, ok := rdm.ReadHeader(frame); ok {
			p.IsRDM = true
			ts := time.Now().Format("15:04:05.000")
			fmt.Printf("[%s] RDM  %s\n", ts, rdm.FormatPacket(frame))
		} else {
			printDataFrame(frame)
		}
		stats.Update(p)

		if monitorStatsEvery > 0 && time.Since(lastStats) >= monitorStatsEvery {
			stats.CalculateRates()
			fmt.Printf("\n%s\n", stats)
			lastStats = time.Now()
		}
	}
}

func printDataFrame(frame []byte) {
	ts := time.Now().Format("15:04:05.000")
	kind := "DMX "
	if frame[0] != dmx.SCDMX {
		kind = fmt.Sprintf("ASC %#02x", frame[0])
	}
	show := len(frame) - 1
	if show > monitorSlots {
		show = monitorSlots
	}
	fmt.Printf("[%s] %s  %d slots  %s", ts, kind, len(frame)-1, hex.EncodeToString(frame[1:1+show]))
	if show < len(frame)-1 {
		fmt.Print("...")
	}
	fmt.Println()
}
