// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ben Rosenfeld

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx"
	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

var discoverInfo bool

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find RDM responders on the bus",
	Long: `Run full RDM discovery: un-mute every responder, then binary-search
the UID space with DISC_UNIQUE_BRANCH, muting each responder as it is
found so the remaining ones become separable.`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverInfo, "info", false, "Query DEVICE_INFO for each responder found")
	rootCmd.AddCommand(discoverCmd)
}

const rdmTimeout = 3 * time.Second

func runDiscover(cmd *cobra.Command, args []string) error {
	d, teardown, err := openDriver()
	if err != nil {
		return err
	}
	defer teardown()

	// Wake everyone up.
	if _, err := d.SendRequest(dmx.Request{
		DestUID: rdm.BroadcastAll,
		CC:      rdm.CCDiscCommand,
		PID:     rdm.PIDDiscUnMute,
	}, rdmTimeout); err != nil && err != dmx.ErrTimeout {
		return fmt.Errorf("un-mute broadcast: %v", err)
	}

	var found []rdm.UID
	if err := discoverBranch(d, 0, rdm.BroadcastAll.Uint()-1, &found); err != nil {
		return err
	}

	fmt.Printf("%d responder(s) found\n", len(found))
	for _, uid := range found {
		fmt.Printf("  %s\n", uid)
		if discoverInfo {
			printDeviceInfo(d, uid)
		}
	}
	return nil
}

// discoverBranch probes [lower, upper] and appends every responder it
// can isolate, muting each one so deeper probes see only the rest.
func discoverBranch(d *dmx.Driver, lower, upper uint64, found *[]rdm.UID) error {
	for {
		pd := make([]byte, 12)
		putUID48(pd[0:6], lower)
		putUID48(pd[6:12], upper)
		ack, err := d.SendRequest(dmx.Request{
			DestUID: rdm.BroadcastAll,
			CC:      rdm.CCDiscCommand,
			PID:     rdm.PIDDiscUniqueBranch,
			PD:      pd,
		}, rdmTimeout)
		if err == dmx.ErrTimeout {
			return nil // branch is empty
		}
		if err != nil {
			return fmt.Errorf("discovery probe: %v", err)
		}

		switch ack.Type {
		case rdm.ResponseTypeAck:
			// A single responder decoded cleanly; mute it and re-probe
			// the same branch for the ones it was masking.
			uid := ack.Header.SrcUID
			if muted, err := muteResponder(d, uid); err != nil {
				return err
			} else if muted {
				*found = append(*found, uid)
				continue
			}
			// The decode was a lucky collision; fall through and split.
		case rdm.ResponseTypeNone:
			return nil
		}

		// Collision: split the branch.
		if lower == upper {
			// A single UID that will not decode; give up on it.
			return nil
		}
		mid := lower + (upper-lower)/2
		if err := discoverBranch(d, lower, mid, found); err != nil {
			return err
		}
		return discoverBranch(d, mid+1, upper, found)
	}
}

// muteResponder sends a unicast DISC_MUTE and reports whether the
// responder acknowledged, confirming it really exists.
func muteResponder(d *dmx.Driver, uid rdm.UID) (bool, error) {
	ack, err := d.SendRequest(dmx.Request{
		DestUID: uid,
		CC:      rdm.CCDiscCommand,
		PID:     rdm.PIDDiscMute,
	}, rdmTimeout)
	if err == dmx.ErrTimeout {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("muting %s: %v", uid, err)
	}
	return ack.Type == rdm.ResponseTypeAck, nil
}

func printDeviceInfo(d *dmx.Driver, uid rdm.UID) {
	ack, err := d.SendRequest(dmx.Request{
		DestUID: uid,
		CC:      rdm.CCGetCommand,
		PID:     rdm.PIDDeviceInfo,
	}, rdmTimeout)
	if err != nil || ack.Type != rdm.ResponseTypeAck || len(ack.PD) < 19 {
		fmt.Printf("    DEVICE_INFO unavailable\n")
		return
	}
	pd := ack.PD
	model := uint16(pd[4])<<8 | uint16(pd[5])
	footprint := uint16(pd[12])<<8 | uint16(pd[13])
	start := uint16(pd[14])<<8 | uint16(pd[15])
	fmt.Printf("    model %#04x, footprint %d, start address %d\n", model, footprint, start)
}

func putUID48(b []byte, v uint64) {
	b[0] = byte(v >> 40)
	b[1] = byte(v >> 32)
	b[2] = byte(v >> 24)
	b[3] = byte(v >> 16)
	b[4] = byte(v >> 8)
	b[5] = byte(v)
}
