// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package rdm

import (
	"encoding/hex"
	"fmt"
)

// FormatPacket formats a wire packet into a human-readable one-liner for
// monitors and logs. Invalid packets come back as a hex dump.
func FormatPacket(buf []byte) string {
	h, ok := ReadHeader(buf)
	if !ok {
		return fmt.Sprintf("invalid RDM packet (%d octets): %s", len(buf), hex.EncodeToString(buf))
	}
	if h.IsDiscUniqueBranchResponse() {
		return fmt.Sprintf("DISC_UNIQUE_BRANCH response euid=%s", h.SrcUID)
	}

	result := fmt.Sprintf("%s %s %s -> %s tn=%d sub=%d pdl=%d",
		h.CC, h.PID, h.SrcUID, h.DestUID, h.TN, h.SubDevice, h.PDL)
	if !h.CC.IsRequest() {
		result += fmt.Sprintf(" %s", h.ResponseType())
	}
	if h.PDL > 0 {
		result += " " + FormatPD(h.PID, buf[HeaderLen:HeaderLen+int(h.PDL)])
	}
	return result
}

// FormatPD formats parameter data, decoding it for the parameters whose
// layout is standard and falling back to hex for the rest.
func FormatPD(pid PID, pd []byte) string {
	switch pid {
	case PIDDeviceInfo:
		if len(pd) == 19 {
			return fmt.Sprintf("model=%#04x category=%#04x footprint=%d personality=%d/%d start=%d",
				uint16(pd[4])<<8|uint16(pd[5]),
				uint16(pd[6])<<8|uint16(pd[7]),
				uint16(pd[12])<<8|uint16(pd[13]),
				pd[16], pd[17],
				uint16(pd[14])<<8|uint16(pd[15]))
		}
	case PIDDMXStartAddress:
		if len(pd) == 2 {
			return fmt.Sprintf("address=%d", uint16(pd[0])<<8|uint16(pd[1]))
		}
	case PIDIdentifyDevice:
		if len(pd) == 1 {
			if pd[0] != 0 {
				return "identify=on"
			}
			return "identify=off"
		}
	case PIDSoftwareVersionLabel, PIDDeviceLabel, PIDManufacturerLabel, PIDDeviceModelDesc:
		return fmt.Sprintf("%q", trimNUL(pd))
	case PIDSupportedParameters:
		if len(pd)%2 == 0 {
			s := ""
			for i := 0; i < len(pd); i += 2 {
				if i > 0 {
					s += ","
				}
				s += PID(uint16(pd[i])<<8 | uint16(pd[i+1])).String()
			}
			return s
		}
	}
	return hex.EncodeToString(pd)
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
