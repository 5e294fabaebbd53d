// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package rdm

import (
	"fmt"
	"strconv"
	"strings"
)

// UID is the 48-bit unique identifier of an RDM device: a 16-bit ESTA
// manufacturer ID followed by a 32-bit device ID.
type UID struct {
	ManID uint16
	DevID uint32
}

// BroadcastAll addresses every device on the bus.
var BroadcastAll = UID{ManID: 0xffff, DevID: 0xffffffff}

// BroadcastToManufacturer addresses every device made by manID.
func BroadcastToManufacturer(manID uint16) UID {
	return UID{ManID: manID, DevID: 0xffffffff}
}

// IsBroadcast reports whether u is a broadcast address of any scope.
func (u UID) IsBroadcast() bool { return u.DevID == 0xffffffff }

// IsNull reports whether u is the all-zero UID.
func (u UID) IsNull() bool { return u.ManID == 0 && u.DevID == 0 }

// Targets reports whether a packet addressed to u is meant for a device
// whose own UID is dev.
func (u UID) Targets(dev UID) bool {
	if u == dev {
		return true
	}
	return u.IsBroadcast() && (u.ManID == 0xffff || u.ManID == dev.ManID)
}

// Uint returns u packed into the low 48 bits of a uint64, useful for
// ordering UIDs during discovery.
func (u UID) Uint() uint64 {
	return uint64(u.ManID)<<32 | uint64(u.DevID)
}

// UIDFromUint unpacks the low 48 bits of v.
func UIDFromUint(v uint64) UID {
	return UID{ManID: uint16(v >> 32), DevID: uint32(v)}
}

// String formats u in the conventional mmmm:dddddddd hex form.
func (u UID) String() string {
	return fmt.Sprintf("%04x:%08x", u.ManID, u.DevID)
}

// ParseUID parses the mmmm:dddddddd form produced by String.
func ParseUID(s string) (UID, error) {
	man, dev, ok := strings.Cut(s, ":")
	if !ok {
		return UID{}, fmt.Errorf("rdm: invalid UID %q: missing separator", s)
	}
	m, err := strconv.ParseUint(man, 16, 16)
	if err != nil {
		return UID{}, fmt.Errorf("rdm: invalid UID %q: %w", s, err)
	}
	d, err := strconv.ParseUint(dev, 16, 32)
	if err != nil {
		return UID{}, fmt.Errorf("rdm: invalid UID %q: %w", s, err)
	}
	return UID{ManID: uint16(m), DevID: uint32(d)}, nil
}

// putUID writes u to b in wire (big-endian) order. b must hold 6 bytes.
func putUID(b []byte, u UID) {
	b[0] = byte(u.ManID >> 8)
	b[1] = byte(u.ManID)
	b[2] = byte(u.DevID >> 24)
	b[3] = byte(u.DevID >> 16)
	b[4] = byte(u.DevID >> 8)
	b[5] = byte(u.DevID)
}

// getUID reads a wire-order UID from b. b must hold 6 bytes.
func getUID(b []byte) UID {
	return UID{
		ManID: uint16(b[0])<<8 | uint16(b[1]),
		DevID: uint32(b[2])<<24 | uint32(b[3])<<16 | uint32(b[4])<<8 | uint32(b[5]),
	}
}
