// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package rdm

import "testing"

func TestUIDString(t *testing.T) {
	u := UID{ManID: 0x05e0, DevID: 0x1234abcd}
	if got := u.String(); got != "05e0:1234abcd" {
		t.Fatalf("String() = %q", got)
	}
	parsed, err := ParseUID("05e0:1234abcd")
	if err != nil {
		t.Fatal(err)
	}
	if parsed != u {
		t.Fatalf("ParseUID = %v, want %v", parsed, u)
	}
}

func TestParseUIDErrors(t *testing.T) {
	for _, s := range []string{"", "05e0", "05e0:xyz", "123456:00000001", "05e0:123456789"} {
		if _, err := ParseUID(s); err == nil {
			t.Errorf("ParseUID(%q) accepted invalid input", s)
		}
	}
}

func TestUIDTargets(t *testing.T) {
	dev := UID{ManID: 0x05e0, DevID: 42}
	tests := []struct {
		name string
		dest UID
		want bool
	}{
		{"exact", dev, true},
		{"other device", UID{ManID: 0x05e0, DevID: 43}, false},
		{"broadcast all", BroadcastAll, true},
		{"manufacturer broadcast", BroadcastToManufacturer(0x05e0), true},
		{"foreign manufacturer broadcast", BroadcastToManufacturer(0x1234), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dest.Targets(dev); got != tt.want {
				t.Fatalf("%v.Targets(%v) = %v, want %v", tt.dest, dev, got, tt.want)
			}
		})
	}
}

func TestUIDUintOrdering(t *testing.T) {
	lo := UID{ManID: 0x0001, DevID: 0xffffffff}
	hi := UID{ManID: 0x0002, DevID: 0x00000000}
	if lo.Uint() >= hi.Uint() {
		t.Fatal("manufacturer ID must dominate the ordering")
	}
	if UIDFromUint(hi.Uint()) != hi {
		t.Fatal("UIDFromUint does not invert Uint")
	}
}
