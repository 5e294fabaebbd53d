// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package rdm

import "testing"

func TestParseFormat(t *testing.T) {
	valid := []string{"", "b", "w", "d$", "x01x00wwdwbbwwb$", "a", "a$", "ba$", "uv", "wv$", "x01b$", "u"}
	for _, s := range valid {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q): %v", s, err)
		}
	}
	invalid := []string{"ab", "vb", "$b", "a$b", "q", "x0", "xgg", "aa"}
	for _, s := range invalid {
		if _, err := ParseFormat(s); err == nil {
			t.Errorf("ParseFormat(%q) accepted invalid format", s)
		}
	}
}

func TestFormatMatches(t *testing.T) {
	tests := []struct {
		format string
		pdl    int
		want   bool
	}{
		{"", 0, true},
		{"", 1, false},
		{"b$", 1, true},
		{"b$", 2, false},
		{"w", 2, true},
		{"w", 6, true}, // repeats
		{"w", 3, false},
		{"x01x00wwdwbbwwb$", 19, true}, // DEVICE_INFO
		{"x01x00wwdwbbwwb$", 18, false},
		{"a$", 6, true},
		{"wv$", 2, true},
		{"wv$", 8, true},
		{"a", 0, true},
		{"a", 32, true},
		{"a", 33, false},
		{"uv", 6, true},
		{"uv", 12, true},
		{"uv", 9, false},
	}
	for _, tt := range tests {
		f, err := ParseFormat(tt.format)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", tt.format, err)
		}
		if got := f.Matches(tt.pdl); got != tt.want {
			t.Errorf("%q.Matches(%d) = %v, want %v", tt.format, tt.pdl, got, tt.want)
		}
	}
}

func TestFormatDecode(t *testing.T) {
	f, err := ParseFormat("wub$")
	if err != nil {
		t.Fatal(err)
	}
	pd := []byte{0x01, 0x02, 0x05, 0xe0, 0x00, 0x00, 0x00, 0x2a, 0x07}
	vals, err := f.Decode(pd)
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != 3 {
		t.Fatalf("decoded %d fields, want 3", len(vals))
	}
	if vals[0].Uint != 0x0102 {
		t.Errorf("field 0 = %#x, want 0x0102", vals[0].Uint)
	}
	if want := (UID{ManID: 0x05e0, DevID: 42}); vals[1].UID != want {
		t.Errorf("field 1 = %v, want %v", vals[1].UID, want)
	}
	if vals[2].Uint != 7 {
		t.Errorf("field 2 = %d, want 7", vals[2].Uint)
	}
}

func TestFormatDecodeText(t *testing.T) {
	f, err := ParseFormat("a")
	if err != nil {
		t.Fatal(err)
	}
	vals, err := f.Decode([]byte("dimmer\x00\x00"))
	if err != nil {
		t.Fatal(err)
	}
	if vals[0].Text != "dimmer" {
		t.Fatalf("Text = %q, want %q", vals[0].Text, "dimmer")
	}
}
