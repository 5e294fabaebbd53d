// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package rdm

import (
	"fmt"
	"strconv"
)

// Parameter data layouts are described by compact format strings, one
// token per field in wire order:
//
//	b  uint8            w  uint16 (big-endian)
//	d  uint32 (big-endian)
//	u  48-bit UID
//	v  optional UID, present or absent, last field only
//	a  ASCII text, 0-32 octets, last field only
//	xNN literal octet with hex value NN
//	$  terminator: the layout occurs exactly once
//
// Without a terminator or a variable-length tail, the layout repeats to
// fill the parameter data, as SUPPORTED_PARAMETERS ("w") does.
const maxASCIILen = 32

type field struct {
	kind byte // one of b w d u v a x
	lit  byte // literal value for x fields
}

// Format is a parsed parameter data format string.
type Format struct {
	raw     string
	fields  []field
	fixed   int  // octets in one pass, excluding a variable tail
	tail    byte // 0, 'a' or 'v'
	oneShot bool // terminated with '$'
}

func (f *Format) String() string { return f.raw }

// FixedSize returns the octet count of one pass of the fixed fields.
func (f *Format) FixedSize() int { return f.fixed }

// MaxSize returns the largest parameter data length one pass can occupy.
func (f *Format) MaxSize() int {
	switch f.tail {
	case 'a':
		return f.fixed + maxASCIILen
	case 'v':
		return f.fixed + 6
	}
	return f.fixed
}

// ParseFormat validates and parses a format string. The empty string is
// valid and describes parameters that carry no data.
func ParseFormat(s string) (*Format, error) {
	f := &Format{raw: s}
	for i := 0; i < len(s); i++ {
		c := s[i]
		// A tail token may still be followed by the terminator.
		if f.oneShot || (f.tail != 0 && c != '$') {
			return nil, fmt.Errorf("rdm: format %q: %q must be the final token", s, s[i-1])
		}
		switch c {
		case 'b', 'B':
			f.fields = append(f.fields, field{kind: 'b'})
			f.fixed++
		case 'w', 'W':
			f.fields = append(f.fields, field{kind: 'w'})
			f.fixed += 2
		case 'd', 'D':
			f.fields = append(f.fields, field{kind: 'd'})
			f.fixed += 4
		case 'u', 'U':
			f.fields = append(f.fields, field{kind: 'u'})
			f.fixed += 6
		case 'v', 'V':
			f.fields = append(f.fields, field{kind: 'v'})
			f.tail = 'v'
		case 'a', 'A':
			f.fields = append(f.fields, field{kind: 'a'})
			f.tail = 'a'
		case 'x', 'X':
			if i+2 >= len(s) {
				return nil, fmt.Errorf("rdm: format %q: x needs two hex digits", s)
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("rdm: format %q: %w", s, err)
			}
			f.fields = append(f.fields, field{kind: 'x', lit: byte(v)})
			f.fixed++
			i += 2
		case '$':
			f.oneShot = true
		default:
			return nil, fmt.Errorf("rdm: format %q: unknown token %q", s, c)
		}
	}
	if f.fixed > MaxPDL {
		return nil, fmt.Errorf("rdm: format %q exceeds maximum parameter data length", s)
	}
	return f, nil
}

// Matches reports whether a parameter data length is legal for f.
func (f *Format) Matches(pdl int) bool {
	if pdl < 0 || pdl > MaxPDL {
		return false
	}
	switch {
	case f.tail == 'a':
		return pdl >= f.fixed && pdl <= f.fixed+maxASCIILen
	case f.tail == 'v':
		return pdl == f.fixed || pdl == f.fixed+6
	case f.fixed == 0:
		return pdl == 0
	case f.oneShot:
		return pdl == f.fixed
	default:
		return pdl%f.fixed == 0
	}
}

// Value is one decoded field of parameter data.
type Value struct {
	Kind byte // b w d u a
	Uint uint64
	UID  UID
	Text string
}

func (v Value) String() string {
	switch v.Kind {
	case 'a':
		return strconv.Quote(v.Text)
	case 'u':
		return v.UID.String()
	}
	return strconv.FormatUint(v.Uint, 10)
}

// Decode splits pd into typed fields, repeating the layout as Matches
// allows. Literal x fields are checked and skipped.
func (f *Format) Decode(pd []byte) ([]Value, error) {
	if !f.Matches(len(pd)) {
		return nil, fmt.Errorf("rdm: %d octets do not match format %q", len(pd), f.raw)
	}
	var out []Value
	i := 0
	for i < len(pd) {
		start := i
		for _, fd := range f.fields {
			switch fd.kind {
			case 'b':
				out = append(out, Value{Kind: 'b', Uint: uint64(pd[i])})
				i++
			case 'w':
				out = append(out, Value{Kind: 'w', Uint: uint64(pd[i])<<8 | uint64(pd[i+1])})
				i += 2
			case 'd':
				v := uint64(pd[i])<<24 | uint64(pd[i+1])<<16 | uint64(pd[i+2])<<8 | uint64(pd[i+3])
				out = append(out, Value{Kind: 'd', Uint: v})
				i += 4
			case 'u':
				out = append(out, Value{Kind: 'u', UID: getUID(pd[i : i+6])})
				i += 6
			case 'v':
				if i < len(pd) {
					out = append(out, Value{Kind: 'u', UID: getUID(pd[i : i+6])})
					i += 6
				}
			case 'a':
				s := pd[i:]
				// Labels may be NUL-padded short of their field width.
				for n, c := range s {
					if c == 0 {
						s = s[:n]
						break
					}
				}
				out = append(out, Value{Kind: 'a', Text: string(s)})
				i = len(pd)
			case 'x':
				if pd[i] != fd.lit {
					return nil, fmt.Errorf("rdm: literal mismatch at octet %d for format %q", i, f.raw)
				}
				i++
			}
		}
		if i == start {
			break
		}
	}
	return out, nil
}
