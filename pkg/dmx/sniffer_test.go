// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import "testing"

func TestSnifferMeasuresBreakAndMAB(t *testing.T) {
	s := NewSniffer(4)

	// fall, rise 176 µs later, next fall 12 µs after that
	s.Feed(false, 1000)
	s.Feed(true, 1176)
	s.Feed(false, 1188)

	md, ok := s.Read()
	if !ok {
		t.Fatal("no measurement after a complete break/MAB cycle")
	}
	if md.Break != 176 || md.MAB != 12 || md.TS != 1188 {
		t.Fatalf("measurement = %+v, want break 176, MAB 12, ts 1188", md)
	}
	if _, ok := s.Read(); ok {
		t.Fatal("extra measurement queued")
	}
}

func TestSnifferIgnoresIncompleteCycles(t *testing.T) {
	s := NewSniffer(4)

	// First fall alone cannot produce a measurement.
	s.Feed(false, 100)
	if _, ok := s.Read(); ok {
		t.Fatal("measurement from a single falling edge")
	}
	// Repeated falls without a rise keep resetting the candidate.
	s.Feed(false, 200)
	if _, ok := s.Read(); ok {
		t.Fatal("measurement without a rising edge")
	}
	// Now a proper cycle measures from the latest fall.
	s.Feed(true, 300)
	s.Feed(false, 320)
	md, ok := s.Read()
	if !ok || md.Break != 100 || md.MAB != 20 {
		t.Fatalf("measurement = %+v %v, want break 100, MAB 20", md, ok)
	}
}

func TestSnifferDropsWhenFull(t *testing.T) {
	s := NewSniffer(1)

	ts := int64(0)
	cycle := func() {
		s.Feed(false, ts)
		s.Feed(true, ts+176)
		s.Feed(false, ts+188)
		ts += 1000
	}
	cycle()
	cycle() // queue is full, this measurement is dropped
	md, ok := s.Read()
	if !ok || md.TS != 188 {
		t.Fatalf("first measurement = %+v %v, want ts 188", md, ok)
	}
	if _, ok := s.Read(); ok {
		t.Fatal("dropped measurement still surfaced")
	}
}
