// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import "sync"

// SnifferMetadata is one measured frame preamble: how long the line was
// held in break and how long the mark-after-break lasted, both in
// microseconds. Values are best-effort edge timings and sit outside the
// driver's correctness contract.
type SnifferMetadata struct {
	Break int64
	MAB   int64
	TS    int64
}

// Sniffer derives break and mark-after-break durations from line edge
// timestamps fed in by a GPIO watcher sharing the receive pin.
type Sniffer struct {
	mu       sync.Mutex
	queue    chan SnifferMetadata
	inBreak  bool
	fellAt   int64
	roseAt   int64
	haveFall bool
}

// NewSniffer returns a sniffer buffering up to depth measurements; when
// full, new measurements are dropped.
func NewSniffer(depth int) *Sniffer {
	if depth <= 0 {
		depth = 32
	}
	return &Sniffer{queue: make(chan SnifferMetadata, depth)}
}

// Feed records one line edge. level is the line state after the edge;
// ts is a monotonic microsecond timestamp. A falling edge opens a break
// candidate; the following rising edge closes it; the next falling edge
// bounds the mark-after-break and emits a measurement.
func (s *Sniffer) Feed(level bool, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !level {
		if s.haveFall && !s.inBreak && s.roseAt > s.fellAt {
			md := SnifferMetadata{
				Break: s.roseAt - s.fellAt,
				MAB:   ts - s.roseAt,
				TS:    ts,
			}
			select {
			case s.queue <- md:
			default:
			}
		}
		s.fellAt = ts
		s.haveFall = true
		s.inBreak = true
		return
	}
	if s.inBreak {
		s.roseAt = ts
		s.inBreak = false
	}
}

// Read pops the oldest measurement without blocking.
func (s *Sniffer) Read() (SnifferMetadata, bool) {
	select {
	case md := <-s.queue:
		return md, true
	default:
		return SnifferMetadata{}, false
	}
}
