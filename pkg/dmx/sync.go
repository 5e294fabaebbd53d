// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import "sync"

// critical is the short lock shared between interrupt context and the
// driver API. Sections must stay to a handful of field accesses because
// interrupt context cannot afford to wait. It is deliberately a distinct
// type from the driver's task-level mutex so the two disciplines cannot
// be conflated.
type critical struct {
	mu sync.Mutex
}

func (c *critical) enter() { c.mu.Lock() }
func (c *critical) exit()  { c.mu.Unlock() }

// notifier is a one-slot wakeup channel signalled from interrupt context.
// At most one goroutine may hold the waiter slot at a time; acquiring it
// twice is a caller error. A waiter that gives up must release so a stale
// signal cannot wake a later, unrelated wait.
type notifier struct {
	mu      sync.Mutex
	ch      chan struct{}
	claimed bool
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{}, 1)}
}

// acquire claims the waiter slot, reporting false if already claimed.
func (n *notifier) acquire() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.claimed {
		return false
	}
	// Nobody was waiting, so any pending signal is stale.
	select {
	case <-n.ch:
	default:
	}
	n.claimed = true
	return true
}

// release clears any pending signal and frees the waiter slot.
func (n *notifier) release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	select {
	case <-n.ch:
	default:
	}
	n.claimed = false
}

// c exposes the wakeup channel for select.
func (n *notifier) c() <-chan struct{} { return n.ch }

// notify wakes the waiter if one is registered. Never blocks.
func (n *notifier) notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// frameStatus tags a receive event.
type frameStatus uint8

const (
	frameOK frameStatus = iota
	frameOverflow
	frameError
)

// frameEvent is the receive queue element, published from interrupt
// context once per break-to-break interval.
type frameEvent struct {
	status frameStatus
	sc     int // start code, -1 when unknown
	size   int
	ts     int64
	isRDM  bool
}
