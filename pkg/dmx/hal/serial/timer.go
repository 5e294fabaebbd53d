// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package serial

import (
	"sync"
	"time"
)

// Timer is a hal.Timer on the host scheduler. Alarms never fire early,
// but host scheduling can make them late; the driver's spacing logic
// only needs the lower bound.
type Timer struct {
	mu    sync.Mutex
	epoch time.Time
	alarm func()
	t     *time.Timer
}

func NewTimer() *Timer {
	return &Timer{epoch: time.Now()}
}

func (t *Timer) Arm(delay int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
	fn := t.alarm
	if fn == nil {
		return
	}
	t.t = time.AfterFunc(time.Duration(delay)*time.Microsecond, fn)
}

func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}

func (t *Timer) Now() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.epoch).Microseconds()
}

func (t *Timer) OnAlarm(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alarm = fn
}
