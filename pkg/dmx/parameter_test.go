// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import (
	"bytes"
	"testing"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

func TestRegisterDuplicateLeavesTableUnchanged(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{UID: testUID})

	const pid = rdm.PID(0x8000)
	if err := d.RegisterParameter(pid, 4, "d$", false, nil, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("RegisterParameter: %v", err)
	}
	before := d.Parameters(nil)

	err := d.RegisterParameter(pid, 8, "a$", false, nil, []byte{9, 9})
	if err != ErrParameterExists {
		t.Fatalf("duplicate registration = %v, want ErrParameterExists", err)
	}
	if got := d.Parameters(nil); got != before {
		t.Fatalf("entry count changed %d -> %d on failed registration", before, got)
	}
	v, _ := d.Parameter(pid)
	if !bytes.Equal(v, []byte{1, 2, 3, 4}) {
		t.Fatalf("stored value changed to %x on failed registration", v)
	}
}

func TestRegisterAliasRangeChecked(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{UID: testUID})

	const base = rdm.PID(0x8000)
	if err := d.RegisterParameter(base, 4, "d$", false, nil, nil); err != nil {
		t.Fatalf("RegisterParameter: %v", err)
	}
	before := d.Parameters(nil)

	// offset+size past the base's storage must fail without an entry.
	if err := d.RegisterAlias(0x8001, "w$", false, nil, base, 3, 2); err != ErrNoStorage {
		t.Fatalf("out-of-range alias = %v, want ErrNoStorage", err)
	}
	if got := d.Parameters(nil); got != before {
		t.Fatalf("entry count changed %d -> %d on failed alias", before, got)
	}
	if err := d.RegisterAlias(0x8001, "w$", false, nil, 0x9999, 0, 2); err != ErrParameterUnknown {
		t.Fatalf("alias of unknown base = %v, want ErrParameterUnknown", err)
	}
}

func TestAliasSharesStorage(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{UID: testUID})

	const base = rdm.PID(0x8000)
	if err := d.RegisterParameter(base, 4, "d$", false, nil, []byte{0xaa, 0xbb, 0xcc, 0xdd}); err != nil {
		t.Fatalf("RegisterParameter: %v", err)
	}
	if err := d.RegisterAlias(0x8001, "w$", false, nil, base, 2, 2); err != nil {
		t.Fatalf("RegisterAlias: %v", err)
	}

	v, ok := d.Parameter(0x8001)
	if !ok || !bytes.Equal(v, []byte{0xcc, 0xdd}) {
		t.Fatalf("alias view = %x %v, want ccdd", v, ok)
	}

	// Writes through the alias land in the base.
	if err := d.SetParameter(0x8001, []byte{0x11, 0x22}); err != nil {
		t.Fatalf("SetParameter via alias: %v", err)
	}
	v, _ = d.Parameter(base)
	if !bytes.Equal(v, []byte{0xaa, 0xbb, 0x11, 0x22}) {
		t.Fatalf("base after alias write = %x", v)
	}

	// And the other way around.
	if err := d.SetParameter(base, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("SetParameter via base: %v", err)
	}
	v, _ = d.Parameter(0x8001)
	if !bytes.Equal(v, []byte{3, 4}) {
		t.Fatalf("alias after base write = %x", v)
	}
}

func TestComputedParameterHasNoStorage(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{UID: testUID})

	const pid = rdm.PID(0x8000)
	h := func(d *Driver, h *rdm.Header, pd []byte) Response {
		return AckResponse([]byte{0x2a})
	}
	if err := d.RegisterComputed(pid, "b$", h); err != nil {
		t.Fatalf("RegisterComputed: %v", err)
	}
	if _, ok := d.Parameter(pid); ok {
		t.Fatal("computed parameter reported backing storage")
	}
	if err := d.SetParameter(pid, []byte{1}); err != ErrNoStorage {
		t.Fatalf("SetParameter on computed = %v, want ErrNoStorage", err)
	}
	if err := d.RegisterComputed(0x8001, "b$", nil); err == nil {
		t.Fatal("computed parameter accepted without a handler")
	}
}

func TestMessageQueueDedup(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{UID: testUID})

	if err := d.RegisterParameter(0x8000, 2, "w$", false, nil, nil); err != nil {
		t.Fatalf("RegisterParameter: %v", err)
	}
	if _, err := d.QueueMessage(0x9999); err != ErrParameterUnknown {
		t.Fatalf("queueing unknown parameter = %v", err)
	}

	pos, err := d.QueueMessage(0x8000)
	if err != nil || pos != 0 {
		t.Fatalf("first queue = %d, %v", pos, err)
	}
	pos, err = d.QueueMessage(rdm.PIDDeviceInfo)
	if err != nil || pos != 1 {
		t.Fatalf("second queue = %d, %v", pos, err)
	}
	// Re-queueing reports the existing position instead of growing.
	pos, err = d.QueueMessage(0x8000)
	if err != nil || pos != 0 {
		t.Fatalf("re-queue = %d, %v", pos, err)
	}
	if n := d.QueuedMessageCount(); n != 2 {
		t.Fatalf("queued count = %d, want 2", n)
	}
}

func TestMessageQueueFull(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{UID: testUID, ParameterCapacity: 64, HeapSize: 1024})

	var pids [messageQueueCap]rdm.PID
	for i := range pids {
		pids[i] = rdm.PID(0x8000 + i)
		if err := d.RegisterParameter(pids[i], 1, "b$", false, nil, nil); err != nil {
			t.Fatalf("RegisterParameter %d: %v", i, err)
		}
		if _, err := d.QueueMessage(pids[i]); err != nil {
			t.Fatalf("QueueMessage %d: %v", i, err)
		}
	}
	if err := d.RegisterParameter(0x9000, 1, "b$", false, nil, nil); err != nil {
		t.Fatalf("RegisterParameter overflow: %v", err)
	}
	if _, err := d.QueueMessage(0x9000); err != ErrQueueFull {
		t.Fatalf("queueing past capacity = %v, want ErrQueueFull", err)
	}
	if n := d.QueuedMessageCount(); n != messageQueueCap {
		t.Fatalf("queued count = %d, want %d", n, messageQueueCap)
	}
}

func TestParametersTruncation(t *testing.T) {
	d, _, _ := newTestDriver(t, Config{UID: testUID})

	total := d.Parameters(nil)
	if total == 0 {
		t.Fatal("no default parameters registered")
	}
	dst := make([]rdm.PID, 1)
	if got := d.Parameters(dst); got != total {
		t.Fatalf("truncated call reported %d, want true count %d", got, total)
	}
	if dst[0] == 0 {
		t.Fatal("truncated call copied nothing")
	}
	full := make([]rdm.PID, total)
	if got := d.Parameters(full); got != total {
		t.Fatalf("full call reported %d, want %d", got, total)
	}
}

// memStore is an in-memory parameter store.
type memStore struct {
	m map[uint16][]byte
}

func (s *memStore) Load(pid uint16) ([]byte, bool, error) {
	v, ok := s.m[pid]
	return append([]byte(nil), v...), ok, nil
}

func (s *memStore) Save(pid uint16, data []byte) error {
	if s.m == nil {
		s.m = make(map[uint16][]byte)
	}
	s.m[pid] = append([]byte(nil), data...)
	return nil
}

func TestPersistentParameterRestore(t *testing.T) {
	st := &memStore{m: map[uint16][]byte{0x8000: {0x12, 0x34}}}
	d, _, _ := newTestDriver(t, Config{UID: testUID, Store: st})

	// Saved data overrides the registration default.
	if err := d.RegisterParameter(0x8000, 2, "w$", true, nil, []byte{0, 0}); err != nil {
		t.Fatalf("RegisterParameter: %v", err)
	}
	v, _ := d.Parameter(0x8000)
	if !bytes.Equal(v, []byte{0x12, 0x34}) {
		t.Fatalf("restored value = %x, want 1234", v)
	}

	// Writes round-trip through the store.
	if err := d.SetParameter(0x8000, []byte{0x56, 0x78}); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}
	if saved := st.m[0x8000]; !bytes.Equal(saved, []byte{0x56, 0x78}) {
		t.Fatalf("persisted value = %x, want 5678", saved)
	}

	// Non-persistent parameters never touch the store.
	if err := d.RegisterParameter(0x8001, 1, "b$", false, nil, []byte{7}); err != nil {
		t.Fatalf("RegisterParameter: %v", err)
	}
	if err := d.SetParameter(0x8001, []byte{8}); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}
	if _, ok := st.m[0x8001]; ok {
		t.Fatal("non-persistent parameter leaked into the store")
	}
}
