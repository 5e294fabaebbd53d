// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import (
	"fmt"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

// Response is what a parameter handler produces for a request.
type Response struct {
	Type       rdm.ResponseType
	NackReason rdm.NackReason // meaningful when Type is NackReason
	PID        rdm.PID        // overrides the echoed parameter ID when nonzero
	PD         []byte
}

// AckResponse acknowledges with the given parameter data.
func AckResponse(pd []byte) Response {
	return Response{Type: rdm.ResponseTypeAck, PD: pd}
}

// NackResponse refuses with a reason code.
func NackResponse(reason rdm.NackReason) Response {
	return Response{Type: rdm.ResponseTypeNackReason, NackReason: reason}
}

// NoResponse stays silent. Only discovery handlers may do this for
// unicast traffic; elsewhere the dispatcher converts silence to a
// hardware-fault refusal.
func NoResponse() Response {
	return Response{Type: rdm.ResponseTypeNone}
}

// Handler builds the response to a request for one parameter. It runs in
// task context with the driver's operation lock held; it may use the
// driver's dictionary accessors but must not call Send or Receive.
type Handler func(d *Driver, h *rdm.Header, pd []byte) Response

// Callback is the user notification invoked after a request for its
// parameter has been dispatched, with both the request and the response
// header (respH is nil when the response was suppressed).
type Callback func(d *Driver, reqH, respH *rdm.Header, ctx any)

const messageQueueCap = 16

type storageKind uint8

const (
	storageNone storageKind = iota
	storageOwned
	storageAlias
)

type parameter struct {
	pid      rdm.PID
	format   *rdm.Format
	persist  bool
	kind     storageKind
	data     []byte // owned storage, a view into the table heap
	base     rdm.PID
	off      int // alias range into base's storage
	size     int
	handler  Handler
	callback Callback
	cbCtx    any
}

// parameterTable is the fixed-capacity dictionary backing the responder.
// The driver guards every access with its critical section; entries and
// heap space are reserved at registration and never released until the
// driver is deleted.
type parameterTable struct {
	entries []parameter
	heap    []byte
	brk     int
	queue   []rdm.PID
}

func (t *parameterTable) init(capacity, heapSize int) {
	t.entries = make([]parameter, 0, capacity)
	t.heap = make([]byte, heapSize)
	t.queue = make([]rdm.PID, 0, messageQueueCap)
}

func (t *parameterTable) lookup(pid rdm.PID) *parameter {
	for i := range t.entries {
		if t.entries[i].pid == pid {
			return &t.entries[i]
		}
	}
	return nil
}

// storage resolves an entry's backing bytes, following alias relations
// to the owning entry. Computed parameters resolve to nil.
func (t *parameterTable) storage(p *parameter) []byte {
	switch p.kind {
	case storageOwned:
		return p.data
	case storageAlias:
		base := t.lookup(p.base)
		if base == nil {
			return nil
		}
		bs := t.storage(base)
		if bs == nil || p.off+p.size > len(bs) {
			return nil
		}
		return bs[p.off : p.off+p.size]
	}
	return nil
}

// RegisterParameter adds a parameter with size bytes of owned storage,
// initialized from def (copied bounded, zero-filled past its end; nil
// zero-fills everything). A nil handler installs the stock get/set
// handler. When persist is set and a store is configured, previously
// saved data overrides def.
func (d *Driver) RegisterParameter(pid rdm.PID, size int, format string, persist bool, h Handler, def []byte) error {
	f, err := rdm.ParseFormat(format)
	if err != nil {
		return err
	}
	if size <= 0 {
		return ErrNoStorage
	}
	if h == nil {
		h = simpleHandler
	}

	d.cs.enter()
	t := &d.params
	switch {
	case t.lookup(pid) != nil:
		d.cs.exit()
		return ErrParameterExists
	case len(t.entries) == cap(t.entries):
		d.cs.exit()
		return ErrTableFull
	case t.brk+size > len(t.heap):
		d.cs.exit()
		return ErrNoStorage
	}
	data := t.heap[t.brk : t.brk+size]
	t.brk += size
	n := copy(data, def)
	for i := n; i < size; i++ {
		data[i] = 0
	}
	t.entries = append(t.entries, parameter{
		pid: pid, format: f, persist: persist,
		kind: storageOwned, data: data, handler: h,
	})
	d.cs.exit()

	if persist && d.store != nil {
		if saved, ok, err := d.store.Load(uint16(pid)); err != nil {
			d.log("dmx: port %d loading %v: %v", d.port, pid, err)
		} else if ok {
			d.cs.enter()
			copy(data, saved)
			d.cs.exit()
		}
	}
	return nil
}

// RegisterAlias adds a parameter whose storage is a sub-range of an
// already registered parameter's storage; writes through either are
// visible through both. Fails if pid exists, base does not, or the
// range falls outside base's storage.
func (d *Driver) RegisterAlias(pid rdm.PID, format string, persist bool, h Handler, base rdm.PID, offset, size int) error {
	f, err := rdm.ParseFormat(format)
	if err != nil {
		return err
	}
	if offset < 0 || size <= 0 {
		return ErrNoStorage
	}
	if h == nil {
		h = simpleHandler
	}

	d.cs.enter()
	t := &d.params
	switch {
	case t.lookup(pid) != nil:
		d.cs.exit()
		return ErrParameterExists
	case len(t.entries) == cap(t.entries):
		d.cs.exit()
		return ErrTableFull
	}
	bp := t.lookup(base)
	if bp == nil {
		d.cs.exit()
		return ErrParameterUnknown
	}
	if bs := t.storage(bp); bs == nil || offset+size > len(bs) {
		d.cs.exit()
		return ErrNoStorage
	}
	t.entries = append(t.entries, parameter{
		pid: pid, format: f, persist: persist,
		kind: storageAlias, base: base, off: offset, size: size, handler: h,
	})
	d.cs.exit()

	if persist && d.store != nil {
		if saved, ok, err := d.store.Load(uint16(pid)); err != nil {
			d.log("dmx: port %d loading %v: %v", d.port, pid, err)
		} else if ok {
			d.cs.enter()
			if s := t.storage(t.lookup(pid)); s != nil {
				copy(s, saved)
			}
			d.cs.exit()
		}
	}
	return nil
}

// RegisterComputed adds a parameter with no backing storage; the handler
// alone produces response data.
func (d *Driver) RegisterComputed(pid rdm.PID, format string, h Handler) error {
	f, err := rdm.ParseFormat(format)
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("dmx: computed parameter %v needs a handler", pid)
	}

	d.cs.enter()
	defer d.cs.exit()
	t := &d.params
	if t.lookup(pid) != nil {
		return ErrParameterExists
	}
	if len(t.entries) == cap(t.entries) {
		return ErrTableFull
	}
	t.entries = append(t.entries, parameter{pid: pid, format: f, handler: h})
	return nil
}

// SetHandler replaces a registered parameter's response handler.
func (d *Driver) SetHandler(pid rdm.PID, h Handler) error {
	d.cs.enter()
	defer d.cs.exit()
	p := d.params.lookup(pid)
	if p == nil {
		return ErrParameterUnknown
	}
	p.handler = h
	return nil
}

// SetCallback replaces a registered parameter's user notification
// callback and its context.
func (d *Driver) SetCallback(pid rdm.PID, cb Callback, ctx any) error {
	d.cs.enter()
	defer d.cs.exit()
	p := d.params.lookup(pid)
	if p == nil {
		return ErrParameterUnknown
	}
	p.callback = cb
	p.cbCtx = ctx
	return nil
}

// Parameter returns a snapshot of a parameter's backing storage. ok is
// false for unregistered and computed-only parameters.
func (d *Driver) Parameter(pid rdm.PID) ([]byte, bool) {
	d.cs.enter()
	defer d.cs.exit()
	p := d.params.lookup(pid)
	if p == nil {
		return nil, false
	}
	s := d.params.storage(p)
	if s == nil {
		return nil, false
	}
	return append([]byte(nil), s...), true
}

// SetParameter copies data into a parameter's backing storage, bounded
// by the storage size, and persists it when the parameter asks for that.
func (d *Driver) SetParameter(pid rdm.PID, data []byte) error {
	d.cs.enter()
	p := d.params.lookup(pid)
	if p == nil {
		d.cs.exit()
		return ErrParameterUnknown
	}
	s := d.params.storage(p)
	if s == nil {
		d.cs.exit()
		return ErrNoStorage
	}
	n := copy(s, data)
	for i := n; i < len(s); i++ {
		s[i] = 0
	}
	persist := p.persist
	var saved []byte
	if persist && d.store != nil {
		saved = append(saved, s...)
	}
	d.cs.exit()

	if persist && d.store != nil {
		if err := d.store.Save(uint16(pid), saved); err != nil {
			d.log("dmx: port %d persisting %v: %v", d.port, pid, err)
		}
	}
	return nil
}

// QueueMessage marks a parameter as having pending data for the
// controller and returns its position in the queue. Re-queueing an
// already queued parameter returns its existing position.
func (d *Driver) QueueMessage(pid rdm.PID) (int, error) {
	d.cs.enter()
	defer d.cs.exit()
	t := &d.params
	if t.lookup(pid) == nil {
		return -1, ErrParameterUnknown
	}
	for i, q := range t.queue {
		if q == pid {
			return i, nil
		}
	}
	if len(t.queue) == cap(t.queue) {
		d.log("dmx: port %d message queue full, dropping %v", d.port, pid)
		return -1, ErrQueueFull
	}
	t.queue = append(t.queue, pid)
	return len(t.queue) - 1, nil
}

// QueuedMessageCount reports how many parameters await collection.
func (d *Driver) QueuedMessageCount() int {
	d.cs.enter()
	defer d.cs.exit()
	return len(d.params.queue)
}

// Parameters copies up to len(dst) registered parameter IDs into dst and
// returns the true count of registered parameters; callers must compare
// and re-call with a larger buffer if truncated.
func (d *Driver) Parameters(dst []rdm.PID) int {
	d.cs.enter()
	defer d.cs.exit()
	for i := range d.params.entries {
		if i == len(dst) {
			break
		}
		dst[i] = d.params.entries[i].pid
	}
	return len(d.params.entries)
}

func (t *parameterTable) popQueued() (rdm.PID, bool) {
	if len(t.queue) == 0 {
		return 0, false
	}
	pid := t.queue[0]
	copy(t.queue, t.queue[1:])
	t.queue = t.queue[:len(t.queue)-1]
	return pid, true
}
