// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package dmx

import (
	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

// deviceInfoFormat is the 19-octet DEVICE_INFO layout: protocol version
// 1.0 literal, model, category, software version, footprint, current and
// total personality, start address, sub-device count, sensor count.
const deviceInfoFormat = "x01x00wwdwbbwwb$"

// Byte offsets into the DEVICE_INFO storage.
const (
	diOffFootprint    = 10
	diOffStartAddress = 14
)

const labelSize = 32

// registerDefaults installs the parameters every compliant responder
// must answer. A driver with no UID runs as a controller only and
// registers nothing.
func (d *Driver) registerDefaults(cfg Config) error {
	if cfg.UID.IsNull() {
		return nil
	}

	di := cfg.DeviceInfo
	devInfo := []byte{
		0x01, 0x00,
		byte(di.ModelID >> 8), byte(di.ModelID),
		byte(di.ProductCategory >> 8), byte(di.ProductCategory),
		byte(di.SoftwareVersionID >> 24), byte(di.SoftwareVersionID >> 16),
		byte(di.SoftwareVersionID >> 8), byte(di.SoftwareVersionID),
		byte(di.Footprint >> 8), byte(di.Footprint),
		di.CurrentPersonality, di.PersonalityCount,
		byte(di.StartAddress >> 8), byte(di.StartAddress),
		byte(di.SubDeviceCount >> 8), byte(di.SubDeviceCount),
		di.SensorCount,
	}

	steps := []func() error{
		func() error {
			return d.RegisterComputed(rdm.PIDDiscUniqueBranch, "", discUniqueBranchHandler)
		},
		func() error { return d.RegisterComputed(rdm.PIDDiscMute, "wv$", discMuteHandler) },
		func() error { return d.RegisterComputed(rdm.PIDDiscUnMute, "wv$", discMuteHandler) },
		func() error {
			return d.RegisterParameter(rdm.PIDDeviceInfo, len(devInfo), deviceInfoFormat, false, readOnlyHandler, devInfo)
		},
		func() error {
			return d.RegisterAlias(rdm.PIDDMXStartAddress, "w$", true, startAddressHandler, rdm.PIDDeviceInfo, diOffStartAddress, 2)
		},
		func() error {
			return d.RegisterParameter(rdm.PIDSoftwareVersionLabel, labelSize, "a$", false, readOnlyHandler, []byte(cfg.SoftwareVersionLabel))
		},
		func() error {
			return d.RegisterParameter(rdm.PIDDeviceLabel, labelSize, "a$", true, nil, []byte(cfg.DeviceLabel))
		},
		func() error {
			return d.RegisterParameter(rdm.PIDIdentifyDevice, 1, "b$", false, identifyHandler, nil)
		},
		func() error {
			return d.RegisterComputed(rdm.PIDSupportedParameters, "w", supportedParametersHandler)
		},
		func() error {
			return d.RegisterComputed(rdm.PIDQueuedMessage, "b$", queuedMessageHandler)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// simpleHandler is the stock behavior for storage-backed parameters:
// GET returns the stored bytes, SET validates against the wire format
// and stores.
func simpleHandler(d *Driver, h *rdm.Header, pd []byte) Response {
	switch h.CC {
	case rdm.CCGetCommand:
		if len(pd) != 0 {
			return NackResponse(rdm.NRFormatError)
		}
		data, ok := d.Parameter(h.PID)
		if !ok {
			return NackResponse(rdm.NRHardwareFault)
		}
		return AckResponse(trimParameterData(d, h.PID, data))
	case rdm.CCSetCommand:
		if !formatAccepts(d, h.PID, len(pd)) {
			return NackResponse(rdm.NRFormatError)
		}
		if err := d.SetParameter(h.PID, pd); err != nil {
			return NackResponse(rdm.NRHardwareFault)
		}
		return AckResponse(nil)
	}
	return NackResponse(rdm.NRUnsupportedCommandClass)
}

// readOnlyHandler answers GET like simpleHandler and refuses SET.
func readOnlyHandler(d *Driver, h *rdm.Header, pd []byte) Response {
	if h.CC != rdm.CCGetCommand {
		return NackResponse(rdm.NRUnsupportedCommandClass)
	}
	return simpleHandler(d, h, pd)
}

// startAddressHandler is simpleHandler plus the legal-address check.
func startAddressHandler(d *Driver, h *rdm.Header, pd []byte) Response {
	if h.CC == rdm.CCSetCommand {
		if len(pd) != 2 {
			return NackResponse(rdm.NRFormatError)
		}
		addr := uint16(pd[0])<<8 | uint16(pd[1])
		if addr < 1 || addr > 512 {
			return NackResponse(rdm.NRDataOutOfRange)
		}
	}
	return simpleHandler(d, h, pd)
}

// identifyHandler bounds the identify flag to 0 or 1.
func identifyHandler(d *Driver, h *rdm.Header, pd []byte) Response {
	if h.CC == rdm.CCSetCommand {
		if len(pd) != 1 {
			return NackResponse(rdm.NRFormatError)
		}
		if pd[0] > 1 {
			return NackResponse(rdm.NRDataOutOfRange)
		}
	}
	return simpleHandler(d, h, pd)
}

// discUniqueBranchHandler answers the discovery binary search: silent
// when muted or outside the probed UID range, otherwise the encoded
// preamble response.
func discUniqueBranchHandler(d *Driver, h *rdm.Header, pd []byte) Response {
	if h.CC != rdm.CCDiscCommand {
		return NackResponse(rdm.NRUnsupportedCommandClass)
	}
	if d.muted || len(pd) != 12 {
		return NoResponse()
	}
	lower := rdm.UID{ManID: uint16(pd[0])<<8 | uint16(pd[1]),
		DevID: uint32(pd[2])<<24 | uint32(pd[3])<<16 | uint32(pd[4])<<8 | uint32(pd[5])}
	upper := rdm.UID{ManID: uint16(pd[6])<<8 | uint16(pd[7]),
		DevID: uint32(pd[8])<<24 | uint32(pd[9])<<16 | uint32(pd[10])<<8 | uint32(pd[11])}
	me := d.uid.Uint()
	if me < lower.Uint() || me > upper.Uint() {
		return NoResponse()
	}
	return AckResponse(nil)
}

// discMuteHandler services DISC_MUTE and DISC_UN_MUTE. The response
// carries a zero control field; broadcast forms are processed but the
// dispatcher suppresses their replies.
func discMuteHandler(d *Driver, h *rdm.Header, pd []byte) Response {
	if h.CC != rdm.CCDiscCommand || len(pd) != 0 {
		return NackResponse(rdm.NRFormatError)
	}
	d.muted = h.PID == rdm.PIDDiscMute
	return AckResponse([]byte{0x00, 0x00})
}

// supportedParametersHandler lists every registered parameter the
// standard does not already require a responder to have.
func supportedParametersHandler(d *Driver, h *rdm.Header, pd []byte) Response {
	if h.CC != rdm.CCGetCommand {
		return NackResponse(rdm.NRUnsupportedCommandClass)
	}
	required := map[rdm.PID]bool{
		rdm.PIDDiscUniqueBranch:     true,
		rdm.PIDDiscMute:             true,
		rdm.PIDDiscUnMute:           true,
		rdm.PIDSupportedParameters:  true,
		rdm.PIDParameterDescription: true,
		rdm.PIDDeviceInfo:           true,
		rdm.PIDSoftwareVersionLabel: true,
		rdm.PIDDMXStartAddress:      true,
		rdm.PIDIdentifyDevice:       true,
		rdm.PIDQueuedMessage:        true,
	}
	ids := make([]rdm.PID, 32)
	n := d.Parameters(ids)
	if n > len(ids) {
		ids = make([]rdm.PID, n)
		n = d.Parameters(ids)
	}
	var out []byte
	for _, pid := range ids[:n] {
		if required[pid] {
			continue
		}
		out = append(out, byte(uint16(pid)>>8), byte(pid))
	}
	return AckResponse(out)
}

// queuedMessageHandler pops the oldest pending parameter and answers
// with that parameter's GET response under its own ID. With nothing
// queued it answers an empty STATUS_MESSAGES list.
func queuedMessageHandler(d *Driver, h *rdm.Header, pd []byte) Response {
	if h.CC != rdm.CCGetCommand {
		return NackResponse(rdm.NRUnsupportedCommandClass)
	}
	d.cs.enter()
	pid, ok := d.params.popQueued()
	var handler Handler
	if ok {
		if p := d.params.lookup(pid); p != nil {
			handler = p.handler
		}
	}
	d.cs.exit()
	if !ok || handler == nil {
		return Response{Type: rdm.ResponseTypeAck, PID: rdm.PIDStatusMessages}
	}
	inner := *h
	inner.PID = pid
	resp := handler(d, &inner, nil)
	resp.PID = pid
	return resp
}

// formatAccepts reports whether a parameter data length is legal for
// the registered wire format of pid.
func formatAccepts(d *Driver, pid rdm.PID, pdl int) bool {
	d.cs.enter()
	p := d.params.lookup(pid)
	var f *rdm.Format
	if p != nil {
		f = p.format
	}
	d.cs.exit()
	if f == nil {
		return true
	}
	return f.Matches(pdl)
}

// trimParameterData bounds a GET response to the parameter's wire
// format: text parameters stop at the NUL padding, fixed formats at one
// pass.
func trimParameterData(d *Driver, pid rdm.PID, data []byte) []byte {
	d.cs.enter()
	p := d.params.lookup(pid)
	var f *rdm.Format
	if p != nil {
		f = p.format
	}
	d.cs.exit()
	if f == nil {
		return data
	}
	if f.MaxSize() > f.FixedSize() {
		// Variable tail: trim trailing NULs of the text portion.
		end := len(data)
		for end > f.FixedSize() && data[end-1] == 0 {
			end--
		}
		return data[:end]
	}
	if f.FixedSize() > 0 && len(data) > f.FixedSize() {
		return data[:f.FixedSize()]
	}
	return data
}
