// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

package rdm

// Header is the decoded 24-octet RDM message header. On request packets
// PortID carries the controller's port ID; on response packets the same
// octet carries the response type.
type Header struct {
	MessageLen   uint8
	DestUID      UID
	SrcUID       UID
	TN           uint8
	PortID       uint8
	MessageCount uint8
	SubDevice    uint16
	CC           CommandClass
	PID          PID
	PDL          uint8
}

// ResponseType interprets the port ID octet of a response header.
func (h *Header) ResponseType() ResponseType { return ResponseType(h.PortID) }

// IsDiscUniqueBranchResponse reports whether h describes the encoded,
// break-less reply to a DISC_UNIQUE_BRANCH request.
func (h *Header) IsDiscUniqueBranchResponse() bool {
	return h.CC == CCDiscCommandResponse && h.PID == PIDDiscUniqueBranch
}

// Checksum returns the additive 16-bit checksum of b, transmitted
// big-endian immediately after the parameter data.
func Checksum(b []byte) uint16 {
	var sum uint16
	for _, c := range b {
		sum += uint16(c)
	}
	return sum
}

// ReadHeader decodes the packet at the start of buf. It accepts both
// standard RDM packets and the encoded DISC_UNIQUE_BRANCH response, which
// has no header of its own; for the latter the returned header is
// synthesized with the decoded source UID. ok is false when buf does not
// hold a complete packet with a valid checksum.
func ReadHeader(buf []byte) (h Header, ok bool) {
	if len(buf) >= 2 && buf[0] == SC && buf[1] == SubSC {
		return readStandardHeader(buf)
	}
	return readDiscResponse(buf)
}

func readStandardHeader(buf []byte) (h Header, ok bool) {
	if len(buf) < HeaderLen+ChecksumLen {
		return h, false
	}
	msgLen := int(buf[2])
	pdl := int(buf[23])
	if msgLen != HeaderLen+pdl || pdl > MaxPDL || len(buf) < msgLen+ChecksumLen {
		return h, false
	}
	want := uint16(buf[msgLen])<<8 | uint16(buf[msgLen+1])
	if Checksum(buf[:msgLen]) != want {
		return h, false
	}
	h = Header{
		MessageLen:   buf[2],
		DestUID:      getUID(buf[3:9]),
		SrcUID:       getUID(buf[9:15]),
		TN:           buf[15],
		PortID:       buf[16],
		MessageCount: buf[17],
		SubDevice:    uint16(buf[18])<<8 | uint16(buf[19]),
		CC:           CommandClass(buf[20]),
		PID:          PID(uint16(buf[21])<<8 | uint16(buf[22])),
		PDL:          buf[23],
	}
	return h, true
}

// readDiscResponse decodes the preamble-framed discovery response. Each
// octet of the EUID is transmitted twice, once ORed with 0xaa and once
// with 0x55, so the true value is the AND of the pair.
func readDiscResponse(buf []byte) (h Header, ok bool) {
	// Up to 7 preamble octets before the delimiter.
	i := 0
	for i < len(buf) && buf[i] == Preamble && i < 7 {
		i++
	}
	if i >= len(buf) || buf[i] != Delimiter {
		return h, false
	}
	i++
	if len(buf) < i+16 {
		return h, false
	}
	euid := buf[i : i+12]
	var raw [6]byte
	for j := range raw {
		raw[j] = euid[2*j] & euid[2*j+1]
	}
	sum := Checksum(euid)
	want := uint16(buf[i+12]&buf[i+13])<<8 | uint16(buf[i+14]&buf[i+15])
	if sum != want {
		return h, false
	}
	h = Header{
		DestUID: BroadcastAll,
		SrcUID:  getUID(raw[:]),
		CC:      CCDiscCommandResponse,
		PID:     PIDDiscUniqueBranch,
	}
	return h, true
}

// WritePacket encodes h plus parameter data into buf and returns the
// number of octets written, zero when pd is too long or buf too small.
// MessageLen and PDL are derived from len(pd). DISC_UNIQUE_BRANCH
// responses are written in their encoded preamble form instead.
func WritePacket(buf []byte, h *Header, pd []byte) int {
	if h.IsDiscUniqueBranchResponse() {
		return writeDiscResponse(buf, h.SrcUID)
	}
	if len(pd) > MaxPDL {
		return 0
	}
	msgLen := HeaderLen + len(pd)
	if len(buf) < msgLen+ChecksumLen {
		return 0
	}
	h.MessageLen = uint8(msgLen)
	h.PDL = uint8(len(pd))

	buf[0] = SC
	buf[1] = SubSC
	buf[2] = h.MessageLen
	putUID(buf[3:9], h.DestUID)
	putUID(buf[9:15], h.SrcUID)
	buf[15] = h.TN
	buf[16] = h.PortID
	buf[17] = h.MessageCount
	buf[18] = byte(h.SubDevice >> 8)
	buf[19] = byte(h.SubDevice)
	buf[20] = byte(h.CC)
	buf[21] = byte(uint16(h.PID) >> 8)
	buf[22] = byte(h.PID)
	buf[23] = h.PDL
	copy(buf[HeaderLen:], pd)

	sum := Checksum(buf[:msgLen])
	buf[msgLen] = byte(sum >> 8)
	buf[msgLen+1] = byte(sum)
	return msgLen + ChecksumLen
}

func writeDiscResponse(buf []byte, src UID) int {
	const preambleLen = 7
	if len(buf) < preambleLen+1+16 {
		return 0
	}
	for i := 0; i < preambleLen; i++ {
		buf[i] = Preamble
	}
	buf[preambleLen] = Delimiter
	var raw [6]byte
	putUID(raw[:], src)
	euid := buf[preambleLen+1:]
	for j, b := range raw {
		euid[2*j] = b | 0xaa
		euid[2*j+1] = b | 0x55
	}
	sum := Checksum(euid[:12])
	euid[12] = byte(sum>>8) | 0xaa
	euid[13] = byte(sum>>8) | 0x55
	euid[14] = byte(sum) | 0xaa
	euid[15] = byte(sum) | 0x55
	return preambleLen + 1 + 16
}
