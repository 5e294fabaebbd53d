// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ben Rosenfeld

// Package rdm implements the ANSI E1.20 Remote Device Management wire
// format: unique identifiers, message headers, the additive checksum, the
// encoded discovery response, and the compact parameter-data format codec.
//
// The package is a pure codec. It holds no bus state and performs no I/O;
// the dmx package layers transaction timing and dispatch on top of it.
package rdm

// Start codes and framing bytes.
const (
	SC          = 0xcc // RDM start code
	SubSC       = 0x01 // sub start code, always 0x01 for E1.20
	Preamble    = 0xfe // discovery response preamble byte
	Delimiter   = 0xaa // discovery response preamble delimiter
	HeaderLen   = 24   // octets from start code through PDL
	ChecksumLen = 2
	MaxPDL      = 231 // largest legal parameter data length
)

// CommandClass identifies the half of an RDM transaction a packet belongs
// to. Responses are always the matching request class plus one.
type CommandClass uint8

const (
	CCDiscCommand         CommandClass = 0x10
	CCDiscCommandResponse CommandClass = 0x11
	CCGetCommand          CommandClass = 0x20
	CCGetCommandResponse  CommandClass = 0x21
	CCSetCommand          CommandClass = 0x30
	CCSetCommandResponse  CommandClass = 0x31
)

// IsRequest reports whether cc is one of the three request classes.
func (cc CommandClass) IsRequest() bool { return cc&0x01 == 0 }

// IsValid reports whether cc is a defined E1.20 command class.
func (cc CommandClass) IsValid() bool {
	switch cc {
	case CCDiscCommand, CCDiscCommandResponse, CCGetCommand,
		CCGetCommandResponse, CCSetCommand, CCSetCommandResponse:
		return true
	}
	return false
}

func (cc CommandClass) String() string {
	switch cc {
	case CCDiscCommand:
		return "DISC_COMMAND"
	case CCDiscCommandResponse:
		return "DISC_COMMAND_RESPONSE"
	case CCGetCommand:
		return "GET_COMMAND"
	case CCGetCommandResponse:
		return "GET_COMMAND_RESPONSE"
	case CCSetCommand:
		return "SET_COMMAND"
	case CCSetCommandResponse:
		return "SET_COMMAND_RESPONSE"
	}
	return "UNKNOWN_CC"
}

// ResponseType is the disposition a responder reports in the octet that
// carries the port ID on requests. The negative values never appear on the
// wire; they classify the outcome of a transaction on the controller side.
type ResponseType int

const (
	ResponseTypeAck         ResponseType = 0x00
	ResponseTypeAckTimer    ResponseType = 0x01
	ResponseTypeNackReason  ResponseType = 0x02
	ResponseTypeAckOverflow ResponseType = 0x03

	// ResponseTypeNone means no response arrived before the timeout. For
	// broadcast requests this is the expected outcome.
	ResponseTypeNone ResponseType = -1
	// ResponseTypeInvalid means a response arrived but failed validation.
	ResponseTypeInvalid ResponseType = -2
)

func (rt ResponseType) String() string {
	switch rt {
	case ResponseTypeAck:
		return "ACK"
	case ResponseTypeAckTimer:
		return "ACK_TIMER"
	case ResponseTypeNackReason:
		return "NACK_REASON"
	case ResponseTypeAckOverflow:
		return "ACK_OVERFLOW"
	case ResponseTypeNone:
		return "NONE"
	case ResponseTypeInvalid:
		return "INVALID"
	}
	return "UNKNOWN_RESPONSE_TYPE"
}

// NackReason is the reason code carried in the parameter data of a
// NACK_REASON response.
type NackReason uint16

const (
	NRUnknownPID              NackReason = 0x0000
	NRFormatError             NackReason = 0x0001
	NRHardwareFault           NackReason = 0x0002
	NRProxyReject             NackReason = 0x0003
	NRWriteProtect            NackReason = 0x0004
	NRUnsupportedCommandClass NackReason = 0x0005
	NRDataOutOfRange          NackReason = 0x0006
	NRBufferFull              NackReason = 0x0007
	NRPacketSizeUnsupported   NackReason = 0x0008
	NRSubDeviceOutOfRange     NackReason = 0x0009
	NRProxyBufferFull         NackReason = 0x000a
)

func (nr NackReason) String() string {
	switch nr {
	case NRUnknownPID:
		return "UNKNOWN_PID"
	case NRFormatError:
		return "FORMAT_ERROR"
	case NRHardwareFault:
		return "HARDWARE_FAULT"
	case NRProxyReject:
		return "PROXY_REJECT"
	case NRWriteProtect:
		return "WRITE_PROTECT"
	case NRUnsupportedCommandClass:
		return "UNSUPPORTED_COMMAND_CLASS"
	case NRDataOutOfRange:
		return "DATA_OUT_OF_RANGE"
	case NRBufferFull:
		return "BUFFER_FULL"
	case NRPacketSizeUnsupported:
		return "PACKET_SIZE_UNSUPPORTED"
	case NRSubDeviceOutOfRange:
		return "SUB_DEVICE_OUT_OF_RANGE"
	case NRProxyBufferFull:
		return "PROXY_BUFFER_FULL"
	}
	return "UNKNOWN_NACK_REASON"
}

// PID is an RDM parameter identifier.
type PID uint16

// Parameter IDs from E1.20 table A-3 that this stack knows about.
const (
	PIDDiscUniqueBranch     PID = 0x0001
	PIDDiscMute             PID = 0x0002
	PIDDiscUnMute           PID = 0x0003
	PIDProxiedDevices       PID = 0x0010
	PIDProxiedDeviceCount   PID = 0x0011
	PIDCommsStatus          PID = 0x0015
	PIDQueuedMessage        PID = 0x0020
	PIDStatusMessages       PID = 0x0030
	PIDSupportedParameters  PID = 0x0050
	PIDParameterDescription PID = 0x0051
	PIDDeviceInfo           PID = 0x0060
	PIDDeviceModelDesc      PID = 0x0080
	PIDManufacturerLabel    PID = 0x0081
	PIDDeviceLabel          PID = 0x0082
	PIDLanguage             PID = 0x00b0
	PIDSoftwareVersionLabel PID = 0x00c0
	PIDDMXPersonality       PID = 0x00e0
	PIDDMXStartAddress      PID = 0x00f0
	PIDSensorDefinition     PID = 0x0200
	PIDSensorValue          PID = 0x0201
	PIDDeviceHours          PID = 0x0400
	PIDIdentifyDevice       PID = 0x1000
	PIDResetDevice          PID = 0x1001
)

func (pid PID) String() string {
	switch pid {
	case PIDDiscUniqueBranch:
		return "DISC_UNIQUE_BRANCH"
	case PIDDiscMute:
		return "DISC_MUTE"
	case PIDDiscUnMute:
		return "DISC_UN_MUTE"
	case PIDProxiedDevices:
		return "PROXIED_DEVICES"
	case PIDProxiedDeviceCount:
		return "PROXIED_DEVICE_COUNT"
	case PIDCommsStatus:
		return "COMMS_STATUS"
	case PIDQueuedMessage:
		return "QUEUED_MESSAGE"
	case PIDStatusMessages:
		return "STATUS_MESSAGES"
	case PIDSupportedParameters:
		return "SUPPORTED_PARAMETERS"
	case PIDParameterDescription:
		return "PARAMETER_DESCRIPTION"
	case PIDDeviceInfo:
		return "DEVICE_INFO"
	case PIDDeviceModelDesc:
		return "DEVICE_MODEL_DESCRIPTION"
	case PIDManufacturerLabel:
		return "MANUFACTURER_LABEL"
	case PIDDeviceLabel:
		return "DEVICE_LABEL"
	case PIDLanguage:
		return "LANGUAGE"
	case PIDSoftwareVersionLabel:
		return "SOFTWARE_VERSION_LABEL"
	case PIDDMXPersonality:
		return "DMX_PERSONALITY"
	case PIDDMXStartAddress:
		return "DMX_START_ADDRESS"
	case PIDSensorDefinition:
		return "SENSOR_DEFINITION"
	case PIDSensorValue:
		return "SENSOR_VALUE"
	case PIDDeviceHours:
		return "DEVICE_HOURS"
	case PIDIdentifyDevice:
		return "IDENTIFY_DEVICE"
	case PIDResetDevice:
		return "RESET_DEVICE"
	}
	return "UNKNOWN_PID"
}

// SubDeviceRoot addresses the root device; SubDeviceAll addresses every
// sub-device of a target. This stack implements the root device only.
const (
	SubDeviceRoot uint16 = 0x0000
	SubDeviceAll  uint16 = 0xffff
)

// Inter-packet spacing and response timeouts in microseconds, from
// E1.20 table 3-2. The transaction layer selects one of these for every
// frame it transmits.
const (
	DiscoveryNoResponsePacketSpacing = 5800
	RequestNoResponsePacketSpacing   = 3000
	BroadcastPacketSpacing           = 176
	RespondToRequestPacketSpacing    = 176

	ControllerResponseLostTimeout = 2800
	ResponderResponseLostTimeout  = 2000
)
