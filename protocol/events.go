package protocol

import (
	"encoding/binary"
)

// ParseEventType returns the event type byte of an inbound frame.
// Unrecognized values are returned as-is; use IsKnownEvent to check them.
func ParseEventType(frame []byte) (byte, error) {
	if len(frame) == 0 {
		return 0, &DecodeError{Operation: "event", Length: 0, Reason: "empty frame"}
	}
	return frame[0], nil
}

// IsKnownEvent reports whether the event type is one this library decodes.
func IsKnownEvent(eventType byte) bool {
	switch eventType {
	case EventStatusReport, EventWriteStdout, EventWriteAppData:
		return true
	default:
		return false
	}
}

// ParseStatusReport decodes a Status Report event frame.
//
// Frame structure:
//
//	[EVENT][FLAGS_0][FLAGS_1][FLAGS_2][FLAGS_3][SLOT?]
//
// Older firmware omits the slot byte; the slot is then reported as 0.
func ParseStatusReport(frame []byte) (StatusReport, error) {
	if len(frame) < StatusReportMinSize {
		return StatusReport{}, &DecodeError{Operation: "status report", Length: len(frame), Reason: "too short"}
	}
	if frame[0] != EventStatusReport {
		return StatusReport{}, &DecodeError{Operation: "status report", Length: len(frame), Reason: "wrong event type"}
	}

	report := StatusReport{
		Flags: StatusFlags(binary.LittleEndian.Uint32(frame[1:5])),
	}
	if len(frame) >= StatusReportSize {
		report.Slot = frame[5]
	}

	return report, nil
}

// ParseWriteStdout decodes a Write Stdout event frame into its text.
//
// Frame structure:
//
//	[EVENT][UTF-8 TEXT...]
func ParseWriteStdout(frame []byte) (string, error) {
	if len(frame) < 1 || frame[0] != EventWriteStdout {
		return "", &DecodeError{Operation: "write stdout", Length: len(frame), Reason: "wrong event type"}
	}
	return string(frame[1:]), nil
}

// ParseWriteAppData decodes a Write App Data event frame into its payload.
// The returned slice aliases the frame.
//
// Frame structure:
//
//	[EVENT][DATA...]
func ParseWriteAppData(frame []byte) ([]byte, error) {
	if len(frame) < 1 || frame[0] != EventWriteAppData {
		return nil, &DecodeError{Operation: "write app data", Length: len(frame), Reason: "wrong event type"}
	}
	return frame[1:], nil
}

// BuildStatusReportEvent constructs a Status Report event frame as sent by
// the hub. Used by simulators and tests.
func BuildStatusReportEvent(flags StatusFlags, slot uint8) []byte {
	frame := make([]byte, StatusReportSize)
	frame[0] = EventStatusReport
	binary.LittleEndian.PutUint32(frame[1:5], uint32(flags))
	frame[5] = slot
	return frame
}

// BuildWriteStdoutEvent constructs a Write Stdout event frame as sent by
// the hub. Used by simulators and tests.
func BuildWriteStdoutEvent(text string) []byte {
	frame := make([]byte, 1+len(text))
	frame[0] = EventWriteStdout
	copy(frame[1:], text)
	return frame
}

// ParseHubCapabilities decodes the hub capabilities characteristic.
//
// Data format (10 or 11 bytes):
//
//	[MAX_WRITE_SIZE(2)][FLAGS(4)][MAX_USER_PROGRAM_SIZE(4)][NUM_SLOTS(1)?]
func ParseHubCapabilities(data []byte) (HubCapabilities, error) {
	if len(data) < HubCapabilitiesSize {
		return HubCapabilities{}, &DecodeError{Operation: "hub capabilities", Length: len(data), Reason: "too short"}
	}

	caps := HubCapabilities{
		MaxWriteSize:       binary.LittleEndian.Uint16(data[0:2]),
		Flags:              HubCapabilityFlag(binary.LittleEndian.Uint32(data[2:6])),
		MaxUserProgramSize: binary.LittleEndian.Uint32(data[6:10]),
	}
	if len(data) > HubCapabilitiesSize {
		caps.NumSlots = data[10]
	}

	return caps, nil
}

// ParsePnPID decodes the Device Information PnP ID characteristic.
//
// Data format (7 bytes):
//
//	[VENDOR_ID_SOURCE(1)][VENDOR_ID(2)][PRODUCT_ID(2)][PRODUCT_VERSION(2)]
func ParsePnPID(data []byte) (PnPID, error) {
	if len(data) != PnPIDSize {
		return PnPID{}, &DecodeError{Operation: "pnp id", Length: len(data), Reason: "expected 7 bytes"}
	}

	return PnPID{
		VendorIDSource: data[0],
		VendorID:       binary.LittleEndian.Uint16(data[1:3]),
		ProductID:      binary.LittleEndian.Uint16(data[3:5]),
		ProductVersion: binary.LittleEndian.Uint16(data[5:7]),
	}, nil
}

// BuildHubCapabilities encodes a capabilities record as served by the hub,
// including the slot count byte. Used by simulators and tests.
func BuildHubCapabilities(caps HubCapabilities) []byte {
	data := make([]byte, HubCapabilitiesSize+1)
	binary.LittleEndian.PutUint16(data[0:2], caps.MaxWriteSize)
	binary.LittleEndian.PutUint32(data[2:6], uint32(caps.Flags))
	binary.LittleEndian.PutUint32(data[6:10], caps.MaxUserProgramSize)
	data[10] = caps.NumSlots
	return data
}

// BuildPnPID encodes a PnP ID record. Used by simulators and tests.
func BuildPnPID(id PnPID) []byte {
	data := make([]byte, PnPIDSize)
	data[0] = id.VendorIDSource
	binary.LittleEndian.PutUint16(data[1:3], id.VendorID)
	binary.LittleEndian.PutUint16(data[3:5], id.ProductID)
	binary.LittleEndian.PutUint16(data[5:7], id.ProductVersion)
	return data
}
