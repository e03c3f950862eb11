package protocol

import (
	"fmt"
	"strings"
)

// StatusFlag is a bit index within the status report flags.
type StatusFlag uint8

// Status flag bit positions.
const (
	StatusBatteryLowVoltageWarning  StatusFlag = 0
	StatusBatteryLowVoltageShutdown StatusFlag = 1
	StatusBatteryHighCurrent        StatusFlag = 2
	StatusBLEAdvertising            StatusFlag = 3
	StatusBLELowSignal              StatusFlag = 4
	StatusPowerButtonPressed        StatusFlag = 5
	StatusUserProgramRunning        StatusFlag = 6
	StatusShutdown                  StatusFlag = 7
)

var statusFlagNames = [...]string{
	"battery-low-voltage-warning",
	"battery-low-voltage-shutdown",
	"battery-high-current",
	"ble-advertising",
	"ble-low-signal",
	"power-button-pressed",
	"user-program-running",
	"shutdown",
}

func (f StatusFlag) String() string {
	if int(f) < len(statusFlagNames) {
		return statusFlagNames[f]
	}
	return fmt.Sprintf("bit-%d", uint8(f))
}

// Mask returns the flag as a bit mask.
func (f StatusFlag) Mask() StatusFlags {
	return 1 << f
}

// StatusFlags is the uint32 bitset carried by a status report.
type StatusFlags uint32

// Has reports whether the given flag is set.
func (s StatusFlags) Has(f StatusFlag) bool {
	return s&f.Mask() != 0
}

// String lists the set flags, e.g. "ble-advertising|user-program-running".
func (s StatusFlags) String() string {
	if s == 0 {
		return "none"
	}
	var names []string
	for i := StatusFlag(0); i < 32; i++ {
		if s.Has(i) {
			names = append(names, i.String())
		}
	}
	return strings.Join(names, "|")
}

// StatusReport is a decoded status report event.
type StatusReport struct {
	// Flags is the hub status bitset
	Flags StatusFlags

	// Slot is the active program slot (0 when the frame carries no slot byte)
	Slot uint8
}

// UserProgramRunning reports whether the user program running bit is set.
func (r StatusReport) UserProgramRunning() bool {
	return r.Flags.Has(StatusUserProgramRunning)
}

// HubCapabilityFlag is a bit in the hub capabilities flags field.
type HubCapabilityFlag uint32

// Hub capability flags.
const (
	// CapabilityHasRepl indicates the hub has an interactive REPL
	CapabilityHasRepl HubCapabilityFlag = 1 << 0

	// CapabilityUserProgramMultiMpy6 indicates multi-module MPY v6 uploads
	CapabilityUserProgramMultiMpy6 HubCapabilityFlag = 1 << 1

	// CapabilityUserProgramMultiMpy6Native6p1 indicates MPY v6.1 native modules
	CapabilityUserProgramMultiMpy6Native6p1 HubCapabilityFlag = 1 << 2
)

// HubCapabilities is read once when the link is established and never
// changes for the lifetime of a connection.
type HubCapabilities struct {
	// MaxWriteSize is the largest single write the link accepts
	MaxWriteSize uint16

	// Flags is the capability bitset
	Flags HubCapabilityFlag

	// MaxUserProgramSize is the largest image the hub can store (0 = unknown)
	MaxUserProgramSize uint32

	// NumSlots is the number of program slots (0 when not reported)
	NumSlots uint8
}

// DefaultHubCapabilities returns the capabilities assumed when the
// capabilities characteristic is missing or unreadable.
func DefaultHubCapabilities() HubCapabilities {
	return HubCapabilities{MaxWriteSize: DefaultMaxWriteSize}
}

// Has reports whether the given capability flag is set.
func (c HubCapabilities) Has(f HubCapabilityFlag) bool {
	return c.Flags&f != 0
}

// ChunkSize returns the user RAM payload size per write.
// Returns 0 if MaxWriteSize cannot carry any payload.
func (c HubCapabilities) ChunkSize() int {
	if int(c.MaxWriteSize) < MinWriteSize {
		return 0
	}
	return int(c.MaxWriteSize) - WriteUserRAMHeaderSize
}

// PnPID is the decoded Device Information PnP ID characteristic.
type PnPID struct {
	// VendorIDSource is 1 for Bluetooth SIG, 2 for USB-IF
	VendorIDSource uint8

	// VendorID is the manufacturer id (0x0397 for LEGO)
	VendorID uint16

	// ProductID identifies the hub type
	ProductID uint16

	// ProductVersion is the product revision
	ProductVersion uint16
}

// Command is a decoded command frame.
type Command struct {
	// Code is the command byte
	Code byte

	// Slot is set for CmdStartUserProgram
	Slot uint8

	// Size is set for CmdWriteUserProgramMeta
	Size uint32

	// Offset is set for CmdWriteUserRAM and CmdWriteAppData
	Offset uint32

	// Payload is set for CmdWriteUserRAM, CmdWriteStdin and CmdWriteAppData
	Payload []byte
}
