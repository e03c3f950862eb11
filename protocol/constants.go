package protocol

// ProfileVersion is the Pybricks BLE profile version implemented by this library.
const ProfileVersion = "1.3.0"

// GATT services and characteristics exposed by Pybricks firmware.
// These must match the hub firmware bit for bit.
const (
	// ServiceUUID is the primary Pybricks control service
	ServiceUUID = "c5f50001-8280-46da-89f4-6d8051e4aeef"

	// ControlEventCharacteristicUUID carries commands (write) and events (notify)
	ControlEventCharacteristicUUID = "c5f50002-8280-46da-89f4-6d8051e4aeef"

	// HubCapabilitiesCharacteristicUUID is read once after connecting
	HubCapabilitiesCharacteristicUUID = "c5f50003-8280-46da-89f4-6d8051e4aeef"
)

// Standard Bluetooth SIG device information service.
const (
	// DeviceInfoServiceUUID is the Device Information service (0x180A)
	DeviceInfoServiceUUID = "0000180a-0000-1000-8000-00805f9b34fb"

	// FirmwareRevisionCharacteristicUUID is the Firmware Revision String (0x2A26)
	FirmwareRevisionCharacteristicUUID = "00002a26-0000-1000-8000-00805f9b34fb"

	// SoftwareRevisionCharacteristicUUID is the Software Revision String (0x2A28)
	SoftwareRevisionCharacteristicUUID = "00002a28-0000-1000-8000-00805f9b34fb"

	// PnPIDCharacteristicUUID is the PnP ID (0x2A50)
	PnPIDCharacteristicUUID = "00002a50-0000-1000-8000-00805f9b34fb"
)

// Command codes written to the control/event characteristic.
const (
	// CmdStopUserProgram stops the running user program
	CmdStopUserProgram = 0x00

	// CmdStartUserProgram starts the user program in the given slot
	CmdStartUserProgram = 0x01

	// CmdStartRepl starts the interactive REPL (unused by the upload pipeline)
	CmdStartRepl = 0x02

	// CmdWriteUserProgramMeta sets the size of the stored user program
	CmdWriteUserProgramMeta = 0x03

	// CmdWriteUserRAM writes a chunk of the user program at an offset
	CmdWriteUserRAM = 0x04

	// CmdResetInUpdateMode reboots the hub into firmware update mode
	CmdResetInUpdateMode = 0x05

	// CmdWriteStdin sends bytes to the user program's stdin
	CmdWriteStdin = 0x06

	// CmdWriteAppData writes to the hub's application data buffer
	CmdWriteAppData = 0x07
)

// Event codes notified on the control/event characteristic.
const (
	// EventStatusReport carries the hub status flags and active slot
	EventStatusReport = 0x00

	// EventWriteStdout carries text printed by the user program
	EventWriteStdout = 0x01

	// EventWriteAppData carries raw application data from the user program
	EventWriteAppData = 0x02
)

// Frame sizes.
const (
	// CommandSize is the size of the command byte
	CommandSize = 1

	// OffsetSize is the size of a little-endian uint32 offset or size field
	OffsetSize = 4

	// WriteUserRAMHeaderSize is the command byte plus the 4-byte offset
	WriteUserRAMHeaderSize = CommandSize + OffsetSize

	// WriteUserProgramMetaSize is the total size of a meta command frame
	WriteUserProgramMetaSize = CommandSize + OffsetSize

	// WriteAppDataHeaderSize is the command byte plus a 2-byte offset
	WriteAppDataHeaderSize = CommandSize + 2

	// StatusReportMinSize is the event byte plus the 4-byte flags field
	StatusReportMinSize = 1 + 4

	// StatusReportSize includes the trailing slot byte
	StatusReportSize = StatusReportMinSize + 1

	// MinWriteSize is the smallest write size that lets a chunked upload
	// make progress: header plus one payload byte
	MinWriteSize = WriteUserRAMHeaderSize + 1

	// DefaultMaxWriteSize is assumed when the capabilities characteristic
	// could not be read (23-byte ATT MTU minus 3 bytes of ATT overhead)
	DefaultMaxWriteSize = 20
)

// Program slots.
const (
	// SlotMain is the ad-hoc slot targeted by uploads
	SlotMain = 0x00

	// SlotRepl is the builtin interactive REPL
	SlotRepl = 0x80

	// SlotPortView is the builtin port view program
	SlotPortView = 0x81

	// SlotIMUCalibration is the builtin IMU calibration program
	SlotIMUCalibration = 0x82

	// BuiltinSlotMin is the first slot id reserved for builtin programs
	BuiltinSlotMin = 0x80
)

// HubCapabilitiesSize is the size of the capabilities record without the
// optional slot count byte.
const HubCapabilitiesSize = 10

// PnPIDSize is the size of the PnP ID characteristic value.
const PnPIDSize = 7
