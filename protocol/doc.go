// Package protocol implements the Pybricks BLE command/event protocol.
//
// This package provides pure functions to build command frames and parse
// event frames written to and notified on the Pybricks control/event
// characteristic. It performs no I/O.
//
// # Protocol Overview
//
// Every frame starts with a one-byte discriminator. Multi-byte fields are
// little-endian:
//
//	Commands (host -> hub):
//	  StopUserProgram:       [0x00]
//	  StartUserProgram:      [0x01][SLOT]
//	  WriteUserProgramMeta:  [0x03][SIZE(4)]
//	  WriteUserRAM:          [0x04][OFFSET(4)][PAYLOAD...]
//	  WriteStdin:            [0x06][DATA...]
//
//	Events (hub -> host):
//	  StatusReport:          [0x00][FLAGS(4)][SLOT?]
//	  WriteStdout:           [0x01][UTF-8 TEXT...]
//	  WriteAppData:          [0x02][DATA...]
//
// # Command Builders
//
// Use the Build* functions to create command frames:
//
//	frame := protocol.BuildStartUserProgramCmd(protocol.SlotMain)
//	frame := protocol.BuildWriteUserRAMCmd(offset, chunk)
//
// # Event Parsers
//
// Use ParseEventType to dispatch, then the Parse* function for the event:
//
//	typ, err := protocol.ParseEventType(frame)
//	switch typ {
//	case protocol.EventStatusReport:
//	    report, err := protocol.ParseStatusReport(frame)
//	    if report.UserProgramRunning() { ... }
//	case protocol.EventWriteStdout:
//	    text, err := protocol.ParseWriteStdout(frame)
//	}
//
// # Error Handling
//
// Malformed frames produce a *DecodeError. Event types this package does
// not know are reported by callers as *UnknownEventError and ignored.
package protocol
