package protocol

import (
	"encoding/binary"
)

// BuildStopUserProgramCmd constructs a Stop User Program command frame.
//
// Frame structure:
//
//	[CMD]
func BuildStopUserProgramCmd() []byte {
	return []byte{CmdStopUserProgram}
}

// BuildStartUserProgramCmd constructs a Start User Program command frame.
// Slot 0 is the ad-hoc slot used for uploaded programs; slots at or above
// BuiltinSlotMin select builtin programs.
//
// Frame structure:
//
//	[CMD][SLOT]
func BuildStartUserProgramCmd(slot uint8) []byte {
	return []byte{CmdStartUserProgram, slot}
}

// BuildStartReplCmd constructs a Start REPL command frame.
//
// Frame structure:
//
//	[CMD]
func BuildStartReplCmd() []byte {
	return []byte{CmdStartRepl}
}

// BuildWriteUserProgramMetaCmd constructs a Write User Program Meta command frame.
// A size of 0 invalidates the stored program; a non-zero size activates
// the bytes previously written to user RAM.
//
// Frame structure:
//
//	[CMD][SIZE_0][SIZE_1][SIZE_2][SIZE_3]
func BuildWriteUserProgramMetaCmd(size uint32) []byte {
	frame := make([]byte, WriteUserProgramMetaSize)
	frame[0] = CmdWriteUserProgramMeta
	binary.LittleEndian.PutUint32(frame[1:], size)
	return frame
}

// BuildWriteUserRAMCmd constructs a Write User RAM command frame.
// The caller is responsible for keeping the frame within the link's
// maximum write size.
//
// Frame structure:
//
//	[CMD][OFFSET_0][OFFSET_1][OFFSET_2][OFFSET_3][PAYLOAD...]
func BuildWriteUserRAMCmd(offset uint32, payload []byte) []byte {
	frame := make([]byte, WriteUserRAMHeaderSize+len(payload))
	frame[0] = CmdWriteUserRAM
	binary.LittleEndian.PutUint32(frame[1:5], offset)
	copy(frame[WriteUserRAMHeaderSize:], payload)
	return frame
}

// BuildResetInUpdateModeCmd constructs a Reset In Update Mode command frame.
//
// Frame structure:
//
//	[CMD]
func BuildResetInUpdateModeCmd() []byte {
	return []byte{CmdResetInUpdateMode}
}

// BuildWriteStdinCmd constructs a Write Stdin command frame.
//
// Frame structure:
//
//	[CMD][DATA...]
func BuildWriteStdinCmd(data []byte) []byte {
	frame := make([]byte, CommandSize+len(data))
	frame[0] = CmdWriteStdin
	copy(frame[CommandSize:], data)
	return frame
}

// BuildWriteAppDataCmd constructs a Write App Data command frame.
//
// Frame structure:
//
//	[CMD][OFFSET_L][OFFSET_H][DATA...]
func BuildWriteAppDataCmd(offset uint16, data []byte) []byte {
	frame := make([]byte, WriteAppDataHeaderSize+len(data))
	frame[0] = CmdWriteAppData
	binary.LittleEndian.PutUint16(frame[1:3], offset)
	copy(frame[WriteAppDataHeaderSize:], data)
	return frame
}

// ParseCommand decodes a command frame. It is the inverse of the Build*
// functions and is used by simulators and round-trip tests.
//
// Unknown command codes decode to a Command with only Code set.
func ParseCommand(frame []byte) (*Command, error) {
	if len(frame) < CommandSize {
		return nil, &DecodeError{Operation: "command", Length: len(frame), Reason: "empty frame"}
	}

	cmd := &Command{Code: frame[0]}
	body := frame[CommandSize:]

	switch cmd.Code {
	case CmdStartUserProgram:
		// Profiles before 1.4 send no slot byte
		if len(body) > 0 {
			cmd.Slot = body[0]
		}

	case CmdWriteUserProgramMeta:
		if len(body) < OffsetSize {
			return nil, &DecodeError{Operation: getCommandName(cmd.Code), Length: len(frame), Reason: "missing size"}
		}
		cmd.Size = binary.LittleEndian.Uint32(body[:OffsetSize])

	case CmdWriteUserRAM:
		if len(body) < OffsetSize {
			return nil, &DecodeError{Operation: getCommandName(cmd.Code), Length: len(frame), Reason: "missing offset"}
		}
		cmd.Offset = binary.LittleEndian.Uint32(body[:OffsetSize])
		cmd.Payload = body[OffsetSize:]

	case CmdWriteStdin:
		cmd.Payload = body

	case CmdWriteAppData:
		if len(body) < 2 {
			return nil, &DecodeError{Operation: getCommandName(cmd.Code), Length: len(frame), Reason: "missing offset"}
		}
		cmd.Offset = uint32(binary.LittleEndian.Uint16(body[:2]))
		cmd.Payload = body[2:]
	}

	return cmd, nil
}
