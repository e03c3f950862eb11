package protocol

import "fmt"

// DecodeError reports a frame that is too short or otherwise malformed.
type DecodeError struct {
	// Operation is what was being decoded
	Operation string

	// Length is the length of the offending frame
	Length int

	// Reason describes the problem
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s (frame length %d)", e.Operation, e.Reason, e.Length)
}

// IsDecodeError returns true if the error is a DecodeError.
func IsDecodeError(err error) bool {
	_, ok := err.(*DecodeError)
	return ok
}

// UnknownEventError reports an event type this library does not understand.
// It is an anomaly, not a failure: callers drop the frame and keep going.
type UnknownEventError struct {
	// Type is the unrecognized event byte
	Type byte
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event type 0x%02X", e.Type)
}

// getCommandName returns a human-readable name for a command code.
func getCommandName(code byte) string {
	switch code {
	case CmdStopUserProgram:
		return "stop user program"
	case CmdStartUserProgram:
		return "start user program"
	case CmdStartRepl:
		return "start repl"
	case CmdWriteUserProgramMeta:
		return "write user program meta"
	case CmdWriteUserRAM:
		return "write user ram"
	case CmdResetInUpdateMode:
		return "reset in update mode"
	case CmdWriteStdin:
		return "write stdin"
	case CmdWriteAppData:
		return "write app data"
	default:
		return fmt.Sprintf("unknown command 0x%02X", code)
	}
}

// CommandName returns a human-readable name for a command code.
func CommandName(code byte) string {
	return getCommandName(code)
}
