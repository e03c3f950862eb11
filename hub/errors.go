package hub

import (
	"fmt"
)

// Upload steps reported in UploadFailedError.Step.
const (
	StepValidate   = "validate"
	StepInvalidate = "invalidate"
	StepWrite      = "write"
	StepFinalize   = "finalize"
)

// UploadFailedError indicates that an upload was aborted. The hub is left
// with an invalidated program unless Step is StepValidate, in which case
// nothing was written.
type UploadFailedError struct {
	Step   string
	Offset int
	Err    error
}

func (e *UploadFailedError) Error() string {
	if e.Step == StepWrite {
		return fmt.Sprintf("upload failed: %s at offset %d: %v", e.Step, e.Offset, e.Err)
	}
	return fmt.Sprintf("upload failed: %s: %v", e.Step, e.Err)
}

func (e *UploadFailedError) Unwrap() error {
	return e.Err
}

// ProgramTooLargeError indicates that an image exceeds the hub's
// MaxUserProgramSize.
type ProgramTooLargeError struct {
	Size int
	Max  uint32
}

func (e *ProgramTooLargeError) Error() string {
	return fmt.Sprintf("program too large: %d bytes, hub accepts at most %d", e.Size, e.Max)
}

// WriteSizeError indicates that the link's MaxWriteSize cannot carry a
// user RAM chunk.
type WriteSizeError struct {
	MaxWriteSize int
	Min          int
}

func (e *WriteSizeError) Error() string {
	return fmt.Sprintf("max write size %d is below the minimum of %d", e.MaxWriteSize, e.Min)
}

// StateError indicates that an operation is not allowed in the current
// hub-side state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}
