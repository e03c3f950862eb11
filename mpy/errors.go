package mpy

import (
	"errors"
	"fmt"
)

// CompileError indicates that one source file failed to compile.
type CompileError struct {
	Filename string
	Message  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %s", e.Filename, e.Message)
}

// NoMpyOutputError indicates that the compiler reported success for a file
// but produced no bytecode.
type NoMpyOutputError struct {
	Filename string
}

func (e *NoMpyOutputError) Error() string {
	return fmt.Sprintf("compile %s: compiler produced no mpy output", e.Filename)
}

// ImageFormatError indicates a malformed image or .mpy header.
type ImageFormatError struct {
	Offset int
	Reason string
}

func (e *ImageFormatError) Error() string {
	return fmt.Sprintf("invalid image at offset %d: %s", e.Offset, e.Reason)
}

// IsCompileError returns true if err is or wraps a CompileError or a
// NoMpyOutputError.
func IsCompileError(err error) bool {
	var ce *CompileError
	var ne *NoMpyOutputError
	return errors.As(err, &ce) || errors.As(err, &ne)
}
