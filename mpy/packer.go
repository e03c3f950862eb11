package mpy

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Compiler cross-compiles one MicroPython source file into .mpy bytecode.
//
// Implementations should return a *CompileError for syntax or semantic
// errors. Any other error is wrapped into a CompileError by Pack.
type Compiler interface {
	Compile(ctx context.Context, filename, source string) ([]byte, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, filename, source string) ([]byte, error)

// Compile calls f(ctx, filename, source).
func (f CompilerFunc) Compile(ctx context.Context, filename, source string) ([]byte, error) {
	return f(ctx, filename, source)
}

// LengthSize is the size of the little-endian length prefix of a record.
const LengthSize = 4

// Pack compiles every source independently and serializes the results into
// a single image. The first source is always named "__main__"; the others
// are named after their filename with a trailing ".py" removed.
//
// Each record is laid out as:
//
//	[LENGTH(4, little-endian)][NAME...][0x00][BYTECODE(LENGTH)]
//
// Any compile failure fails the whole operation; no partial image is
// returned.
//
// Example:
//
//	img, err := mpy.Pack(ctx, compiler, []mpy.Source{
//	    {Filename: "main.py", Code: "import helper\nhelper.go()"},
//	    {Filename: "helper.py", Code: "def go(): print('hi')"},
//	})
func Pack(ctx context.Context, c Compiler, sources []Source) (*Image, error) {
	if c == nil {
		return nil, fmt.Errorf("compiler cannot be nil")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources to compile")
	}

	modules := make([]CompiledModule, 0, len(sources))
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled: %w", err)
		}

		bytecode, err := c.Compile(ctx, src.Filename, src.Code)
		if err != nil {
			return nil, asCompileError(src.Filename, err)
		}
		if len(bytecode) == 0 {
			return nil, &NoMpyOutputError{Filename: src.Filename}
		}

		modules = append(modules, CompiledModule{
			Name:     LogicalName(i, src.Filename),
			Filename: src.Filename,
			Bytecode: bytecode,
		})
	}

	return &Image{
		Data:    Encode(modules),
		Modules: modules,
	}, nil
}

// LogicalName returns the module name used inside an image for the source
// at the given position.
func LogicalName(index int, filename string) string {
	if index == 0 {
		return MainModuleName
	}
	return strings.TrimSuffix(filename, ".py")
}

// Encode serializes compiled modules into image records in order.
func Encode(modules []CompiledModule) []byte {
	size := 0
	for _, m := range modules {
		size += LengthSize + len(m.Name) + 1 + len(m.Bytecode)
	}

	data := make([]byte, 0, size)
	for _, m := range modules {
		data = binary.LittleEndian.AppendUint32(data, uint32(len(m.Bytecode)))
		data = append(data, m.Name...)
		data = append(data, 0)
		data = append(data, m.Bytecode...)
	}

	return data
}

// asCompileError makes sure a compiler failure carries the filename.
func asCompileError(filename string, err error) error {
	var ce *CompileError
	if errors.As(err, &ce) {
		return err
	}
	var ne *NoMpyOutputError
	if errors.As(err, &ne) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("compile %s: %w", filename, err)
	}
	return &CompileError{Filename: filename, Message: err.Error()}
}
