package mpy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// wasmWorkDir is where the temp directory is mounted inside the guest.
const wasmWorkDir = "/work"

// WasmCompiler compiles sources with a WASI build of mpy-cross running on
// an embedded WebAssembly runtime, so no native toolchain is needed.
//
// The module is compiled once by NewWasmCompiler and instantiated afresh
// for every Compile call. Call Close when done.
type WasmCompiler struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	args     []string
}

// NewWasmCompiler loads a WASI mpy-cross binary. Extra arguments are passed
// before the input file on every compile.
//
// Example:
//
//	wasm, _ := os.ReadFile("mpy-cross.wasm")
//	c, err := mpy.NewWasmCompiler(ctx, wasm)
//	defer c.Close(ctx)
func NewWasmCompiler(ctx context.Context, wasm []byte, args ...string) (*WasmCompiler, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("compile mpy-cross module: %w", err)
	}

	return &WasmCompiler{
		runtime:  rt,
		compiled: compiled,
		args:     args,
	}, nil
}

// NewWasmCompilerFromFile is NewWasmCompiler for a .wasm file on disk.
func NewWasmCompilerFromFile(ctx context.Context, path string, args ...string) (*WasmCompiler, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewWasmCompiler(ctx, wasm, args...)
}

// Compile runs one mpy-cross instance against a temporary directory that
// holds the source and receives the .mpy output.
func (c *WasmCompiler) Compile(ctx context.Context, filename, source string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "mpy-cross-wasm-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	if err := os.WriteFile(filepath.Join(dir, "input.py"), []byte(source), 0o600); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}

	in := wasmWorkDir + "/input.py"
	out := wasmWorkDir + "/output.mpy"
	argv := append([]string{DefaultMpyCross}, mpyCrossArgs(c.args, filename, in, out)...)

	var stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(argv...).
		WithStdout(&stderr).
		WithStderr(&stderr).
		WithFSConfig(wazero.NewFSConfig().WithDirMount(dir, wasmWorkDir))

	mod, err := c.runtime.InstantiateModule(ctx, c.compiled, cfg)
	if mod != nil {
		defer func() { _ = mod.Close(ctx) }()
	}
	if err != nil {
		var exitErr *sys.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run mpy-cross module: %w", err)
		}
		if exitErr.ExitCode() != 0 {
			return nil, &CompileError{Filename: filename, Message: compilerMessage(stderr.String(), err)}
		}
	}

	return readOutput(filename, filepath.Join(dir, "output.mpy"))
}

// Close releases the WebAssembly runtime.
func (c *WasmCompiler) Close(ctx context.Context) error {
	return c.runtime.Close(ctx)
}
