// Package mpy cross-compiles MicroPython sources and packs them into a
// multi-module image that Pybricks firmware can run.
//
// # Image Format
//
// An image is a sequence of module records, one per source file:
//
//	[LENGTH(4, little-endian)][NAME][0x00][BYTECODE(LENGTH)]
//
// The first record is always named "__main__". Every other record is named
// after its filename without the ".py" suffix, so "helper.py" can be
// imported as "helper".
//
// # Usage
//
// Pack sources with any Compiler:
//
//	compiler := &mpy.ExecCompiler{Path: "mpy-cross"}
//	sources, err := mpy.ReadSources("main.py", "helper.py")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	img, err := mpy.Pack(ctx, compiler, sources)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("image: %d bytes, %d modules\n", img.Size(), len(img.Modules))
//
// Decode an image back into its records:
//
//	records, err := mpy.ParseImage(img.Data)
//
// # Compilers
//
//   - ExecCompiler runs a native mpy-cross executable
//   - WasmCompiler runs a WASI build of mpy-cross in-process
//   - CompilerFunc adapts a plain function (handy in tests)
//
// # Error Handling
//
// Pack returns detailed errors:
//   - CompileError: a source failed to compile (carries the filename)
//   - NoMpyOutputError: the compiler succeeded but produced nothing
//
// Pack never returns a partial image.
package mpy
