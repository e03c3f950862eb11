package mpy

// MainModuleName is the logical name always given to the first module of
// an image, whatever its source filename.
const MainModuleName = "__main__"

// Source is one named MicroPython source file.
type Source struct {
	// Filename is the path or name the source was loaded from
	Filename string

	// Code is the source text
	Code string
}

// CompiledModule is one source file compiled to bytecode.
type CompiledModule struct {
	// Name is the logical module name written into the image
	Name string

	// Filename is the source filename the module was compiled from
	Filename string

	// Bytecode is the compiled .mpy data
	Bytecode []byte
}

// Image is an upload-ready multi-module program.
type Image struct {
	// Data is the serialized image
	Data []byte

	// Modules lists the compiled modules in image order
	Modules []CompiledModule
}

// Size returns the image size in bytes.
func (img *Image) Size() int {
	return len(img.Data)
}

// Record is one module record decoded from an image.
type Record struct {
	// Name is the logical module name
	Name string

	// Offset is where the record starts within the image
	Offset int

	// Bytecode is the module's .mpy data (aliases the image)
	Bytecode []byte
}

// Header is the fixed prefix of a .mpy file.
type Header struct {
	// Version is the .mpy format version (6 for MicroPython 1.19+)
	Version byte

	// SubVersion is the .mpy sub-version (6.1 added native code)
	SubVersion byte

	// Arch is the native architecture (0 for bytecode only)
	Arch byte

	// SmallIntBits is the number of bits in a small int
	SmallIntBits byte
}
