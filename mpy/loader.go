package mpy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReadSource reads one source file from disk. The Filename of the returned
// Source is the base name of path, which is what the logical module name is
// derived from.
func ReadSource(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return Source{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadSourceFrom(filepath.Base(path), f)
}

// ReadSourceFrom reads a source from any io.Reader.
// This is useful for testing and reading from non-file sources.
func ReadSourceFrom(filename string, r io.Reader) (Source, error) {
	code, err := io.ReadAll(r)
	if err != nil {
		return Source{}, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return Source{Filename: filename, Code: string(code)}, nil
}

// ReadSources reads several source files in order. The first path becomes
// the __main__ module when the result is packed.
//
// Example:
//
//	sources, err := mpy.ReadSources("main.py", "helper.py")
//	img, err := mpy.Pack(ctx, compiler, sources)
func ReadSources(paths ...string) ([]Source, error) {
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		src, err := ReadSource(p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}
