package mpy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultMpyCross is the mpy-cross executable looked up on PATH.
const DefaultMpyCross = "mpy-cross"

// ExecCompiler compiles sources by running the mpy-cross executable.
type ExecCompiler struct {
	// Path is the mpy-cross executable (DefaultMpyCross if empty)
	Path string

	// Args are extra arguments passed before the input file,
	// e.g. "-msmall-int-bits=31"
	Args []string
}

// Compile writes source to a temporary directory, runs mpy-cross on it and
// returns the produced .mpy bytes.
func (c *ExecCompiler) Compile(ctx context.Context, filename, source string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "mpy-cross-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	in := filepath.Join(dir, "input.py")
	out := filepath.Join(dir, "output.mpy")
	if err := os.WriteFile(in, []byte(source), 0o600); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}

	path := c.Path
	if path == "" {
		path = DefaultMpyCross
	}

	cmd := exec.CommandContext(ctx, path, mpyCrossArgs(c.Args, filename, in, out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &CompileError{Filename: filename, Message: compilerMessage(stderr.String(), err)}
		}
		return nil, fmt.Errorf("run %s: %w", path, err)
	}

	return readOutput(filename, out)
}

// mpyCrossArgs builds the mpy-cross command line shared by all backends.
func mpyCrossArgs(extra []string, filename, in, out string) []string {
	args := make([]string, 0, len(extra)+5)
	args = append(args, extra...)
	args = append(args, "-o", out, "-s", filename, in)
	return args
}

// readOutput reads the compiler output file, treating a missing or empty
// file as NoMpyOutputError.
func readOutput(filename, out string) ([]byte, error) {
	data, err := os.ReadFile(out)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &NoMpyOutputError{Filename: filename}
	}
	if err != nil {
		return nil, fmt.Errorf("read mpy output: %w", err)
	}
	if len(data) == 0 {
		return nil, &NoMpyOutputError{Filename: filename}
	}
	return data, nil
}

func compilerMessage(output string, err error) string {
	msg := strings.TrimSpace(output)
	if msg == "" {
		return err.Error()
	}
	return msg
}
