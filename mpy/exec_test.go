package mpy

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMpyCross mimics the mpy-cross command line: it writes a v6 header
// followed by the source to the -o path, fails on "syntax error" and
// writes nothing for "no output".
const fakeMpyCross = `#!/bin/sh
out=""
src=""
name=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift 2;;
    -s) name="$2"; shift 2;;
    -*) shift;;
    *) src="$1"; shift;;
  esac
done
if grep -q "syntax error" "$src"; then
  echo "Traceback: File \"$name\", line 1" >&2
  echo "SyntaxError: invalid syntax" >&2
  exit 1
fi
if grep -q "no output" "$src"; then
  exit 0
fi
printf 'M\006\000\037' > "$out"
cat "$src" >> "$out"
`

func newFakeMpyCross(t *testing.T) *ExecCompiler {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script compiler requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "mpy-cross")
	require.NoError(t, os.WriteFile(path, []byte(fakeMpyCross), 0o755))
	return &ExecCompiler{Path: path, Args: []string{"-msmall-int-bits=31"}}
}

func TestExecCompiler(t *testing.T) {
	c := newFakeMpyCross(t)

	out, err := c.Compile(context.Background(), "main.py", "print(1)")
	require.NoError(t, err)
	require.NoError(t, CheckHeader(out))
	assert.True(t, strings.HasSuffix(string(out), "print(1)"))
}

func TestExecCompilerSyntaxError(t *testing.T) {
	c := newFakeMpyCross(t)

	_, err := c.Compile(context.Background(), "helper.py", "syntax error here")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "helper.py", ce.Filename)
	assert.Contains(t, ce.Message, "SyntaxError")
	assert.Contains(t, ce.Message, "helper.py", "source name is passed with -s")
}

func TestExecCompilerNoOutput(t *testing.T) {
	c := newFakeMpyCross(t)

	_, err := c.Compile(context.Background(), "main.py", "no output")
	var ne *NoMpyOutputError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "main.py", ne.Filename)
}

func TestExecCompilerMissingBinary(t *testing.T) {
	c := &ExecCompiler{Path: filepath.Join(t.TempDir(), "does-not-exist")}

	_, err := c.Compile(context.Background(), "main.py", "print(1)")
	require.Error(t, err)
	assert.False(t, IsCompileError(err), "a missing compiler is not a source error")
	assert.Contains(t, err.Error(), "run ")
}

func TestMpyCrossArgs(t *testing.T) {
	args := mpyCrossArgs([]string{"-O1"}, "main.py", "/in.py", "/out.mpy")
	assert.Equal(t, []string{"-O1", "-o", "/out.mpy", "-s", "main.py", "/in.py"}, args)
}

func TestReadSources(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("import helper"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.py"), []byte("x = 1"), 0o600))

	sources, err := ReadSources(filepath.Join(dir, "main.py"), filepath.Join(dir, "helper.py"))
	require.NoError(t, err)
	assert.Equal(t, []Source{
		{Filename: "main.py", Code: "import helper"},
		{Filename: "helper.py", Code: "x = 1"},
	}, sources)

	_, err = ReadSources(filepath.Join(dir, "missing.py"))
	assert.ErrorContains(t, err, "failed to open file")
}
