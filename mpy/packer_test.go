package mpy

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCompiler returns fixed bytecode per filename and records calls.
type mockCompiler struct {
	outputs map[string][]byte
	fail    map[string]error
	calls   []string
}

func (m *mockCompiler) Compile(_ context.Context, filename, _ string) ([]byte, error) {
	m.calls = append(m.calls, filename)
	if err, ok := m.fail[filename]; ok {
		return nil, err
	}
	if out, ok := m.outputs[filename]; ok {
		return out, nil
	}
	return []byte{1, 2, 3}, nil
}

func TestPackSingleModule(t *testing.T) {
	c := &mockCompiler{}

	img, err := Pack(context.Background(), c, []Source{{Filename: "main.py", Code: "print(1)"}})
	require.NoError(t, err)

	// 4 (len) + 9 ("__main__\0") + 3 (bytecode)
	require.Equal(t, 16, img.Size())
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(img.Data[0:4]))
	assert.Equal(t, "__main__\x00", string(img.Data[4:13]))
	assert.Equal(t, []byte{1, 2, 3}, img.Data[13:])
	require.Len(t, img.Modules, 1)
	assert.Equal(t, "main.py", img.Modules[0].Filename)
}

func TestPackModuleNames(t *testing.T) {
	c := &mockCompiler{outputs: map[string][]byte{
		"main.py":   {0xA0},
		"helper.py": {0xB0, 0xB1},
		"util.py":   {0xC0, 0xC1, 0xC2},
	}}

	img, err := Pack(context.Background(), c, []Source{
		{Filename: "main.py"},
		{Filename: "helper.py"},
		{Filename: "util.py"},
	})
	require.NoError(t, err)

	records, err := ParseImage(img.Data)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "__main__", records[0].Name)
	assert.Equal(t, "helper", records[1].Name)
	assert.Equal(t, "util", records[2].Name)
	assert.Equal(t, []byte{0xA0}, records[0].Bytecode)
	assert.Equal(t, []byte{0xB0, 0xB1}, records[1].Bytecode)
	assert.Equal(t, []byte{0xC0, 0xC1, 0xC2}, records[2].Bytecode)
	assert.Equal(t, []string{"main.py", "helper.py", "util.py"}, c.calls)
}

func TestPackFirstModuleAlwaysMain(t *testing.T) {
	img, err := Pack(context.Background(), &mockCompiler{}, []Source{
		{Filename: "program.py"},
		{Filename: "main.py"},
	})
	require.NoError(t, err)

	assert.Equal(t, "__main__", img.Modules[0].Name)
	assert.Equal(t, "main", img.Modules[1].Name)
}

func TestPackErrors(t *testing.T) {
	syntaxErr := &CompileError{Filename: "helper.py", Message: "SyntaxError: invalid syntax"}

	tests := []struct {
		name      string
		compiler  Compiler
		sources   []Source
		check     func(t *testing.T, err error)
		wantCalls []string
	}{
		{
			name:     "compile error in second module",
			compiler: &mockCompiler{fail: map[string]error{"helper.py": syntaxErr}},
			sources:  []Source{{Filename: "main.py"}, {Filename: "helper.py"}, {Filename: "util.py"}},
			check: func(t *testing.T, err error) {
				var ce *CompileError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, "helper.py", ce.Filename)
			},
			wantCalls: []string{"main.py", "helper.py"},
		},
		{
			name:     "plain error is wrapped with filename",
			compiler: &mockCompiler{fail: map[string]error{"main.py": errors.New("boom")}},
			sources:  []Source{{Filename: "main.py"}},
			check: func(t *testing.T, err error) {
				var ce *CompileError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, "main.py", ce.Filename)
				assert.Equal(t, "boom", ce.Message)
			},
			wantCalls: []string{"main.py"},
		},
		{
			name:     "empty output",
			compiler: &mockCompiler{outputs: map[string][]byte{"main.py": {}}},
			sources:  []Source{{Filename: "main.py"}},
			check: func(t *testing.T, err error) {
				var ne *NoMpyOutputError
				require.ErrorAs(t, err, &ne)
				assert.Equal(t, "main.py", ne.Filename)
				assert.True(t, IsCompileError(err))
			},
			wantCalls: []string{"main.py"},
		},
		{
			name:     "no sources",
			compiler: &mockCompiler{},
			sources:  nil,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "no sources")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Pack(context.Background(), tt.compiler, tt.sources)
			require.Error(t, err)
			assert.Nil(t, img, "no partial image on failure")
			tt.check(t, err)
			if mc, ok := tt.compiler.(*mockCompiler); ok {
				assert.Equal(t, tt.wantCalls, mc.calls)
			}
		})
	}
}

func TestPackCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Pack(ctx, &mockCompiler{}, []Source{{Filename: "main.py"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPackCompilerFunc(t *testing.T) {
	c := CompilerFunc(func(_ context.Context, filename, source string) ([]byte, error) {
		return []byte(source), nil
	})

	img, err := Pack(context.Background(), c, []Source{{Filename: "main.py", Code: "xy"}})
	require.NoError(t, err)
	assert.Equal(t, []byte("xy"), img.Modules[0].Bytecode)
}

func TestLogicalName(t *testing.T) {
	assert.Equal(t, "__main__", LogicalName(0, "anything.py"))
	assert.Equal(t, "helper", LogicalName(1, "helper.py"))
	assert.Equal(t, "data.txt", LogicalName(2, "data.txt"))
	assert.Equal(t, "lib/motor", LogicalName(3, "lib/motor.py"))
}
