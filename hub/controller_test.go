package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-pybricks/link"
	"github.com/moffa90/go-pybricks/mpy"
	"github.com/moffa90/go-pybricks/protocol"
)

func running() protocol.StatusReport {
	return protocol.StatusReport{Flags: protocol.StatusUserProgramRunning.Mask()}
}

func stopped() protocol.StatusReport {
	return protocol.StatusReport{Flags: protocol.StatusBLEAdvertising.Mask()}
}

func fixedCompiler(bytecode []byte) mpy.Compiler {
	return mpy.CompilerFunc(func(context.Context, string, string) ([]byte, error) {
		return bytecode, nil
	})
}

type transitions struct {
	mu  sync.Mutex
	log [][2]State
}

func (tr *transitions) record(from, to State) {
	tr.mu.Lock()
	tr.log = append(tr.log, [2]State{from, to})
	tr.mu.Unlock()
}

func (tr *transitions) get() [][2]State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([][2]State(nil), tr.log...)
}

func TestNewControllerPanics(t *testing.T) {
	assert.Panics(t, func() { NewController(nil, fixedCompiler(nil)) })
	assert.Panics(t, func() { NewController(NewMockLink(20, 0), nil) })
}

func TestStartUserProgram(t *testing.T) {
	l := NewMockLink(20, 0)
	ctrl := NewController(l, fixedCompiler(nil))

	require.NoError(t, ctrl.StartUserProgram(context.Background(), 0))
	assert.Equal(t, Starting, ctrl.State())
	assert.Equal(t, [][]byte{{protocol.CmdStartUserProgram, 0}}, l.Writes())

	ctrl.HandleStatus(running())
	assert.Equal(t, Running, ctrl.State())
}

func TestStartUserProgramSlot(t *testing.T) {
	l := NewMockLink(20, 0)
	ctrl := NewController(l, fixedCompiler(nil))

	require.NoError(t, ctrl.StartUserProgram(context.Background(), protocol.SlotPortView))
	assert.Equal(t, [][]byte{{protocol.CmdStartUserProgram, protocol.SlotPortView}}, l.Writes())
}

func TestUnsolicitedRunning(t *testing.T) {
	ctrl := NewController(NewMockLink(20, 0), fixedCompiler(nil))

	ctrl.HandleStatus(running())
	assert.Equal(t, Running, ctrl.State())

	report, ok := ctrl.LastStatus()
	require.True(t, ok)
	assert.True(t, report.UserProgramRunning())

	ctrl.HandleStatus(stopped())
	assert.Equal(t, Idle, ctrl.State())
}

func TestStopUserProgram(t *testing.T) {
	l := NewMockLink(20, 0)
	ctrl := NewController(l, fixedCompiler(nil))
	ctrl.HandleStatus(running())

	require.NoError(t, ctrl.StopUserProgram(context.Background()))
	assert.Equal(t, Stopping, ctrl.State())
	assert.Equal(t, [][]byte{{protocol.CmdStopUserProgram}}, l.Writes())

	// still running: observed truth wins
	ctrl.HandleStatus(running())
	assert.Equal(t, Running, ctrl.State())

	require.NoError(t, ctrl.StopUserProgram(context.Background()))
	ctrl.HandleStatus(stopped())
	assert.Equal(t, Idle, ctrl.State())
}

func TestStartingCorrectedByStatus(t *testing.T) {
	ctrl := NewController(NewMockLink(20, 0), fixedCompiler(nil))

	require.NoError(t, ctrl.StartUserProgram(context.Background(), 0))
	ctrl.HandleStatus(stopped())
	assert.Equal(t, Idle, ctrl.State())
}

func TestStatusDuringInFlightWrite(t *testing.T) {
	l := NewMockLink(20, 0)
	ctrl := NewController(l, fixedCompiler(nil))

	l.onWrite = func([]byte) {
		// a status tick sent before the hub saw the command
		ctrl.HandleStatus(stopped())
		assert.Equal(t, Starting, ctrl.State())
	}

	require.NoError(t, ctrl.StartUserProgram(context.Background(), 0))
	assert.Equal(t, Starting, ctrl.State())
}

func TestStartUserProgramNotIdle(t *testing.T) {
	l := NewMockLink(20, 0)
	ctrl := NewController(l, fixedCompiler(nil))
	ctrl.HandleStatus(running())

	err := ctrl.StartUserProgram(context.Background(), 0)
	var se *StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, Running, se.State)
	assert.Empty(t, l.Writes())
}

func TestFailedIntentReverts(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(c *Controller)
		action func(c *Controller) error
		want   State
	}{
		{
			name:   "start reverts to idle",
			action: func(c *Controller) error { return c.StartUserProgram(context.Background(), 0) },
			want:   Idle,
		},
		{
			name:   "stop reverts to running",
			setup:  func(c *Controller) { c.HandleStatus(running()) },
			action: func(c *Controller) error { return c.StopUserProgram(context.Background()) },
			want:   Running,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &MockLink{caps: protocol.HubCapabilities{MaxWriteSize: 20}, failAt: 1, failErr: link.ErrLinkLost}
			ctrl := NewController(l, fixedCompiler(nil))
			if tt.setup != nil {
				tt.setup(ctrl)
			}

			err := tt.action(ctrl)
			assert.ErrorIs(t, err, link.ErrLinkLost)
			assert.Equal(t, tt.want, ctrl.State())
		})
	}
}

func TestCompileAndUploadAndRun(t *testing.T) {
	l := NewMockLink(20, 0)
	tr := &transitions{}
	var compileStates []CompileState
	ctrl := NewController(l, fixedCompiler([]byte{1, 2, 3}),
		WithStateCallback(tr.record),
		WithCompileStateCallback(func(s CompileState) { compileStates = append(compileStates, s) }),
	)

	img, err := ctrl.CompileAndUploadAndRun(context.Background(), []mpy.Source{
		{Filename: "main.py", Code: "print(1)"},
	})
	require.NoError(t, err)

	assert.Equal(t, 16, img.Size())
	assert.Equal(t, 1, l.Count(protocol.CmdStartUserProgram))

	writes := l.Writes()
	require.Len(t, writes, 5)
	assert.Equal(t, []byte{protocol.CmdWriteUserProgramMeta, 0, 0, 0, 0}, writes[0])
	assert.Equal(t, byte(protocol.CmdWriteUserRAM), writes[1][0])
	assert.Equal(t, byte(protocol.CmdWriteUserRAM), writes[2][0])
	assert.Equal(t, []byte{protocol.CmdWriteUserProgramMeta, 16, 0, 0, 0}, writes[3])
	assert.Equal(t, []byte{protocol.CmdStartUserProgram, 0}, writes[4])

	assert.Equal(t, Starting, ctrl.State())
	assert.Equal(t, CompileSucceeded, ctrl.CompileState())
	assert.Equal(t, []CompileState{Compiling, CompileSucceeded}, compileStates)
	assert.Equal(t, [][2]State{
		{Idle, Uploading},
		{Uploading, Idle},
		{Idle, Starting},
	}, tr.get())
}

func TestCompileFailureWritesNothing(t *testing.T) {
	l := NewMockLink(20, 0)
	compiler := mpy.CompilerFunc(func(_ context.Context, filename, _ string) ([]byte, error) {
		if filename == "helper.py" {
			return nil, &mpy.CompileError{Filename: filename, Message: "SyntaxError: invalid syntax"}
		}
		return []byte{1}, nil
	})
	ctrl := NewController(l, compiler)

	img, err := ctrl.CompileAndUploadAndRun(context.Background(), []mpy.Source{
		{Filename: "main.py"},
		{Filename: "helper.py"},
	})

	var ce *mpy.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "helper.py", ce.Filename)
	assert.Nil(t, img)
	assert.Empty(t, l.Writes())
	assert.Equal(t, Idle, ctrl.State())
	assert.Equal(t, CompileFailed, ctrl.CompileState())
}

func TestUploadFailureReturnsToIdle(t *testing.T) {
	l := &MockLink{caps: protocol.HubCapabilities{MaxWriteSize: 20}, failAt: 2, failErr: errors.New("gatt")}
	ctrl := NewController(l, fixedCompiler([]byte{1, 2, 3}))

	_, err := ctrl.CompileAndUploadAndRun(context.Background(), []mpy.Source{{Filename: "main.py"}})

	var ufe *UploadFailedError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, Idle, ctrl.State())
	assert.Equal(t, 0, l.Count(protocol.CmdStartUserProgram))
}

func TestCompileAndRunNotIdle(t *testing.T) {
	l := NewMockLink(20, 0)
	ctrl := NewController(l, fixedCompiler([]byte{1}))
	ctrl.HandleStatus(running())

	_, err := ctrl.CompileAndUploadAndRun(context.Background(), []mpy.Source{{Filename: "main.py"}})
	var se *StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, Running, se.State)
	assert.Empty(t, l.Writes())
}

func TestCompileAndRunNoStartWhenRunningAfterUpload(t *testing.T) {
	l := NewMockLink(20, 0)
	ctrl := NewController(l, fixedCompiler([]byte{1, 2, 3}))
	l.onWrite = func(frame []byte) {
		// the hub reports a program started by its button mid-upload
		if frame[0] == protocol.CmdWriteUserRAM {
			ctrl.HandleStatus(running())
		}
	}

	img, err := ctrl.CompileAndUploadAndRun(context.Background(), []mpy.Source{{Filename: "main.py"}})
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, 0, l.Count(protocol.CmdStartUserProgram))
	assert.Equal(t, Running, ctrl.State())
}

func TestStopRejectedWhileUploading(t *testing.T) {
	l := NewMockLink(20, 0)
	ctrl := NewController(l, fixedCompiler([]byte{1, 2, 3}))

	var stopErr error
	l.onWrite = func(frame []byte) {
		if frame[0] == protocol.CmdWriteUserRAM {
			stopErr = ctrl.StopUserProgram(context.Background())
		}
	}

	_, err := ctrl.CompileAndUploadAndRun(context.Background(), []mpy.Source{{Filename: "main.py"}})
	require.NoError(t, err)

	var se *StateError
	require.ErrorAs(t, stopErr, &se)
	assert.Equal(t, Uploading, se.State)
}

func TestFollow(t *testing.T) {
	var mu sync.Mutex
	var out string
	ctrl := NewController(NewMockLink(20, 0), fixedCompiler(nil), WithStdoutCallback(func(s string) {
		mu.Lock()
		out += s
		mu.Unlock()
	}))

	events := make(chan link.Event, 4)
	events <- link.Event{Kind: link.EventStatus, Status: running()}
	events <- link.Event{Kind: link.EventStdout, Text: "hello\n"}
	events <- link.Event{Kind: link.EventAppData, Data: []byte{1}}
	close(events)

	err := ctrl.Follow(context.Background(), events)
	assert.ErrorIs(t, err, link.ErrLinkLost)
	assert.Equal(t, Running, ctrl.State())
	mu.Lock()
	assert.Equal(t, "hello\n", out)
	mu.Unlock()
}

func TestFollowContextDone(t *testing.T) {
	ctrl := NewController(NewMockLink(20, 0), fixedCompiler(nil))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := ctrl.Follow(ctx, make(chan link.Event))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWriteStdin(t *testing.T) {
	tests := []struct {
		name         string
		maxWriteSize uint16
		data         string
		want         [][]byte
		wantErr      bool
	}{
		{
			name:         "single frame",
			maxWriteSize: 20,
			data:         "hi",
			want:         [][]byte{{protocol.CmdWriteStdin, 'h', 'i'}},
		},
		{
			name:         "split frames",
			maxWriteSize: 5,
			data:         "hello world",
			want: [][]byte{
				{protocol.CmdWriteStdin, 'h', 'e', 'l', 'l'},
				{protocol.CmdWriteStdin, 'o', ' ', 'w', 'o'},
				{protocol.CmdWriteStdin, 'r', 'l', 'd'},
			},
		},
		{
			name:         "empty data",
			maxWriteSize: 20,
			data:         "",
			want:         nil,
		},
		{
			name:         "no room for payload",
			maxWriteSize: 1,
			data:         "x",
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewMockLink(tt.maxWriteSize, 0)
			ctrl := NewController(l, fixedCompiler(nil))

			err := ctrl.WriteStdin(context.Background(), []byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, l.Writes())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.Writes())
		})
	}
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "uploading", Uploading.String())
	assert.Equal(t, "error", CompileFailed.String())
	assert.Equal(t, "cannot start user program while running",
		(&StateError{Op: "start user program", State: Running}).Error())
}
