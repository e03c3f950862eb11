package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/moffa90/go-pybricks/link"
	"github.com/moffa90/go-pybricks/mpy"
	"github.com/moffa90/go-pybricks/protocol"
)

// State is the hub-side program state.
type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
	Uploading
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Uploading:
		return "uploading"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CompileState is the compile-side state.
type CompileState int

const (
	CompileIdle CompileState = iota
	Compiling
	CompileSucceeded
	CompileFailed
)

func (s CompileState) String() string {
	switch s {
	case CompileIdle:
		return "idle"
	case Compiling:
		return "compiling"
	case CompileSucceeded:
		return "success"
	case CompileFailed:
		return "error"
	default:
		return fmt.Sprintf("compile-state(%d)", int(s))
	}
}

// Controller sequences compile, upload and start, and tracks whether the
// user program is running.
//
// State changes come from two sources. Intent transitions (Starting,
// Stopping, Uploading) are made locally and optimistically when a command
// is issued. Observed transitions are derived from status reports passed to
// HandleStatus. When the two disagree, the observed state wins, except
// while an intent's own command write is still in flight and while
// uploading.
//
// Controller is safe for concurrent use.
type Controller struct {
	link     Link
	compiler mpy.Compiler
	uploader *Uploader
	config   Config

	mu       sync.Mutex
	state    State
	observed State
	inFlight int
	compile  CompileState
	status   protocol.StatusReport
	seen     bool
}

// NewController creates a Controller writing through l and compiling with
// compiler.
//
// Example:
//
//	ctrl := hub.NewController(conn, &mpy.ExecCompiler{},
//	    hub.WithProgressCallback(progressFunc),
//	    hub.WithStdoutCallback(func(s string) { fmt.Print(s) }),
//	)
//	events, cancel := conn.Subscribe()
//	defer cancel()
//	go ctrl.Follow(ctx, events)
//	img, err := ctrl.CompileAndUploadAndRun(ctx, sources)
func NewController(l Link, compiler mpy.Compiler, opts ...Option) *Controller {
	if l == nil {
		panic("link cannot be nil")
	}
	if compiler == nil {
		panic("compiler cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Controller{
		link:     l,
		compiler: compiler,
		uploader: newUploader(l, cfg),
		config:   cfg,
		state:    Idle,
		observed: Idle,
	}
}

// State returns the current hub-side state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CompileState returns the current compile-side state.
func (c *Controller) CompileState() CompileState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compile
}

// LastStatus returns the most recent status report, if any was received.
func (c *Controller) LastStatus() (protocol.StatusReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.seen
}

// HandleStatus applies a status report. A set running bit moves the
// controller to Running from any state. A clear running bit moves it from
// Running, Starting or Stopping to Idle.
func (c *Controller) HandleStatus(report protocol.StatusReport) {
	c.mu.Lock()
	c.status = report
	c.seen = true

	from := c.state
	if report.UserProgramRunning() {
		c.observed = Running
		c.state = Running
	} else {
		c.observed = Idle
		switch c.state {
		case Running:
			c.state = Idle
		case Starting, Stopping:
			if c.inFlight == 0 {
				c.state = Idle
			}
		}
	}
	to := c.state
	c.mu.Unlock()

	if from != to {
		c.config.logDebug("state corrected by status report", "from", from.String(), "to", to.String(), "flags", report.Flags.String())
	}
	c.notifyState(from, to)
}

// StartUserProgram issues the start command for slot and moves to Starting.
// It is only allowed from Idle. If the write fails, the state reverts to the
// last observed state.
func (c *Controller) StartUserProgram(ctx context.Context, slot uint8) error {
	c.mu.Lock()
	if c.state != Idle {
		state := c.state
		c.mu.Unlock()
		return &StateError{Op: "start user program", State: state}
	}
	c.state = Starting
	c.inFlight++
	c.mu.Unlock()
	c.notifyState(Idle, Starting)

	c.config.logDebug("starting user program", "slot", slot)

	err := c.link.Write(ctx, protocol.BuildStartUserProgramCmd(slot))
	c.finishIntent(Starting, err)
	if err != nil {
		return fmt.Errorf("start user program: %w", err)
	}
	return nil
}

// StopUserProgram issues the stop command and moves to Stopping. It is
// rejected while uploading.
func (c *Controller) StopUserProgram(ctx context.Context) error {
	c.mu.Lock()
	from := c.state
	if from == Uploading {
		c.mu.Unlock()
		return &StateError{Op: "stop user program", State: from}
	}
	c.state = Stopping
	c.inFlight++
	c.mu.Unlock()
	c.notifyState(from, Stopping)

	c.config.logDebug("stopping user program")

	err := c.link.Write(ctx, protocol.BuildStopUserProgramCmd())
	c.finishIntent(Stopping, err)
	if err != nil {
		return fmt.Errorf("stop user program: %w", err)
	}
	return nil
}

// finishIntent completes an intent write. On failure an optimistic state
// that was not corrected meanwhile reverts to the observed state.
func (c *Controller) finishIntent(intent State, err error) {
	c.mu.Lock()
	c.inFlight--
	from := c.state
	if err != nil && c.state == intent {
		c.state = c.observed
	}
	to := c.state
	c.mu.Unlock()

	if err != nil {
		c.config.logError("command failed", "intent", intent.String(), "error", err)
	}
	c.notifyState(from, to)
}

// CompileAndUploadAndRun compiles sources, uploads the image and starts it:
//  1. Pack the sources (no link writes if this fails)
//  2. Move to Uploading and upload the image
//  3. Return to Idle and, if still Idle, start slot 0
//
// Each phase waits for the previous one to succeed. The operation requires
// Idle and can be cancelled through ctx. On success the uploaded image is
// returned.
func (c *Controller) CompileAndUploadAndRun(ctx context.Context, sources []mpy.Source) (*mpy.Image, error) {
	const op = "compile and run"

	c.mu.Lock()
	if c.state != Idle || c.compile == Compiling {
		state := c.state
		c.mu.Unlock()
		return nil, &StateError{Op: op, State: state}
	}
	c.compile = Compiling
	c.mu.Unlock()
	c.notifyCompile(Compiling)

	// Phase 1: compile
	img, err := mpy.Pack(ctx, c.compiler, sources)
	if err != nil {
		c.setCompile(CompileFailed)
		c.config.logError("compile failed", "error", err)
		return nil, err
	}
	c.setCompile(CompileSucceeded)
	c.config.logDebug("compiled", "modules", len(img.Modules), "size", img.Size())

	// Phase 2: upload
	c.mu.Lock()
	if c.state != Idle {
		state := c.state
		c.mu.Unlock()
		return nil, &StateError{Op: op, State: state}
	}
	c.state = Uploading
	c.mu.Unlock()
	c.notifyState(Idle, Uploading)

	err = c.uploader.Upload(ctx, img.Data)

	c.mu.Lock()
	from := c.state
	if c.state == Uploading {
		c.state = Idle
	}
	to := c.state
	c.mu.Unlock()
	c.notifyState(from, to)

	if err != nil {
		return nil, err
	}

	// Phase 3: start
	if to != Idle {
		c.config.logInfo("program uploaded, not starting", "state", to.String())
		return img, nil
	}
	if err := c.StartUserProgram(ctx, protocol.SlotMain); err != nil {
		return img, err
	}

	return img, nil
}

// Follow applies status events from a subscription until the channel is
// closed, which is reported as link.ErrLinkLost, or ctx ends. Stdout events
// go to the StdoutCallback.
//
// Example:
//
//	events, cancel := conn.Subscribe()
//	defer cancel()
//	go func() {
//	    err := ctrl.Follow(ctx, events)
//	    log.Println("follow ended:", err)
//	}()
func (c *Controller) Follow(ctx context.Context, events <-chan link.Event) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return link.ErrLinkLost
			}
			switch ev.Kind {
			case link.EventStatus:
				c.HandleStatus(ev.Status)
			case link.EventStdout:
				if c.config.StdoutCallback != nil {
					c.config.StdoutCallback(ev.Text)
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WriteStdin sends data to the user program's stdin, split into frames
// that fit the link's MaxWriteSize.
func (c *Controller) WriteStdin(ctx context.Context, data []byte) error {
	size := int(c.link.Capabilities().MaxWriteSize) - protocol.CommandSize
	if size < 1 {
		return &WriteSizeError{MaxWriteSize: int(c.link.Capabilities().MaxWriteSize), Min: protocol.CommandSize + 1}
	}

	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		if err := c.link.Write(ctx, protocol.BuildWriteStdinCmd(data[:n])); err != nil {
			return fmt.Errorf("write stdin: %w", err)
		}
		data = data[n:]
	}
	return nil
}

func (c *Controller) setCompile(s CompileState) {
	c.mu.Lock()
	c.compile = s
	c.mu.Unlock()
	c.notifyCompile(s)
}

func (c *Controller) notifyState(from, to State) {
	if from != to && c.config.StateCallback != nil {
		c.config.StateCallback(from, to)
	}
}

func (c *Controller) notifyCompile(s CompileState) {
	if c.config.CompileStateCallback != nil {
		c.config.CompileStateCallback(s)
	}
}
