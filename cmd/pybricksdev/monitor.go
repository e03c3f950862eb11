package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/moffa90/go-pybricks/hub"
	"github.com/moffa90/go-pybricks/internal/manifest"
	"github.com/moffa90/go-pybricks/link"
	"github.com/moffa90/go-pybricks/mpy"
	"github.com/moffa90/go-pybricks/protocol"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	phaseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	runningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#98FB98"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	outputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// maxOutputLines bounds the program output kept by the monitor.
const maxOutputLines = 500

type eventMsg link.Event

type linkLostMsg struct{}

type resultMsg struct {
	op   string
	size int
	err  error
}

type monitorModel struct {
	ctx     context.Context
	ctrl    *hub.Controller
	info    link.DeviceInfo
	events  <-chan link.Event
	sources []mpy.Source

	status   protocol.StatusReport
	lines    []string
	partial  string
	input    textinput.Model
	typing   bool
	busy     string
	lastErr  error
	lost     bool
	height   int
	uploaded int
}

func newMonitorModel(ctx context.Context, ctrl *hub.Controller, conn *link.Conn, events <-chan link.Event, sources []mpy.Source) *monitorModel {
	ti := textinput.New()
	ti.Placeholder = "text for the program's stdin"
	ti.Prompt = "> "
	ti.CharLimit = 256

	return &monitorModel{
		ctx:     ctx,
		ctrl:    ctrl,
		info:    conn.Info(),
		events:  events,
		sources: sources,
		input:   ti,
		height:  24,
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return m.waitForEvent
}

func (m *monitorModel) waitForEvent() tea.Msg {
	ev, ok := <-m.events
	if !ok {
		return linkLostMsg{}
	}
	return eventMsg(ev)
}

// do runs a hub operation off the UI goroutine.
func (m *monitorModel) do(op string, fn func(ctx context.Context) error) tea.Cmd {
	m.busy = op
	return func() tea.Msg {
		return resultMsg{op: op, err: fn(m.ctx)}
	}
}

func (m *monitorModel) upload() tea.Cmd {
	m.busy = "upload"
	return func() tea.Msg {
		img, err := m.ctrl.CompileAndUploadAndRun(m.ctx, m.sources)
		if err != nil {
			return resultMsg{op: "upload", err: err}
		}
		return resultMsg{op: "upload", size: img.Size()}
	}
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case eventMsg:
		switch msg.Kind {
		case link.EventStatus:
			m.status = msg.Status
			m.ctrl.HandleStatus(msg.Status)
		case link.EventStdout:
			m.appendOutput(msg.Text)
		case link.EventAppData:
			m.appendOutput(fmt.Sprintf("[app data: % X]\n", msg.Data))
		}
		return m, m.waitForEvent

	case linkLostMsg:
		m.lost = true
		m.lastErr = link.ErrLinkLost
		return m, nil

	case resultMsg:
		m.busy = ""
		m.lastErr = msg.err
		if msg.size > 0 {
			m.uploaded = msg.size
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.typing {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m *monitorModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.lost && msg.String() != "q" {
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r":
		return m, m.do("start", func(ctx context.Context) error {
			return m.ctrl.StartUserProgram(ctx, protocol.SlotMain)
		})
	case "s":
		return m, m.do("stop", m.ctrl.StopUserProgram)
	case "u":
		if len(m.sources) == 0 {
			m.lastErr = fmt.Errorf("no program given on the command line")
			return m, nil
		}
		return m, m.upload()
	case "i", "enter":
		m.typing = true
		return m, m.input.Focus()
	case "c":
		m.lines = nil
		m.partial = ""
	}
	return m, nil
}

func (m *monitorModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.typing = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		line := m.input.Value() + "\r\n"
		m.input.SetValue("")
		return m, m.do("stdin", func(ctx context.Context) error {
			return m.ctrl.WriteStdin(ctx, []byte(line))
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *monitorModel) appendOutput(text string) {
	text = m.partial + strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	m.partial = parts[len(parts)-1]
	m.lines = append(m.lines, parts[:len(parts)-1]...)
	if over := len(m.lines) - maxOutputLines; over > 0 {
		m.lines = m.lines[over:]
	}
}

func (m *monitorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Pybricks Monitor"))
	b.WriteString(fmt.Sprintf("  %s  %s  fw %s\n\n", m.info.Name, m.info.Address, m.info.FirmwareRevision))

	state := m.ctrl.State()
	style := idleStyle
	if state == hub.Running {
		style = runningStyle
	}
	b.WriteString(fmt.Sprintf("Program: %s  Slot: %d  Compile: %s\n", style.Render(state.String()), m.status.Slot, m.ctrl.CompileState()))
	b.WriteString(fmt.Sprintf("Flags:   %s\n", m.status.Flags))
	if m.uploaded > 0 {
		b.WriteString(fmt.Sprintf("Image:   %d bytes\n", m.uploaded))
	}
	if m.busy != "" {
		b.WriteString(phaseStyle.Render(m.busy+"...") + "\n")
	}
	if m.lastErr != nil {
		b.WriteString(errorStyle.Render("Error: "+m.lastErr.Error()) + "\n")
	}
	b.WriteString("\n")

	rows := m.height - 12
	if rows < 3 {
		rows = 3
	}
	lines := m.lines
	if m.partial != "" {
		lines = append(append([]string(nil), lines...), m.partial)
	}
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}
	b.WriteString(outputStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")

	if m.typing {
		b.WriteString(m.input.View() + "\n")
		b.WriteString(helpStyle.Render("enter: send  esc: back"))
	} else {
		b.WriteString(helpStyle.Render("r: start  s: stop  u: upload and run  i: type stdin  c: clear  q: quit"))
	}
	return b.String()
}

func monitorCmd(args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs, true)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(flags)
	if err != nil {
		return err
	}
	defer a.Close()
	a.quietConsole()

	var (
		sources []mpy.Source
		m       *manifest.Manifest
	)
	if fs.NArg() > 0 {
		sources, m, err = manifest.ResolveSources(fs.Arg(0))
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	compiler, cleanup, err := a.compiler(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	mgr, conn, err := a.connect(ctx, m)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = mgr.Disconnect(dctx)
	}()

	ctrl := hub.NewController(conn, compiler,
		hub.WithLogger(a.log.Named("hub")),
		hub.WithEnforceProgramSize(a.cfg.Upload.EnforceProgramSize),
	)

	events, cancel := conn.Subscribe()
	defer cancel()

	p := tea.NewProgram(newMonitorModel(ctx, ctrl, conn, events, sources), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
