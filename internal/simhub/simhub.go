// Package simhub is an in-memory Pybricks hub. It implements link.Adapter
// and the peripheral side of the protocol so the whole pipeline can run
// without a radio.
package simhub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/moffa90/go-pybricks/link"
	"github.com/moffa90/go-pybricks/mpy"
	"github.com/moffa90/go-pybricks/protocol"
)

// Errors returned to the link layer, as a real hub answers with a GATT error.
var (
	ErrBusy          = errors.New("simhub: user program is running")
	ErrNoProgram     = errors.New("simhub: no valid program stored")
	ErrOutOfRange    = errors.New("simhub: write outside user program area")
	ErrUnsupported   = errors.New("simhub: unsupported command")
	ErrRadioDisabled = errors.New("simhub: radio disabled")
	ErrNotConnected  = errors.New("simhub: not connected")
)

// Identity of the simulated hub.
const (
	DefaultName     = "Pybricks Hub"
	DefaultAddress  = "00:00:00:00:5E:01"
	DefaultFirmware = "3.5.0"
)

// DefaultCapabilities returns what the simulated hub reports unless
// WithCapabilities is given. The values match a Technic Hub.
func DefaultCapabilities() protocol.HubCapabilities {
	return protocol.HubCapabilities{
		MaxWriteSize:       158,
		Flags:              protocol.CapabilityHasRepl | protocol.CapabilityUserProgramMultiMpy6,
		MaxUserProgramSize: 32 * 1024,
		NumSlots:           1,
	}
}

// Logger matches the logging interface used across the module.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Option configures a Hub.
type Option func(*Hub)

// WithName sets the advertised name.
func WithName(name string) Option {
	return func(h *Hub) { h.name = name }
}

// WithCapabilities sets the capability record served to the host.
func WithCapabilities(caps protocol.HubCapabilities) Option {
	return func(h *Hub) { h.caps = caps }
}

// WithRunDuration makes started programs stop on their own after d.
// Zero keeps them running until stopped.
func WithRunDuration(d time.Duration) Option {
	return func(h *Hub) { h.runDuration = d }
}

// WithLatency delays every command write by d.
func WithLatency(d time.Duration) Option {
	return func(h *Hub) { h.latency = d }
}

// WithRadioDisabled makes Enable fail.
func WithRadioDisabled() Option {
	return func(h *Hub) { h.radioDisabled = true }
}

// WithLogger logs every handled command.
func WithLogger(l Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// Hub simulates one Pybricks hub.
type Hub struct {
	name          string
	caps          protocol.HubCapabilities
	runDuration   time.Duration
	latency       time.Duration
	radioDisabled bool
	logger        Logger

	mu           sync.Mutex
	connected    bool
	onDisconnect func()
	notify       func([]byte)
	ram          []byte
	programSize  uint32
	flags        protocol.StatusFlags
	slot         uint8
	runID        int
	commands     [][]byte
	appData      []byte
}

// New creates a hub with the default capabilities.
func New(opts ...Option) *Hub {
	h := &Hub{
		name:  DefaultName,
		caps:  DefaultCapabilities(),
		flags: protocol.StatusBLEAdvertising.Mask(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.ram = make([]byte, h.caps.MaxUserProgramSize)
	return h
}

// Enable implements link.Adapter.
func (h *Hub) Enable() error {
	if h.radioDisabled {
		return ErrRadioDisabled
	}
	return nil
}

// Scan implements link.Adapter. The hub is found at once if accept
// approves it, otherwise Scan waits for ctx.
func (h *Hub) Scan(ctx context.Context, serviceUUID string, accept func(link.Advertisement) bool) (link.Advertisement, error) {
	adv := link.Advertisement{Address: DefaultAddress, Name: h.name, RSSI: -42}
	if serviceUUID == protocol.ServiceUUID && accept(adv) {
		return adv, nil
	}
	<-ctx.Done()
	return link.Advertisement{}, ctx.Err()
}

// Connect implements link.Adapter.
func (h *Hub) Connect(_ context.Context, adv link.Advertisement, onDisconnect func()) (link.Peripheral, error) {
	if adv.Address != DefaultAddress {
		return nil, fmt.Errorf("simhub: unknown address %s", adv.Address)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connected {
		return nil, errors.New("simhub: already connected")
	}
	h.connected = true
	h.onDisconnect = onDisconnect
	h.flags &^= protocol.StatusBLEAdvertising.Mask()
	return &peripheral{hub: h}, nil
}

// Drop simulates the hub going out of range.
func (h *Hub) Drop() {
	h.mu.Lock()
	cb := h.onDisconnect
	h.connected = false
	h.onDisconnect = nil
	h.notify = nil
	h.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// PressButton toggles the user program like the hub's center button.
func (h *Hub) PressButton() {
	h.mu.Lock()
	var err error
	if h.running() {
		h.stopLocked()
	} else {
		err = h.startLocked(protocol.SlotMain)
	}
	h.mu.Unlock()

	if err != nil {
		h.logDebug("button ignored", "error", err)
	}
}

// Running reports whether a user program is running.
func (h *Hub) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running()
}

// Program returns the stored image, or nil if the program is invalidated.
func (h *Hub) Program() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.programSize == 0 {
		return nil
	}
	return append([]byte(nil), h.ram[:h.programSize]...)
}

// Commands returns every command frame received, in order.
func (h *Hub) Commands() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.commands...)
}

// Print sends text on the stdout event stream as a running program would.
func (h *Hub) Print(text string) {
	h.mu.Lock()
	notify := h.notify
	h.mu.Unlock()
	if notify != nil {
		notify(protocol.BuildWriteStdoutEvent(text))
	}
}

// handleCommand applies one command frame. Called with h.mu held.
func (h *Hub) handleCommand(frame []byte) error {
	cmd, err := protocol.ParseCommand(frame)
	if err != nil {
		return err
	}
	h.commands = append(h.commands, append([]byte(nil), frame...))

	switch cmd.Code {
	case protocol.CmdStopUserProgram:
		h.stopLocked()
		return nil
	case protocol.CmdStartUserProgram:
		return h.startLocked(cmd.Slot)
	case protocol.CmdWriteUserProgramMeta:
		return h.handleWriteMeta(cmd)
	case protocol.CmdWriteUserRAM:
		return h.handleWriteRAM(cmd)
	case protocol.CmdWriteStdin:
		return h.handleStdin(cmd)
	case protocol.CmdWriteAppData:
		h.appData = append(h.appData[:0], cmd.Payload...)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, protocol.CommandName(cmd.Code))
	}
}

func (h *Hub) handleWriteMeta(cmd *protocol.Command) error {
	if h.running() {
		return ErrBusy
	}
	if cmd.Size > h.caps.MaxUserProgramSize {
		return ErrOutOfRange
	}
	h.programSize = cmd.Size
	h.logDebug("program meta", "size", cmd.Size)
	return nil
}

func (h *Hub) handleWriteRAM(cmd *protocol.Command) error {
	if h.running() {
		return ErrBusy
	}
	end := uint64(cmd.Offset) + uint64(len(cmd.Payload))
	if end > uint64(len(h.ram)) {
		return ErrOutOfRange
	}
	copy(h.ram[cmd.Offset:], cmd.Payload)
	return nil
}

func (h *Hub) handleStdin(cmd *protocol.Command) error {
	if !h.running() {
		return nil
	}
	// programs in the simulator echo their input
	h.emitLocked(protocol.BuildWriteStdoutEvent(string(cmd.Payload)))
	return nil
}

func (h *Hub) startLocked(slot uint8) error {
	if h.running() {
		return ErrBusy
	}

	var modules []string
	if slot < protocol.BuiltinSlotMin {
		records, err := mpy.ParseImage(h.ram[:h.programSize])
		if err != nil || len(records) == 0 {
			return ErrNoProgram
		}
		for _, r := range records {
			modules = append(modules, r.Name)
		}
	}

	h.flags |= protocol.StatusUserProgramRunning.Mask()
	h.slot = slot
	h.runID++
	h.emitStatusLocked()

	if len(modules) > 0 {
		h.emitLocked(protocol.BuildWriteStdoutEvent(fmt.Sprintf("running %s\n", strings.Join(modules, ", "))))
	}
	h.logInfo("program started", "slot", slot, "modules", len(modules))

	if h.runDuration > 0 {
		id := h.runID
		time.AfterFunc(h.runDuration, func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if h.runID == id {
				h.stopLocked()
			}
		})
	}
	return nil
}

func (h *Hub) stopLocked() {
	if !h.running() {
		h.emitStatusLocked()
		return
	}
	h.flags &^= protocol.StatusUserProgramRunning.Mask()
	h.runID++
	h.emitStatusLocked()
	h.logInfo("program stopped", "slot", h.slot)
}

func (h *Hub) running() bool {
	return h.flags.Has(protocol.StatusUserProgramRunning)
}

func (h *Hub) emitStatusLocked() {
	h.emitLocked(protocol.BuildStatusReportEvent(h.flags, h.slot))
}

// emitLocked delivers a notification. The link layer only queues the
// frame, so calling it under h.mu cannot deadlock.
func (h *Hub) emitLocked(frame []byte) {
	if h.notify != nil {
		h.notify(frame)
	}
}

func (h *Hub) logDebug(msg string, keysAndValues ...interface{}) {
	if h.logger != nil {
		h.logger.Debug(msg, keysAndValues...)
	}
}

func (h *Hub) logInfo(msg string, keysAndValues ...interface{}) {
	if h.logger != nil {
		h.logger.Info(msg, keysAndValues...)
	}
}
