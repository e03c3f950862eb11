package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moffa90/go-pybricks/protocol"
)

// Manager owns the single connection to a hub and the link-side state
// machine:
//
//	Disconnected -> Connecting -> Connected -> Disconnecting -> Disconnected
//
// Manager is safe for concurrent use.
type Manager struct {
	adapter Adapter
	config  Config

	mu    sync.Mutex
	state State
	conn  *Conn
}

// NewManager creates a Manager over the given adapter.
//
// Example:
//
//	m := link.NewManager(bluetooth.NewAdapter(),
//	    link.WithDeviceName("Pybricks Hub"),
//	    link.WithLogger(logger),
//	)
//	conn, err := m.Connect(ctx)
func NewManager(adapter Adapter, opts ...Option) *Manager {
	if adapter == nil {
		panic("adapter cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Manager{
		adapter: adapter,
		config:  cfg,
		state:   Disconnected,
	}
}

// State returns the current link state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Conn returns the current session, or nil when not connected.
func (m *Manager) Conn() *Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// Connect selects a hub advertising the Pybricks service, connects to it and
// prepares the session:
//  1. Enable the radio (ErrLinkUnavailable on failure)
//  2. Scan for a matching hub (ErrNoDeviceSelected if none is selected,
//     also when ctx ends during selection; the ctx error stays reachable)
//  3. Read device information and hub capabilities (best-effort)
//  4. Resolve the control characteristic and enable notifications
//
// Any failure leaves the manager Disconnected.
func (m *Manager) Connect(ctx context.Context) (*Conn, error) {
	m.mu.Lock()
	if m.state != Disconnected {
		state := m.state
		m.mu.Unlock()
		return nil, fmt.Errorf("%w (state %s)", ErrAlreadyConnected, state)
	}
	m.state = Connecting
	m.mu.Unlock()
	m.notifyState(Connecting)

	conn, err := m.connect(ctx)
	if err != nil {
		m.setState(Disconnected)
		m.logError("connect failed", "error", err)
		return nil, err
	}

	m.mu.Lock()
	m.conn = conn
	m.state = Connected
	m.mu.Unlock()
	m.notifyState(Connected)

	go conn.pump()
	go m.watch(conn)

	m.logInfo("connected",
		"session", conn.id.String(),
		"address", conn.info.Address,
		"name", conn.info.Name,
		"firmware", conn.info.FirmwareRevision,
		"max_write_size", conn.caps.MaxWriteSize,
		"max_program_size", conn.caps.MaxUserProgramSize,
	)

	return conn, nil
}

func (m *Manager) connect(ctx context.Context) (*Conn, error) {
	if err := m.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLinkUnavailable, err)
	}

	adv, err := m.scan(ctx)
	if err != nil {
		return nil, err
	}
	m.logDebug("device selected", "address", adv.Address, "name", adv.Name, "rssi", adv.RSSI)

	conn := newConn(m.config)
	conn.info.Address = adv.Address
	conn.info.Name = adv.Name

	peripheral, err := m.adapter.Connect(ctx, adv, conn.markLost)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", adv.Address, err)
	}
	conn.peripheral = peripheral

	if err := m.setup(ctx, conn); err != nil {
		conn.markLost()
		if derr := peripheral.Disconnect(); derr != nil {
			m.logDebug("disconnect after failed setup", "error", derr)
		}
		return nil, err
	}

	return conn, nil
}

// scan runs device selection bounded by ScanTimeout.
func (m *Manager) scan(ctx context.Context) (Advertisement, error) {
	scanCtx := ctx
	if m.config.ScanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, m.config.ScanTimeout)
		defer cancel()
	}

	accept := func(adv Advertisement) bool {
		return m.config.DeviceName == "" || adv.Name == m.config.DeviceName
	}

	adv, err := m.adapter.Scan(scanCtx, protocol.ServiceUUID, accept)
	if err == nil {
		return adv, nil
	}
	if ctx.Err() != nil {
		return Advertisement{}, fmt.Errorf("%w: %w", ErrNoDeviceSelected, ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, ErrNoDeviceSelected) {
		return Advertisement{}, ErrNoDeviceSelected
	}
	return Advertisement{}, fmt.Errorf("scan: %w", err)
}

// setup resolves services and characteristics on a fresh connection.
func (m *Manager) setup(ctx context.Context, conn *Conn) error {
	m.readDeviceInfo(ctx, conn)

	svc, err := conn.peripheral.Service(ctx, protocol.ServiceUUID)
	if err != nil {
		return fmt.Errorf("resolve pybricks service: %w", err)
	}

	control, err := svc.Characteristic(ctx, protocol.ControlEventCharacteristicUUID)
	if err != nil {
		return fmt.Errorf("resolve control characteristic: %w", err)
	}
	write, strategy, err := selectWriter(control)
	if err != nil {
		return err
	}
	conn.control = control
	conn.write = write
	m.logDebug("write strategy selected", "strategy", strategy)

	conn.caps = m.readCapabilities(ctx, svc)

	if err := control.EnableNotifications(conn.handleNotification); err != nil {
		return fmt.Errorf("enable notifications: %w", err)
	}

	return nil
}

// readDeviceInfo fills in identity fields. Every failure is logged and
// swallowed.
func (m *Manager) readDeviceInfo(ctx context.Context, conn *Conn) {
	svc, err := conn.peripheral.Service(ctx, protocol.DeviceInfoServiceUUID)
	if err != nil {
		m.logDebug("device information service unavailable", "error", err)
		return
	}

	conn.info.FirmwareRevision = m.readString(ctx, svc, protocol.FirmwareRevisionCharacteristicUUID, "firmware revision")
	conn.info.SoftwareRevision = m.readString(ctx, svc, protocol.SoftwareRevisionCharacteristicUUID, "software revision")

	data, err := m.readCharacteristic(ctx, svc, protocol.PnPIDCharacteristicUUID)
	if err != nil {
		m.logDebug("read pnp id", "error", err)
		return
	}
	pnp, err := protocol.ParsePnPID(data)
	if err != nil {
		m.logDebug("decode pnp id", "error", err)
		return
	}
	conn.info.PnPID = &pnp
}

func (m *Manager) readString(ctx context.Context, svc Service, uuid, what string) string {
	data, err := m.readCharacteristic(ctx, svc, uuid)
	if err != nil {
		m.logDebug("read "+what, "error", err)
		return ""
	}
	return string(data)
}

// readCapabilities returns the hub capabilities, or the defaults when the
// characteristic is missing or malformed.
func (m *Manager) readCapabilities(ctx context.Context, svc Service) protocol.HubCapabilities {
	data, err := m.readCharacteristic(ctx, svc, protocol.HubCapabilitiesCharacteristicUUID)
	if err != nil {
		m.logDebug("read hub capabilities, using defaults", "error", err)
		return protocol.DefaultHubCapabilities()
	}
	caps, err := protocol.ParseHubCapabilities(data)
	if err != nil {
		m.logDebug("decode hub capabilities, using defaults", "error", err)
		return protocol.DefaultHubCapabilities()
	}
	return caps
}

func (m *Manager) readCharacteristic(ctx context.Context, svc Service, uuid string) ([]byte, error) {
	ch, err := svc.Characteristic(ctx, uuid)
	if err != nil {
		return nil, err
	}
	return ch.Read(ctx)
}

// Disconnect closes the current connection:
//  1. Stop the user program (best-effort)
//  2. Stop notifications (best-effort)
//  3. Close the transport
//
// The manager always ends Disconnected with the session cleared, even when
// a step fails. Disconnect on a disconnected manager is a no-op.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	conn := m.conn
	if m.state != Connected || conn == nil {
		m.mu.Unlock()
		return nil
	}
	m.state = Disconnecting
	m.mu.Unlock()
	m.notifyState(Disconnecting)

	start := time.Now()

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	if err := conn.Write(stopCtx, protocol.BuildStopUserProgramCmd()); err != nil {
		m.logDebug("stop program on disconnect", "error", err)
	}
	cancel()

	if err := conn.control.DisableNotifications(); err != nil {
		m.logDebug("disable notifications", "error", err)
	}

	conn.markLost()
	err := conn.peripheral.Disconnect()

	m.mu.Lock()
	m.conn = nil
	m.state = Disconnected
	m.mu.Unlock()
	m.notifyState(Disconnected)

	m.logInfo("disconnected", "session", conn.id.String(), "elapsed", time.Since(start).String())

	if err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// watch resets the manager when the remote end drops the connection.
func (m *Manager) watch(conn *Conn) {
	<-conn.Done()

	m.mu.Lock()
	if m.conn != conn || m.state != Connected {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = Disconnected
	m.mu.Unlock()

	m.logError("link lost", "session", conn.id.String())
	m.notifyState(Disconnected)
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.notifyState(s)
}

func (m *Manager) notifyState(s State) {
	if m.config.StateCallback != nil {
		m.config.StateCallback(s)
	}
}

func (m *Manager) logDebug(msg string, keysAndValues ...interface{}) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (m *Manager) logInfo(msg string, keysAndValues ...interface{}) {
	if m.config.Logger != nil {
		m.config.Logger.Info(msg, keysAndValues...)
	}
}

func (m *Manager) logError(msg string, keysAndValues ...interface{}) {
	if m.config.Logger != nil {
		m.config.Logger.Error(msg, keysAndValues...)
	}
}
