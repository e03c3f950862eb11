package link

import (
	"context"
	"errors"
	"sync"

	"github.com/moffa90/go-pybricks/protocol"
)

// fakeAdapter is a scriptable Adapter for tests.
type fakeAdapter struct {
	enableErr  error
	scanErr    error
	connectErr error
	adverts    []Advertisement
	peripheral *fakePeripheral

	mu           sync.Mutex
	onDisconnect func()
}

func newFakeAdapter() *fakeAdapter {
	control := &fakeCharacteristic{mode: writeWithResponse}
	return &fakeAdapter{
		adverts: []Advertisement{{Address: "AA:BB", Name: "Pybricks Hub", RSSI: -40}},
		peripheral: &fakePeripheral{services: map[string]*fakeService{
			protocol.ServiceUUID: {chars: map[string]*fakeCharacteristic{
				protocol.ControlEventCharacteristicUUID:    control,
				protocol.HubCapabilitiesCharacteristicUUID: {value: []byte{64, 0, 7, 0, 0, 0, 0, 1, 0, 0, 1}},
			}},
			protocol.DeviceInfoServiceUUID: {chars: map[string]*fakeCharacteristic{
				protocol.FirmwareRevisionCharacteristicUUID: {value: []byte("3.3.0")},
				protocol.SoftwareRevisionCharacteristicUUID: {value: []byte("1.3.0")},
				protocol.PnPIDCharacteristicUUID:            {value: []byte{1, 0x97, 0x03, 0x83, 0x00, 0x00, 0x00}},
			}},
		}},
	}
}

func (a *fakeAdapter) control() *fakeCharacteristic {
	return a.peripheral.services[protocol.ServiceUUID].chars[protocol.ControlEventCharacteristicUUID]
}

// dropLink simulates the hub going away.
func (a *fakeAdapter) dropLink() {
	a.mu.Lock()
	cb := a.onDisconnect
	a.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (a *fakeAdapter) Enable() error { return a.enableErr }

func (a *fakeAdapter) Scan(ctx context.Context, _ string, accept func(Advertisement) bool) (Advertisement, error) {
	if a.scanErr != nil {
		return Advertisement{}, a.scanErr
	}
	for _, adv := range a.adverts {
		if accept(adv) {
			return adv, nil
		}
	}
	<-ctx.Done()
	return Advertisement{}, ctx.Err()
}

func (a *fakeAdapter) Connect(_ context.Context, _ Advertisement, onDisconnect func()) (Peripheral, error) {
	if a.connectErr != nil {
		return nil, a.connectErr
	}
	a.mu.Lock()
	a.onDisconnect = onDisconnect
	a.mu.Unlock()
	return a.peripheral, nil
}

type fakePeripheral struct {
	services      map[string]*fakeService
	disconnectErr error
	disconnects   int
}

func (p *fakePeripheral) Service(_ context.Context, uuid string) (Service, error) {
	svc, ok := p.services[uuid]
	if !ok {
		return nil, errors.New("service not found")
	}
	return svc, nil
}

func (p *fakePeripheral) Disconnect() error {
	p.disconnects++
	return p.disconnectErr
}

type fakeService struct {
	chars map[string]*fakeCharacteristic
}

func (s *fakeService) Characteristic(_ context.Context, uuid string) (Characteristic, error) {
	c, ok := s.chars[uuid]
	if !ok {
		return nil, errors.New("characteristic not found")
	}
	switch c.mode {
	case writeWithResponse:
		return responseChar{c}, nil
	case writeGeneric:
		return commandChar{c}, nil
	default:
		return c, nil
	}
}

type writeMode int

const (
	writeNone writeMode = iota
	writeWithResponse
	writeGeneric
)

type fakeCharacteristic struct {
	value     []byte
	readErr   error
	notifyErr error
	mode      writeMode

	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	block    chan struct{}
	handler  func([]byte)
	disabled bool
}

func (c *fakeCharacteristic) Read(context.Context) ([]byte, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.value, nil
}

func (c *fakeCharacteristic) EnableNotifications(handler func([]byte)) error {
	if c.notifyErr != nil {
		return c.notifyErr
	}
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
	return nil
}

func (c *fakeCharacteristic) DisableNotifications() error {
	c.mu.Lock()
	c.disabled = true
	c.mu.Unlock()
	return nil
}

func (c *fakeCharacteristic) write(value []byte) error {
	c.mu.Lock()
	block := c.block
	c.writes = append(c.writes, append([]byte(nil), value...))
	err := c.writeErr
	c.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (c *fakeCharacteristic) notify(frame []byte) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(frame)
}

func (c *fakeCharacteristic) recorded() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

type responseChar struct{ *fakeCharacteristic }

func (c responseChar) WriteWithResponse(_ context.Context, value []byte) error {
	return c.write(value)
}

type commandChar struct{ *fakeCharacteristic }

func (c commandChar) Write(_ context.Context, value []byte) error {
	return c.write(value)
}
