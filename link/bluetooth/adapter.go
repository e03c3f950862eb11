// Package bluetooth implements link.Adapter on top of the host Bluetooth
// stack via tinygo.org/x/bluetooth (BlueZ on Linux, CoreBluetooth on macOS,
// WinRT on Windows).
package bluetooth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/moffa90/go-pybricks/link"
)

// Adapter is a link.Adapter backed by a host Bluetooth adapter.
type Adapter struct {
	adapter *bluetooth.Adapter

	mu       sync.Mutex
	handlers map[string]func()
	seen     map[string]bluetooth.Address
}

// NewAdapter returns an Adapter over the default host adapter.
func NewAdapter() *Adapter {
	return &Adapter{
		adapter:  bluetooth.DefaultAdapter,
		handlers: make(map[string]func()),
		seen:     make(map[string]bluetooth.Address),
	}
}

// Enable powers up the host adapter and installs the disconnect handler.
func (a *Adapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}
	a.adapter.SetConnectHandler(a.connectionChanged)
	return nil
}

func (a *Adapter) connectionChanged(device bluetooth.Device, connected bool) {
	if connected {
		return
	}

	addr := device.Address.String()
	a.mu.Lock()
	cb, ok := a.handlers[addr]
	delete(a.handlers, addr)
	a.mu.Unlock()

	if ok {
		cb()
	}
}

// Scan reports the first device advertising serviceUUID that accept
// approves. The scan is stopped when ctx ends.
func (a *Adapter) Scan(ctx context.Context, serviceUUID string, accept func(link.Advertisement) bool) (link.Advertisement, error) {
	uuid, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return link.Advertisement{}, fmt.Errorf("parse service uuid: %w", err)
	}

	var (
		once  sync.Once
		found link.Advertisement
		ok    bool
	)
	stop := func() {
		once.Do(func() { _ = a.adapter.StopScan() })
	}

	scanDone := make(chan error, 1)
	go func() {
		scanDone <- a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !result.HasServiceUUID(uuid) {
				return
			}
			adv := link.Advertisement{
				Address: result.Address.String(),
				Name:    result.LocalName(),
				RSSI:    result.RSSI,
			}
			if !accept(adv) {
				return
			}
			a.mu.Lock()
			a.seen[adv.Address] = result.Address
			a.mu.Unlock()
			found, ok = adv, true
			stop()
		})
	}()

	select {
	case err := <-scanDone:
		if err != nil {
			return link.Advertisement{}, err
		}
	case <-ctx.Done():
		stop()
		<-scanDone
	}

	if !ok {
		if err := ctx.Err(); err != nil {
			return link.Advertisement{}, err
		}
		return link.Advertisement{}, link.ErrNoDeviceSelected
	}
	return found, nil
}

// Connect connects to a device previously returned by Scan.
func (a *Adapter) Connect(ctx context.Context, adv link.Advertisement, onDisconnect func()) (link.Peripheral, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	addr, ok := a.seen[adv.Address]
	if ok {
		a.handlers[adv.Address] = onDisconnect
	}
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("device %s was not found by a scan", adv.Address)
	}

	device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		a.mu.Lock()
		delete(a.handlers, adv.Address)
		a.mu.Unlock()
		return nil, err
	}

	return &peripheral{adapter: a, address: adv.Address, device: device}, nil
}

type peripheral struct {
	adapter *Adapter
	address string
	device  bluetooth.Device
}

func (p *peripheral) Service(_ context.Context, uuid string) (link.Service, error) {
	id, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("parse service uuid: %w", err)
	}

	services, err := p.device.DiscoverServices([]bluetooth.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("service %s not found", uuid)
	}
	return &service{svc: services[0]}, nil
}

// Disconnect closes the connection. The disconnect handler is removed first
// so a local close is not reported as link loss.
func (p *peripheral) Disconnect() error {
	p.adapter.mu.Lock()
	delete(p.adapter.handlers, p.address)
	p.adapter.mu.Unlock()

	return p.device.Disconnect()
}

type service struct {
	svc bluetooth.DeviceService
}

func (s *service) Characteristic(_ context.Context, uuid string) (link.Characteristic, error) {
	id, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("parse characteristic uuid: %w", err)
	}

	chars, err := s.svc.DiscoverCharacteristics([]bluetooth.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("characteristic %s not found", uuid)
	}
	return &characteristic{char: chars[0]}, nil
}

// characteristic implements link.Characteristic. Its write primitive
// depends on the platform: see write_response.go and write_command.go.
type characteristic struct {
	char bluetooth.DeviceCharacteristic
}

// maxReadSize covers every characteristic read by the link layer.
const maxReadSize = 512

func (c *characteristic) Read(_ context.Context) ([]byte, error) {
	buf := make([]byte, maxReadSize)
	n, err := c.char.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *characteristic) EnableNotifications(handler func([]byte)) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}
	return c.char.EnableNotifications(handler)
}

func (c *characteristic) DisableNotifications() error {
	return c.char.EnableNotifications(nil)
}
