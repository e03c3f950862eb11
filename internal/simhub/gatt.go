package simhub

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-pybricks/link"
	"github.com/moffa90/go-pybricks/protocol"
)

type peripheral struct {
	hub *Hub
}

func (p *peripheral) Service(_ context.Context, uuid string) (link.Service, error) {
	switch uuid {
	case protocol.ServiceUUID, protocol.DeviceInfoServiceUUID:
		return &service{hub: p.hub, uuid: uuid}, nil
	default:
		return nil, fmt.Errorf("simhub: service %s not found", uuid)
	}
}

func (p *peripheral) Disconnect() error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connected {
		return ErrNotConnected
	}
	h.connected = false
	h.onDisconnect = nil
	h.notify = nil
	h.flags |= protocol.StatusBLEAdvertising.Mask()
	return nil
}

type service struct {
	hub  *Hub
	uuid string
}

func (s *service) Characteristic(_ context.Context, uuid string) (link.Characteristic, error) {
	h := s.hub
	switch {
	case s.uuid == protocol.ServiceUUID && uuid == protocol.ControlEventCharacteristicUUID:
		return &controlChar{hub: h}, nil
	case s.uuid == protocol.ServiceUUID && uuid == protocol.HubCapabilitiesCharacteristicUUID:
		return valueChar(protocol.BuildHubCapabilities(h.caps)), nil
	case s.uuid == protocol.DeviceInfoServiceUUID && uuid == protocol.FirmwareRevisionCharacteristicUUID:
		return valueChar(DefaultFirmware), nil
	case s.uuid == protocol.DeviceInfoServiceUUID && uuid == protocol.SoftwareRevisionCharacteristicUUID:
		return valueChar(protocol.ProfileVersion), nil
	case s.uuid == protocol.DeviceInfoServiceUUID && uuid == protocol.PnPIDCharacteristicUUID:
		return valueChar(protocol.BuildPnPID(protocol.PnPID{VendorIDSource: 1, VendorID: 0x0397, ProductID: 0x0083})), nil
	default:
		return nil, fmt.Errorf("simhub: characteristic %s not found", uuid)
	}
}

// valueChar is a read-only characteristic.
type valueChar []byte

func (v valueChar) Read(context.Context) ([]byte, error) {
	return append([]byte(nil), v...), nil
}

func (v valueChar) EnableNotifications(func([]byte)) error {
	return fmt.Errorf("simhub: notify not supported")
}

func (v valueChar) DisableNotifications() error {
	return nil
}

// controlChar is the command/event characteristic.
type controlChar struct {
	hub *Hub
}

func (c *controlChar) Read(context.Context) ([]byte, error) {
	return nil, fmt.Errorf("simhub: read not supported")
}

func (c *controlChar) EnableNotifications(handler func([]byte)) error {
	h := c.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connected {
		return ErrNotConnected
	}
	h.notify = handler
	h.emitStatusLocked()
	return nil
}

func (c *controlChar) DisableNotifications() error {
	h := c.hub
	h.mu.Lock()
	h.notify = nil
	h.mu.Unlock()
	return nil
}

// WriteWithResponse implements link.ResponseWriter.
func (c *controlChar) WriteWithResponse(ctx context.Context, value []byte) error {
	h := c.hub
	if h.latency > 0 {
		select {
		case <-time.After(h.latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connected {
		return ErrNotConnected
	}
	return h.handleCommand(value)
}
