package link

import "context"

// Advertisement describes a device found while scanning.
type Advertisement struct {
	// Address is the platform-specific device address
	Address string

	// Name is the advertised local name (may be empty)
	Name string

	// RSSI is the received signal strength in dBm
	RSSI int16
}

// Adapter is the host radio. Implementations wrap a platform wireless stack;
// see the bluetooth sub-package for the real one and internal/simhub for an
// in-memory hub.
type Adapter interface {
	// Enable powers up the radio. An error means no usable radio exists.
	Enable() error

	// Scan blocks until accept returns true for a device advertising
	// serviceUUID, or until ctx ends.
	Scan(ctx context.Context, serviceUUID string, accept func(Advertisement) bool) (Advertisement, error)

	// Connect opens a connection to the advertised device. onDisconnect is
	// called once if the remote end drops the connection.
	Connect(ctx context.Context, adv Advertisement, onDisconnect func()) (Peripheral, error)
}

// Peripheral is a connected remote device.
type Peripheral interface {
	// Service resolves a primary GATT service by UUID.
	Service(ctx context.Context, uuid string) (Service, error)

	// Disconnect closes the underlying transport.
	Disconnect() error
}

// Service is a resolved GATT service.
type Service interface {
	// Characteristic resolves a characteristic of this service by UUID.
	Characteristic(ctx context.Context, uuid string) (Characteristic, error)
}

// Characteristic is a resolved GATT characteristic. A characteristic used
// for commands must also implement ResponseWriter or CommandWriter.
type Characteristic interface {
	// Read returns the current value.
	Read(ctx context.Context) ([]byte, error)

	// EnableNotifications registers handler for value notifications. The
	// handler is called from a platform goroutine and must not block.
	EnableNotifications(handler func(value []byte)) error

	// DisableNotifications stops value notifications.
	DisableNotifications() error
}

// ResponseWriter is implemented by characteristics that support
// write-with-response. It is preferred over CommandWriter.
type ResponseWriter interface {
	WriteWithResponse(ctx context.Context, value []byte) error
}

// CommandWriter is implemented by characteristics that only expose a
// generic write primitive.
type CommandWriter interface {
	Write(ctx context.Context, value []byte) error
}

// writeFunc is the write strategy selected once per connection.
type writeFunc func(ctx context.Context, value []byte) error

// selectWriter picks the write primitive of a control characteristic.
func selectWriter(c Characteristic) (writeFunc, string, error) {
	if w, ok := c.(ResponseWriter); ok {
		return w.WriteWithResponse, "write-with-response", nil
	}
	if w, ok := c.(CommandWriter); ok {
		return w.Write, "write", nil
	}
	return nil, "", ErrWriteUnsupported
}
