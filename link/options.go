package link

import "time"

// Logger is an optional logging interface. It matches the shape of most
// structured loggers; see internal/logging for a zap adapter.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

// Config holds the link manager configuration.
type Config struct {
	// Logger is used for logging link activity (optional)
	Logger Logger

	// DeviceName restricts the scan to hubs advertising this name.
	// Empty accepts the first hub found.
	DeviceName string

	// ScanTimeout bounds device selection. Zero waits until ctx ends.
	ScanTimeout time.Duration

	// StdoutDelivery selects per-frame or batched stdout delivery
	StdoutDelivery StdoutDelivery

	// EventBuffer is the channel capacity of each subscription. With zero,
	// late subscribers do not get the last status report replayed.
	EventBuffer int

	// StateCallback is called after every link state change (optional)
	StateCallback func(State)
}

func defaultConfig() Config {
	return Config{
		ScanTimeout:    10 * time.Second,
		StdoutDelivery: StdoutImmediate,
		EventBuffer:    32,
	}
}

// Option is a functional option for configuring the Manager.
type Option func(*Config)

// WithLogger sets a logger for link operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithDeviceName only accepts hubs advertising the given name.
//
// Example:
//
//	m := link.NewManager(adapter, link.WithDeviceName("Pybricks Hub"))
func WithDeviceName(name string) Option {
	return func(c *Config) {
		c.DeviceName = name
	}
}

// WithScanTimeout sets how long Connect scans before giving up with
// ErrNoDeviceSelected.
func WithScanTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout >= 0 {
			c.ScanTimeout = timeout
		}
	}
}

// WithStdoutDelivery selects how stdout text is delivered to subscribers.
func WithStdoutDelivery(d StdoutDelivery) Option {
	return func(c *Config) {
		c.StdoutDelivery = d
	}
}

// WithEventBuffer sets the channel capacity of each subscription.
func WithEventBuffer(size int) Option {
	return func(c *Config) {
		if size >= 0 {
			c.EventBuffer = size
		}
	}
}

// WithStateCallback registers a callback for link state changes.
//
// Example:
//
//	m := link.NewManager(adapter, link.WithStateCallback(func(s link.State) {
//	    fmt.Println("link:", s)
//	}))
func WithStateCallback(callback func(State)) Option {
	return func(c *Config) {
		c.StateCallback = callback
	}
}
