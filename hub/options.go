package hub

// Config holds the uploader and controller configuration.
type Config struct {
	// ProgressCallback is called during uploads to report progress (optional)
	ProgressCallback ProgressCallback

	// StateCallback is called on hub-side state changes (optional)
	StateCallback StateCallback

	// CompileStateCallback is called on compile state changes (optional)
	CompileStateCallback CompileStateCallback

	// StdoutCallback receives program output while following events (optional)
	StdoutCallback StdoutCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// EnforceProgramSize rejects images larger than the hub's
	// MaxUserProgramSize before any write. Default is true.
	EnforceProgramSize bool
}

func defaultConfig() Config {
	return Config{
		EnforceProgramSize: true,
	}
}

// Option is a functional option for configuring the Uploader and Controller.
type Option func(*Config)

// WithProgressCallback sets a callback function to track upload progress.
//
// Example:
//
//	up := hub.NewUploader(conn,
//	    hub.WithProgressCallback(func(p hub.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithStateCallback sets a callback for hub-side state changes.
//
// Example:
//
//	ctrl := hub.NewController(conn, compiler,
//	    hub.WithStateCallback(func(from, to hub.State) {
//	        fmt.Printf("%s -> %s\n", from, to)
//	    }),
//	)
func WithStateCallback(callback StateCallback) Option {
	return func(c *Config) {
		c.StateCallback = callback
	}
}

// WithCompileStateCallback sets a callback for compile state changes.
func WithCompileStateCallback(callback CompileStateCallback) Option {
	return func(c *Config) {
		c.CompileStateCallback = callback
	}
}

// WithStdoutCallback sets a callback for program output seen by Follow.
func WithStdoutCallback(callback StdoutCallback) Option {
	return func(c *Config) {
		c.StdoutCallback = callback
	}
}

// WithLogger sets a logger for uploader and controller operations.
//
// Example:
//
//	ctrl := hub.NewController(conn, compiler, hub.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithEnforceProgramSize enables or disables the MaxUserProgramSize check.
// With the check disabled, oversized images are sent and the hub decides.
func WithEnforceProgramSize(enforce bool) Option {
	return func(c *Config) {
		c.EnforceProgramSize = enforce
	}
}

func (c *Config) logDebug(msg string, keysAndValues ...interface{}) {
	if c.Logger != nil {
		c.Logger.Debug(msg, keysAndValues...)
	}
}

func (c *Config) logInfo(msg string, keysAndValues ...interface{}) {
	if c.Logger != nil {
		c.Logger.Info(msg, keysAndValues...)
	}
}

func (c *Config) logError(msg string, keysAndValues ...interface{}) {
	if c.Logger != nil {
		c.Logger.Error(msg, keysAndValues...)
	}
}
