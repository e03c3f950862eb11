package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg without mutating it. It returns a *ValidationError
// listing every problem found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	ve := &ValidationError{}

	if cfg.Device.ScanTimeout < 0 {
		ve.Add("device.scan_timeout must be >= 0")
	}

	switch cfg.Compiler.Backend {
	case BackendExec:
		if cfg.Compiler.Path == "" {
			ve.Add("compiler.path is required for the exec backend")
		}
	case BackendWasm:
		if !strings.HasSuffix(cfg.Compiler.Path, ".wasm") {
			ve.Add("compiler.path must point to a .wasm module for the wasm backend")
		}
	default:
		ve.Add("compiler.backend must be %q or %q, got %q", BackendExec, BackendWasm, cfg.Compiler.Backend)
	}

	if cfg.Cache.Enabled && cfg.Cache.Path == "" {
		ve.Add("cache.path is required when the cache is enabled")
	}
	if cfg.Cache.MaxAge < 0 {
		ve.Add("cache.max_age must not be negative, got %s", cfg.Cache.MaxAge)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		ve.Add("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		ve.Add("log.format must be console or json, got %q", cfg.Log.Format)
	}

	switch cfg.Stdout.Delivery {
	case "", "immediate", "batched":
	default:
		ve.Add("stdout.delivery must be immediate or batched, got %q", cfg.Stdout.Delivery)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}
