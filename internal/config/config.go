// Package config loads the pybricksdev tool configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level tool configuration.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Compiler CompilerConfig `yaml:"compiler"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
	Stdout   StdoutConfig   `yaml:"stdout"`
	Upload   UploadConfig   `yaml:"upload"`
}

// DeviceConfig selects the hub to connect to.
type DeviceConfig struct {
	Name        string        `yaml:"name"` // empty = first Pybricks hub found
	ScanTimeout time.Duration `yaml:"scan_timeout"`
}

// CompilerConfig selects the MicroPython cross-compiler.
type CompilerConfig struct {
	Backend string   `yaml:"backend"` // "exec" or "wasm"
	Path    string   `yaml:"path"`    // mpy-cross binary or .wasm module
	Args    []string `yaml:"args,omitempty"`
}

// CacheConfig controls the compile cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`

	// MaxAge drops entries older than this when the cache is opened.
	// Zero keeps everything.
	MaxAge time.Duration `yaml:"max_age"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
	Output string `yaml:"output"` // "stderr", "stdout" or a file path
}

// StdoutConfig controls how program output is delivered.
type StdoutConfig struct {
	Delivery string `yaml:"delivery"` // "immediate" or "batched"
}

// UploadConfig holds uploader settings.
type UploadConfig struct {
	EnforceProgramSize bool `yaml:"enforce_program_size"`
}

// Compiler backends.
const (
	BackendExec = "exec"
	BackendWasm = "wasm"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "pybricksdev.yaml"

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ScanTimeout: 10 * time.Second,
		},
		Compiler: CompilerConfig{
			Backend: BackendExec,
			Path:    "mpy-cross",
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    defaultCachePath(),
			MaxAge:  30 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Stdout: StdoutConfig{
			Delivery: "immediate",
		},
		Upload: UploadConfig{
			EnforceProgramSize: true,
		},
	}
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".pybricksdev", "cache.db")
	}
	return filepath.Join(dir, "pybricksdev", "cache.db")
}

// Load reads a YAML config file over the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps PYBRICKS_* environment variables to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PYBRICKS_DEVICE_NAME"); v != "" {
		cfg.Device.Name = v
	}
	if v := os.Getenv("PYBRICKS_MPY_CROSS"); v != "" {
		cfg.Compiler.Path = v
	}
	if v := os.Getenv("PYBRICKS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PYBRICKS_CACHE"); v == "off" || v == "false" {
		cfg.Cache.Enabled = false
	}
}
