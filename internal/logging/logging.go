// Package logging builds the zap logger used by the command line tools and
// adapts it to the Logger interface accepted by the library packages.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/moffa90/go-pybricks/internal/config"
)

// New creates a configured *zap.Logger.
// The returned closer function should be deferred to flush and close file handles.
func New(cfg config.LogConfig) (*zap.Logger, func() error, error) {
	out, closeOut, err := openOutput(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	logger := zap.New(zapcore.NewCore(enc, out, parseLevel(cfg.Level)))
	closer := func() error {
		_ = logger.Sync()
		return closeOut()
	}
	return logger, closer, nil
}

// parseLevel converts a string level to a zap level.
func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// openOutput returns a WriteSyncer for the specified output target.
func openOutput(output string) (zapcore.WriteSyncer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return zapcore.Lock(os.Stdout), noop, nil
	case "stderr", "":
		return zapcore.Lock(os.Stderr), noop, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, err
		}
		return zapcore.Lock(f), f.Close, nil
	}
}

// Logger implements the Debug/Info/Error interface of the link, hub and
// simhub packages on top of zap.
type Logger struct {
	s *zap.SugaredLogger
}

// Adapt wraps l. A nil l gives a no-op logger.
func Adapt(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{s: l.Sugar()}
}

// Named returns a logger for one component, e.g. "link" or "hub".
func (l *Logger) Named(name string) *Logger {
	return &Logger{s: l.s.Named(name)}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}
