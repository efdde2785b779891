// Package logging holds the process-wide zap logger. Components take a
// child logger with Named and log with zap fields.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the root logger. It is usable before Initialize runs.
var Logger = zap.NewNop()

// Config selects level, encoder and destination
type Config struct {
	Level       string `json:"level" yaml:"level"`
	Format      string `json:"format" yaml:"format"` // json or console
	Output      string `json:"output" yaml:"output"` // stdout, stderr or a file path
	Development bool   `json:"development" yaml:"development"`
}

// DefaultConfig logs JSON at info level to stderr
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: "stderr"}
}

// Initialize builds the root logger from cfg. An unknown level falls back
// to info.
func Initialize(cfg Config) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	sink, err := writer(cfg.Output)
	if err != nil {
		return err
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	Logger = zap.New(zapcore.NewCore(encoder(cfg.Format), sink, level), opts...)
	return nil
}

func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func writer(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "", "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(f), nil
}

// Sync flushes buffered entries
func Sync() {
	_ = Logger.Sync()
}

// Named returns a child logger for one component (catalog, forwarder, http...)
func Named(component string) *zap.Logger {
	return Logger.Named(component)
}
