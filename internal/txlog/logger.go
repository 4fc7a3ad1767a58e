// Package txlog builds the structured logger threaded through
// dbcontext.Context and down into pkg/bufferpool (SPEC_FULL.md §1 AMBIENT
// STACK); pkg/lock and pkg/walog take no logger. Grounded on
// sushant-115-gojodb's pkg/logger: an atomic level, a JSON-or-console
// encoder choice, and a configurable output sink, trimmed to what this
// core actually varies (no per-service "service" field, since there is
// only ever one service here).
package txlog

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger's level, encoding, and destination.
type Config struct {
	// Level is one of "debug", "info", "warn", "error"; invalid or empty
	// values fall back to "info".
	Level string
	// Format is "json" (default) or "console".
	Format string
	// Output is "stdout" (default), "stderr", or a file path to append to.
	Output string
}

// New builds a *zap.Logger from cfg. Call once per dbcontext.Context.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	sink, err := writeSyncer(cfg.Output)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder(cfg.Format), sink, level)
	return zap.New(core, zap.AddCaller()), nil
}

// Nop returns a logger that discards everything, for tests that don't
// care about log output.
func Nop() *zap.Logger { return zap.NewNop() }

func encoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if strings.ToLower(format) == "console" {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

func writeSyncer(output string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log output %s: %w", output, err)
		}
		return zapcore.AddSync(f), nil
	}
}
