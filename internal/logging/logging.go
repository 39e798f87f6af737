// Package logging builds the CLI's zap logger.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrInvalidLevel reports a log level zap does not recognise.
var ErrInvalidLevel = errors.New("logging.invalid_level")

// Options selects where and how much the logger writes.
type Options struct {
	// Level is a zap level name; empty means warn so command output stays readable.
	Level string
	// FilePath, when set, receives JSON logs at debug level through a rotating file.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	Console    io.Writer
}

// New builds a logger writing human-readable lines to Console and, optionally, JSON to a rotating file.
// The returned closer flushes and closes the file.
func New(options Options) (*zap.Logger, func() error, error) {
	level := zapcore.WarnLevel
	if trimmed := strings.TrimSpace(options.Level); trimmed != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(trimmed))); err != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrInvalidLevel, trimmed)
		}
	}
	console := options.Console
	if console == nil {
		console = os.Stderr
	}

	consoleEncoder := zap.NewDevelopmentEncoderConfig()
	consoleEncoder.TimeKey = ""
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoder), zapcore.AddSync(console), level),
	}

	closer := func() error { return nil }
	if options.FilePath != "" {
		rotating := &lumberjack.Logger{
			Filename:   options.FilePath,
			MaxSize:    valueOrDefault(options.MaxSizeMB, 10),
			MaxBackups: valueOrDefault(options.MaxBackups, 3),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotating),
			zapcore.DebugLevel,
		))
		closer = rotating.Close
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger, func() error {
		_ = logger.Sync()
		return closer()
	}, nil
}

func valueOrDefault(value int, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
