// Package logging configures the process-wide zap logger: one line per
// message in the form "LEVEL: message", with the level colored by severity
// when stdout is a terminal.
package logging

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/xerrors"
)

// ParseLevel converts the --log-level flag value to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, xerrors.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// Setup installs the global logger at the given level and returns its flush
// function. Callers report a failure here by exiting with status 3.
func Setup(level zapcore.Level) (func(), error) {
	encodeLevel := zapcore.CapitalLevelEncoder
	if isatty.IsTerminal(os.Stdout.Fd()) {
		encodeLevel = zapcore.CapitalColorLevelEncoder
	}
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      encodeLevel,
		ConsoleSeparator: ": ",
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(level))
	logger := zap.New(core)
	undo := zap.ReplaceGlobals(logger)
	return func() {
		logger.Sync()
		undo()
	}, nil
}
