// Package logging builds the zap loggers used across the server. All
// styles write to stderr so stdio-mode MCP traffic on stdout stays
// clean.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Style selects the log output format
type Style string

const (
	StyleTerminal Style = "terminal"
	StyleJSON     Style = "json"
	StyleLogfmt   Style = "logfmt"
	StyleNoop     Style = "noop"
)

// Config controls logger construction
type Config struct {
	Style Style
	Level string
}

// NewLogger creates a zap logger for the given style and level. Empty
// values default to terminal style at info level.
func NewLogger(c *Config) (*zap.Logger, error) {
	style := StyleTerminal
	level := zapcore.InfoLevel

	if c != nil {
		if c.Style != "" {
			style = c.Style
		}
		if c.Level != "" {
			lvl, err := zapcore.ParseLevel(c.Level)
			if err != nil {
				return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
			}
			level = lvl
		}
	}

	switch style {
	case StyleNoop:
		return zap.NewNop(), nil
	case StyleJSON:
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build(zap.AddStacktrace(zap.ErrorLevel))
	case StyleTerminal:
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build(zap.AddStacktrace(zap.ErrorLevel))
	case StyleLogfmt:
		core := zapcore.NewCore(
			newLogfmtEncoder(),
			zapcore.AddSync(os.Stderr),
			level,
		)
		return zap.New(core, zap.AddStacktrace(zap.ErrorLevel)), nil
	default:
		return nil, fmt.Errorf("invalid log style %q: must be one of terminal, json, logfmt, noop", style)
	}
}
