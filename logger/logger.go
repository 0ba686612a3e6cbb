// Package logger builds the slog logger used across tg-flow. Records are rendered by
// charmbracelet/log in text, logfmt or JSON form.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmLog "github.com/charmbracelet/log"

	"github.com/0xVanfer/tg-flow/config"
)

// Environment overrides, applied on top of the configuration file.
const (
	EnvLevel     = "TGFLOW_LOG_LEVEL"
	EnvFormat    = "TGFLOW_LOG_FORMAT"
	EnvAddSource = "TGFLOW_LOG_ADD_SOURCE"
)

const (
	defaultFormat = "text"
	defaultLevel  = "info"
)

// New creates a logger writing to stderr.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	formatter, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	addSource := cfg.AddSource
	if env := strings.TrimSpace(os.Getenv(EnvAddSource)); env != "" {
		addSource = parseBool(env)
	}

	h := charmLog.NewWithOptions(w, charmLog.Options{
		Level:           level,
		ReportTimestamp: true,
		ReportCaller:    addSource,
		Formatter:       formatter,
	})
	return slog.New(h), nil
}

func parseFormat(input string) (charmLog.Formatter, error) {
	format := strings.ToLower(strings.TrimSpace(input))
	if env := strings.TrimSpace(os.Getenv(EnvFormat)); env != "" {
		format = strings.ToLower(env)
	}
	if format == "" {
		format = defaultFormat
	}

	switch format {
	case "text":
		return charmLog.TextFormatter, nil
	case "logfmt":
		return charmLog.LogfmtFormatter, nil
	case "json":
		return charmLog.JSONFormatter, nil
	}
	return 0, fmt.Errorf("unsupported log format %q", format)
}

func parseLevel(input string) (charmLog.Level, error) {
	text := strings.ToLower(strings.TrimSpace(input))
	if env := strings.TrimSpace(os.Getenv(EnvLevel)); env != "" {
		text = strings.ToLower(env)
	}
	if text == "" {
		text = defaultLevel
	}

	switch text {
	case "debug":
		return charmLog.DebugLevel, nil
	case "info":
		return charmLog.InfoLevel, nil
	case "warn", "warning":
		return charmLog.WarnLevel, nil
	case "error":
		return charmLog.ErrorLevel, nil
	}
	return 0, fmt.Errorf("unsupported log level %q", text)
}

func parseBool(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
