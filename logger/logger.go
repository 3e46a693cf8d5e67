// Package logger sets up the process-wide slog logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sarchlab/slx/core"
)

var globalLogger *slog.Logger

// ParseLevel maps a level name to a slog level. The names follow the
// interpreter's command line: severe, warning, info, debug and trace. The
// slog names error and warn are accepted as well.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "severe", "error":
		return slog.LevelError, nil
	case "warning", "warn":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "trace":
		return core.LevelTrace, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", name)
	}
}

// Init builds a logger writing to w and installs it as the slog default.
// format is "text" or "json"; empty means text.
func Init(level, format string, w io.Writer) (*slog.Logger, error) {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:       slogLevel,
		ReplaceAttr: replaceLevel,
	}

	var handler slog.Handler
	switch format {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return globalLogger, nil
}

// GetLogger returns the logger installed by Init, or the slog default.
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}

	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == core.LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}

	return a
}
