// Package obslog configures the process-wide slog logger.
package obslog

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures a global slog logger. JSON if TASKGRAPH_JSON_LOG is
// truthy, text otherwise. Level comes from TASKGRAPH_LOG_LEVEL.
func Init(service string) *slog.Logger {
	jsonMode := isTruthy(os.Getenv("TASKGRAPH_JSON_LOG"))

	var handler slog.Handler
	opts := &slog.HandlerOptions{AddSource: false, Level: levelFromEnv()}
	if jsonMode {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	logger.Info("logging initialized", "json", jsonMode)
	return logger
}

func isTruthy(v string) bool {
	v = strings.ToLower(v)
	return v == "1" || v == "true" || v == "yes"
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("TASKGRAPH_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
