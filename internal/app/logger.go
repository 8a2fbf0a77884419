package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the process logger. Production runs JSON for log
// shipping; anything else gets the readable text handler.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return slog.New(handler).With(slog.String("service", "meridian"))
}
