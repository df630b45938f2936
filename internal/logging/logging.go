package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/log"
)

// New builds a slog.Logger backed by a charmbracelet handler. format is
// "json" or "text"; an unknown level falls back to info.
func New(w io.Writer, level, format string) *slog.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	if format == "json" {
		handler.SetFormatter(log.JSONFormatter)
	}
	return slog.New(handler)
}
