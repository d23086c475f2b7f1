// Public domain.

// Package logger configures the process-wide structured logger.
package logger

import (
	"io"
	"log/slog"
)

// Init installs a text or JSON slog handler writing to w as the default
// logger and returns it.
func Init(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opt := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opt)
	} else {
		h = slog.NewTextHandler(w, opt)
	}
	l := slog.New(h)
	slog.SetDefault(l)
	return l
}

// Or returns l, or the default logger if l is nil.
func Or(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
