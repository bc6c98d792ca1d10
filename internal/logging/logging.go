// Package logging holds the silent default logger shared by the library
// packages.
package logging

import (
	"context"
	"log/slog"
)

// Discard returns a logger that drops every record. Library code uses it when
// no logger is configured, so call sites never check for nil.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// OrDiscard returns logger, or a discarding logger when it is nil.
func OrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return Discard()
	}
	return logger
}

// discardHandler is a slog.Handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
