package docsift

import (
	"context"
	"log/slog"
)

// discardHandler is a slog.Handler that drops every record. Components
// default to it so logging is strictly opt-in via WithLogger.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
