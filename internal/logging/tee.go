package logging

import (
	"context"
	"log/slog"
)

// teeHandler duplicates each record to every child handler, letting
// the console and journal sinks run with different formats and levels.
type teeHandler struct {
	children []slog.Handler
}

func newTeeHandler(children ...slog.Handler) *teeHandler {
	return &teeHandler{children: children}
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, c := range t.children {
		if c.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle clones the record per child; handlers are allowed to retain
// what they receive.
func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, c := range t.children {
		if c.Enabled(ctx, r.Level) {
			_ = c.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(t.children))
	for i, c := range t.children {
		next[i] = c.WithAttrs(attrs)
	}
	return &teeHandler{children: next}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(t.children))
	for i, c := range t.children {
		next[i] = c.WithGroup(name)
	}
	return &teeHandler{children: next}
}
