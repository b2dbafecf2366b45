// Package logging configures slog so that informational records go to stdout
// and warnings and errors go to stderr.
package logging

import (
	"context"
	"io"
	"log/slog"
)

// SplitHandler routes records below Warn to one handler and the rest to another.
type SplitHandler struct {
	info slog.Handler
	err  slog.Handler
}

// New builds a SplitHandler writing "json" or "text" records.
func New(format string, level slog.Leveler, stdout, stderr io.Writer) *SplitHandler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return &SplitHandler{
			info: slog.NewTextHandler(stdout, opts),
			err:  slog.NewTextHandler(stderr, opts),
		}
	}
	return &SplitHandler{
		info: slog.NewJSONHandler(stdout, opts),
		err:  slog.NewJSONHandler(stderr, opts),
	}
}

func (h *SplitHandler) pick(level slog.Level) slog.Handler {
	if level >= slog.LevelWarn {
		return h.err
	}
	return h.info
}

func (h *SplitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.pick(level).Enabled(ctx, level)
}

func (h *SplitHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.pick(r.Level).Handle(ctx, r)
}

func (h *SplitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SplitHandler{info: h.info.WithAttrs(attrs), err: h.err.WithAttrs(attrs)}
}

func (h *SplitHandler) WithGroup(name string) slog.Handler {
	return &SplitHandler{info: h.info.WithGroup(name), err: h.err.WithGroup(name)}
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level,
// defaulting to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
