package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"
)

var levelColors = map[slog.Level]*color.Color{
	slog.LevelDebug: forceColor(color.FgHiBlack),
	slog.LevelInfo:  forceColor(color.FgCyan),
	slog.LevelWarn:  forceColor(color.FgYellow, color.Bold),
	slog.LevelError: forceColor(color.FgRed, color.Bold),
}

// forceColor builds a color that ignores color.NoColor; callers decide
// whether the destination is a terminal.
func forceColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}

func newLogger(w io.Writer, level slog.Level, colored bool) *slog.Logger {
	if colored {
		return slog.New(&colorHandler{mu: &sync.Mutex{}, w: w, level: level})
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// colorHandler writes "LEVEL message key=value ..." lines with the level
// word colored.
type colorHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

func (h *colorHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	buf := bytes.NewBuffer(nil)
	lvl := r.Level.String()
	if c := levelColors[r.Level]; c != nil {
		lvl = c.Sprint(lvl)
	}
	buf.WriteString(lvl)
	buf.WriteByte(' ')
	buf.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(buf, h.prefix, a)
		return true
	})
	buf.WriteByte('\n')
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func writeAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(prefix + a.Key)
	buf.WriteByte('=')
	buf.WriteString(a.Value.String())
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	res := *h
	res.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	res.attrs = append(res.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		res.attrs = append(res.attrs, a)
	}
	return &res
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	res := *h
	res.prefix = h.prefix + name + "."
	return &res
}
