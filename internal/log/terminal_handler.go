package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiDim    = "\033[2m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// TerminalHandler formats log records as single-line terminal output, with
// ANSI colour when enabled.
//
// Output format:
//
//	15:04:05.000 INF delivery acknowledged items=12
type TerminalHandler struct {
	writer  io.Writer
	level   slog.Leveler
	colored bool
	attrs   []slog.Attr
	groups  []string
	mu      *sync.Mutex
}

func newTerminalHandler(w io.Writer, level slog.Leveler, colored bool) *TerminalHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &TerminalHandler{
		writer:  w,
		level:   level,
		colored: colored,
		mu:      &sync.Mutex{},
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *TerminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// style wraps s in the given ANSI code when colour is on.
func (h *TerminalHandler) style(code, s string) string {
	if !h.colored {
		return s
	}
	return code + s + ansiReset
}

// Handle formats a log record and writes it as one line.
func (h *TerminalHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.Grow(256)

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(h.style(ansiDim, ts.Format("15:04:05.000")))
	buf.WriteByte(' ')

	color, label := levelStyle(r.Level)
	buf.WriteString(h.style(color, label))
	buf.WriteByte(' ')

	buf.WriteString(h.style(ansiBold, r.Message))

	for _, a := range h.attrs {
		h.appendAttr(&buf, a, h.groups)
	}

	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, a, h.groups)
		return true
	})

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// WithAttrs returns a new handler whose attributes consist of both the
// existing attributes and attrs.
func (h *TerminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(merged, h.attrs)
	merged = append(merged, attrs...)
	clone := *h
	clone.attrs = merged
	return &clone
}

// WithGroup returns a new handler with the given group name prepended to
// subsequent attribute keys.
func (h *TerminalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	extended := make([]string, len(h.groups)+1)
	copy(extended, h.groups)
	extended[len(h.groups)] = name
	clone := *h
	clone.groups = extended
	return &clone
}

func levelStyle(level slog.Level) (string, string) {
	switch {
	case level < slog.LevelInfo:
		return ansiCyan, "DBG"
	case level < slog.LevelWarn:
		return ansiGreen, "INF"
	case level < slog.LevelError:
		return ansiYellow, "WRN"
	default:
		return ansiRed, "ERR"
	}
}

func (h *TerminalHandler) appendAttr(buf *bytes.Buffer, a slog.Attr, groups []string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		var prefix []string
		if a.Key != "" {
			prefix = make([]string, len(groups)+1)
			copy(prefix, groups)
			prefix[len(groups)] = a.Key
		} else {
			prefix = groups
		}
		for _, ga := range attrs {
			h.appendAttr(buf, ga, prefix)
		}
		return
	}

	var key strings.Builder
	for _, g := range groups {
		key.WriteString(g)
		key.WriteByte('.')
	}
	key.WriteString(a.Key)
	key.WriteByte('=')

	buf.WriteByte(' ')
	buf.WriteString(h.style(ansiDim, key.String()))
	value := formatAttrValue(a.Value)
	if a.Key == "error" {
		value = h.style(ansiRed, value)
	}
	buf.WriteString(value)
}

func formatAttrValue(v slog.Value) string {
	if v.Kind() == slog.KindString {
		s := v.String()
		if strings.ContainsAny(s, " \t\n\"\\") {
			return fmt.Sprintf("%q", s)
		}
		return s
	}
	return v.String()
}
