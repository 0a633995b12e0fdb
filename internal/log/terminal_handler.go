package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ANSI codes for the interactive format.
const (
	reset  = "\033[0m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

// terminalHandler renders records as one coloured line per record:
//
//	15:04:05 INFO  scrape finished source=ebilet events=412
//
// Attributes attached via With are rendered once, up front, and reused
// verbatim for every record — the hot path only formats the record's own
// attributes. Groups become dotted key prefixes (db.rows=3).
type terminalHandler struct {
	w     io.Writer
	mu    *sync.Mutex
	level slog.Leveler

	// attached is the pre-rendered " key=value..." suffix from WithAttrs;
	// prefix is the accumulated group path ("db." after WithGroup("db")).
	attached string
	prefix   string
}

func newTerminalHandler(w io.Writer, opts *slog.HandlerOptions) *terminalHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &terminalHandler{
		w:     w,
		mu:    &sync.Mutex{},
		level: level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle renders and writes one record.
func (h *terminalHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.Grow(128 + len(h.attached))

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(dim + ts.Format("15:04:05") + reset + " ")
	b.WriteString(levelTag(r.Level) + " ")
	b.WriteString(r.Message)
	b.WriteString(h.attached)

	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs renders attrs now and appends them to the attached suffix.
func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.attached)
	for _, a := range attrs {
		writeAttr(&b, h.prefix, a)
	}

	clone := *h
	clone.attached = b.String()
	return &clone
}

// WithGroup extends the dotted key prefix for subsequent attributes.
func (h *terminalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return red + "ERROR" + reset
	case level >= slog.LevelWarn:
		return yellow + "WARN " + reset
	case level >= slog.LevelInfo:
		return green + "INFO " + reset
	default:
		return cyan + "DEBUG" + reset
	}
}

// writeAttr appends " prefix.key=value", recursing into groups. Empty
// attrs are dropped the way slog's built-in handlers drop them.
func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, inner, ga)
		}
		return
	}

	b.WriteString(" " + dim + prefix + a.Key + "=" + reset)

	val := a.Value.String()
	if a.Value.Kind() == slog.KindString && strings.ContainsAny(val, " \t\n\"\\") {
		val = fmt.Sprintf("%q", val)
	}
	b.WriteString(val)
}
