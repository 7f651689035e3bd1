// Package mlog provides the session's structured logging: a console handler
// for normal operation plus an optional second handler writing the
// diagnostic "<outputPath>.nvenc_log.txt" sidecar, fanned out through a
// single slog.Handler so callers never see the difference.
package mlog

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/phsym/console-slog"
)

// TraceLevel is one step below slog.LevelDebug, matching the verbosity the
// per-frame NVENC slot bookkeeping logs at.
const TraceLevel = slog.Level(-8)

// ParseLevel accepts the standard slog level names plus "trace".
func ParseLevel(level string) slog.Level {
	var lv slog.LevelVar
	if level == "trace" {
		lv.Set(TraceLevel)
	} else if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv.Set(slog.LevelInfo)
	}
	return lv.Level()
}

// MultiHandler fans a record out to every attached handler. Handlers may be
// added and removed at runtime, e.g. to attach the diagnostic log file only
// once the output path is known.
type MultiHandler struct {
	handlers     []slog.Handler
	attrChildren map[*MultiHandler][]slog.Attr
	parentLevel  *slog.Level
	level        *slog.Level
}

var _ slog.Handler = (*MultiHandler)(nil)

// NewConsole builds the default handler: phsym/console-slog writing to
// stderr with a millisecond timestamp.
func NewConsole(level slog.Level) slog.Handler {
	return console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    !isTerminal(os.Stderr),
	})
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func (m *MultiHandler) Add(h slog.Handler) {
	m.handlers = append(m.handlers, h)
	for child, attrs := range m.attrChildren {
		child.Add(h.WithAttrs(attrs))
	}
}

func (m *MultiHandler) Remove(h slog.Handler) {
	if i := slices.Index(m.handlers, h); i != -1 {
		m.handlers = slices.Delete(m.handlers, i, i+1)
	}
}

func (m *MultiHandler) SetLevel(level slog.Level) {
	if m.level == nil {
		m.level = &level
	} else {
		*m.level = level
	}
}

func (m *MultiHandler) Enabled(_ context.Context, l slog.Level) bool {
	if m.level != nil {
		return l >= *m.level
	}
	if m.parentLevel != nil {
		return l >= *m.parentLevel
	}
	return true
}

func (m *MultiHandler) Handle(ctx context.Context, rec slog.Record) error {
	for _, h := range m.handlers {
		if err := h.Handle(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	result := &MultiHandler{
		handlers:    make([]slog.Handler, len(m.handlers)),
		parentLevel: m.parentLevel,
	}
	if m.attrChildren == nil {
		m.attrChildren = make(map[*MultiHandler][]slog.Attr)
	}
	m.attrChildren[result] = attrs
	if m.level != nil {
		result.parentLevel = m.level
	}
	for i, h := range m.handlers {
		result.handlers[i] = h.WithAttrs(attrs)
	}
	return result
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	result := &MultiHandler{
		handlers:    make([]slog.Handler, len(m.handlers)),
		parentLevel: m.parentLevel,
	}
	if m.level != nil {
		result.parentLevel = m.level
	}
	for i, h := range m.handlers {
		result.handlers[i] = h.WithGroup(name)
	}
	return result
}

// DiagnosticFileHandler opens the append-mode UTF-8 sidecar log named by
// spec for the session's output path and returns a plain text slog.Handler
// over it, plus the *os.File so the Controller can close it on destroy.
func DiagnosticFileHandler(outputPath string, level slog.Level) (slog.Handler, *os.File, error) {
	f, err := os.OpenFile(outputPath+".nvenc_log.txt", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceTime})
	return h, f, nil
}

func replaceTime(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
	}
	return a
}
