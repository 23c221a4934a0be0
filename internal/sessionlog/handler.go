// Package sessionlog captures warning-level log records for display in the
// UI, alongside the regular log output.
package sessionlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"
)

// Entry is a captured log record.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	// Source is the dot-separated slog group, or "".
	Source string `json:"source,omitempty"`
	// Attrs holds record and handler attributes as strings. Keys inside a
	// group are qualified with the group name.
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Attr returns the value of attribute key, or "".
func (e Entry) Attr(key string) string {
	return e.Attrs[key]
}

// EntryCallback is invoked for each record at or above the capture threshold.
type EntryCallback func(Entry)

// TeeHandler wraps a base [slog.Handler] and tees records at or above
// minLevel to a callback. All records are forwarded to the base handler
// regardless of level.
type TeeHandler struct {
	base     slog.Handler
	callback EntryCallback
	minLevel slog.Level
	group    string
	attrs    []slog.Attr // qualified with the group active when added
}

// NewTeeHandler creates a TeeHandler that delegates to base and invokes
// callback for every record whose level is >= minLevel. A nil callback only
// delegates.
func NewTeeHandler(base slog.Handler, minLevel slog.Level, callback EntryCallback) *TeeHandler {
	return &TeeHandler{
		base:     base,
		callback: callback,
		minLevel: minLevel,
	}
}

// Enabled defers to the base handler. A record the base would drop is
// not captured either.
func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle forwards the record to the base handler, then invokes the callback
// if the record's level meets minLevel. The callback runs even when the
// base handler fails.
func (h *TeeHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.base.Handle(ctx, record)

	if h.callback != nil && record.Level >= h.minLevel {
		entry := h.entry(record)
		func() {
			defer func() {
				if r := recover(); r != nil {
					// stderr, not slog: logging here would re-enter this handler.
					fmt.Fprintf(os.Stderr, "[session-log] callback panicked: %v\n%s\n", r, debug.Stack())
				}
			}()
			h.callback(entry)
		}()
	}

	return err
}

func (h *TeeHandler) entry(record slog.Record) Entry {
	entry := Entry{
		Time:    record.Time,
		Level:   record.Level.String(),
		Message: record.Message,
		Source:  h.group,
	}
	if len(h.attrs) == 0 && record.NumAttrs() == 0 {
		return entry
	}
	entry.Attrs = make(map[string]string, len(h.attrs)+record.NumAttrs())
	for _, a := range h.attrs {
		flattenAttr(entry.Attrs, "", a)
	}
	record.Attrs(func(a slog.Attr) bool {
		flattenAttr(entry.Attrs, h.group, a)
		return true
	})
	return entry
}

func flattenAttr(dst map[string]string, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			flattenAttr(dst, key, child)
		}
		return
	}
	dst[key] = a.Value.String()
}

// WithAttrs returns a TeeHandler whose base handler has attrs applied. The
// attributes are also carried into captured entries.
func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	carried := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	carried = append(carried, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a = slog.Attr{Key: h.group, Value: slog.GroupValue(a)}
		}
		carried = append(carried, a)
	}
	return &TeeHandler{
		base:     h.base.WithAttrs(attrs),
		callback: h.callback,
		minLevel: h.minLevel,
		group:    h.group,
		attrs:    carried,
	}
}

// WithGroup returns a TeeHandler whose base handler is wrapped with the
// given group name, appended to the accumulated group with ".".
func (h *TeeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroup := name
	if h.group != "" {
		newGroup = h.group + "." + name
	}

	return &TeeHandler{
		base:     h.base.WithGroup(name),
		callback: h.callback,
		minLevel: h.minLevel,
		group:    newGroup,
		attrs:    h.attrs,
	}
}
