package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/icodeforyou/somenergia-go/database"
)

type LogAttrFormat string

const (
	LogAttrFormatText LogAttrFormat = "TEXT"
	LogAttrFormatJSON LogAttrFormat = "JSON"
)

type LogEntrySaver interface {
	SaveLogEntry(ctx context.Context, r database.LogEntryRow) error
}

// SQLiteHandler stores log records in the log table. Attributes added with
// WithAttrs are kept and written before the record's own.
type SQLiteHandler struct {
	db       LogEntrySaver
	minLevel slog.Level
	format   LogAttrFormat
	attrs    []slog.Attr
}

func NewSQLiteHandler(db LogEntrySaver, minLevel slog.Level, format LogAttrFormat) *SQLiteHandler {
	return &SQLiteHandler{db: db, minLevel: minLevel, format: format}
}

func (h *SQLiteHandler) each(r slog.Record, fn func(a slog.Attr)) {
	for _, a := range h.attrs {
		fn(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		fn(a)
		return true
	})
}

func (h *SQLiteHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.minLevel {
		return nil
	}

	attrsStr := ""
	if strings.EqualFold(string(h.format), "text") {
		var b strings.Builder
		h.each(r, func(a slog.Attr) {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(a.Key)
			b.WriteString("=")
			b.WriteString(strings.ReplaceAll(strings.ReplaceAll(a.Value.String(), "=", "\\="), ";", "\\;"))
		})
		attrsStr = b.String()
	} else {
		var attrs []map[string]string
		h.each(r, func(a slog.Attr) {
			attrs = append(attrs, map[string]string{a.Key: a.Value.String()})
		})
		if len(attrs) > 0 {
			jsonBytes, err := json.Marshal(attrs)
			if err != nil {
				attrsStr = fmt.Sprintf(`{"error": "%v"}`, err)
			} else {
				attrsStr = string(jsonBytes)
			}
		}
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return h.db.SaveLogEntry(ctx, database.LogEntryRow{
		Timestamp: ts,
		Level:     int(r.Level),
		Message:   r.Message,
		Attrs:     attrsStr,
	})
}

func (h *SQLiteHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = append(slices.Clip(h.attrs), attrs...)
	return &h2
}

func (h *SQLiteHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *SQLiteHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel
}
