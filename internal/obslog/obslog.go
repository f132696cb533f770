// Package obslog wraps a slog.Handler to mask PII (phone numbers, emails)
// before a record reaches its backend, per the router's "no PII in logs"
// rule. The shipping/rotation backend itself is out of scope; this handler
// only composes in front of whichever one the process wires up.
package obslog

import (
	"context"
	"log/slog"
	"regexp"
)

var (
	phoneRe = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
)

// Mask redacts phone-like and email-like substrings from s.
func Mask(s string) string {
	s = phoneRe.ReplaceAllString(s, "[phone]")
	s = emailRe.ReplaceAllString(s, "[email]")
	return s
}

// MaskingHandler wraps another slog.Handler, masking the message and any
// string-valued attributes before delegating.
type MaskingHandler struct {
	next slog.Handler
}

// NewMaskingHandler wraps next so every record passing through it has PII
// masked first.
func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, Mask(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(maskAttr(a))
		return true
	})
	return h.next.Handle(ctx, masked)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		maskedAttrs[i] = maskAttr(a)
	}
	return &MaskingHandler{next: h.next.WithAttrs(maskedAttrs)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, Mask(a.Value.String()))
	}
	return a
}
