// Package privacylog keeps phone numbers and secrets out of log output.
package privacylog

import (
	"context"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

var (
	phoneKeys = map[string]struct{}{
		"from":      {},
		"to":        {},
		"phone":     {},
		"owner":     {},
		"sender":    {},
		"recipient": {},
	}
	sensitiveKeyParts = []string{"pin", "private", "secret", "password", "token", "auth"}
)

// SanitizingHandler masks phone attributes and redacts secret ones before
// passing records on.
type SanitizingHandler struct {
	next slog.Handler
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		clean = append(clean, SanitizeAttr(a))
	}
	return &SanitizingHandler{next: h.next.WithAttrs(clean)}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

// SanitizeAttr applies the masking rules to a single attribute.
func SanitizeAttr(attr slog.Attr) slog.Attr {
	key := strings.ToLower(strings.TrimSpace(attr.Key))
	switch {
	case isSensitiveKey(key):
		return slog.String(attr.Key, redactedValue)
	case isPhoneKey(key):
		return slog.String(attr.Key, MaskPhone(attr.Value.String()))
	case key == "body" || key == "text":
		return slog.String(attr.Key, MaskBody(attr.Value.String()))
	case attr.Value.Kind() == slog.KindGroup:
		group := attr.Value.Group()
		clean := make([]any, 0, len(group))
		for _, a := range group {
			clean = append(clean, SanitizeAttr(a))
		}
		return slog.Group(attr.Key, clean...)
	}
	return attr
}

// MaskPhone keeps a leading "+", the first two digits and the last four.
// "+917123456789" becomes "+91******6789".
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	prefix := ""
	if strings.HasPrefix(phone, "+") {
		prefix, phone = "+", phone[1:]
	}
	if len(phone) <= 6 {
		return prefix + strings.Repeat("*", len(phone))
	}
	return prefix + phone[:2] + strings.Repeat("*", len(phone)-6) + phone[len(phone)-4:]
}

// MaskBody hides the argument of PIN messages.
func MaskBody(body string) string {
	fields := strings.Fields(body)
	if len(fields) > 1 && strings.EqualFold(fields[0], "PIN") {
		return fields[0] + " " + redactedValue
	}
	return body
}

func isPhoneKey(key string) bool {
	_, ok := phoneKeys[key]
	return ok
}

func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
