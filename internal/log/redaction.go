package log

import (
	"context"
	"log/slog"
	"strings"
)

// Redacted replaces the value of sensitive attributes.
const Redacted = "[REDACTED]"

// sensitiveKeys are matched as case-insensitive substrings of attribute keys.
var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"session",
	"key",
	"auth",
	"cred",
}

// safeKeys contain a sensitive substring but never carry secrets.
var safeKeys = map[string]struct{}{
	"auth_type":      {},
	"session_count":  {},
	"correlation_id": {},
}

// RedactingHandler is a slog.Handler that redacts sensitive information
// such as API keys, auth file content and session tokens.
type RedactingHandler struct {
	next slog.Handler
}

// NewRedactingHandler wraps next.
func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler. It redacts sensitive attributes before passing to the next handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted)}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

// IsSensitive reports whether values logged under key are redacted.
func IsSensitive(key string) bool {
	lower := strings.ToLower(key)
	if _, ok := safeKeys[lower]; ok {
		return false
	}
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func redactAttr(a slog.Attr) slog.Attr {
	// LogValuer types such as credentials redact themselves.
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		group := make([]any, len(attrs))
		for i, attr := range attrs {
			group[i] = redactAttr(attr)
		}
		return slog.Group(a.Key, group...)
	}

	if IsSensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}
