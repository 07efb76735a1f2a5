package infra

import (
	"context"
	"log/slog"

	"admission-gateway/middleware/admission/domain"
)

// LogSink escreve alertas no logger. Usado quando nenhum webhook está configurado.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(ctx context.Context, a domain.Alert) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	attrs := []any{"kind", a.Kind, "key", a.Key, "message", a.Message}
	if a.Kind == domain.AlertAbuse {
		attrs = append(attrs, "count", a.Count, "rate", a.Rate, "blocked_until", a.BlockedUntil)
	}
	for k, v := range a.Fields {
		attrs = append(attrs, k, v)
	}
	l.WarnContext(ctx, "alert", attrs...)
	return nil
}
