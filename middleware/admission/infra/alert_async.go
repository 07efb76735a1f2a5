package infra

import (
	"context"
	"log/slog"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// AsyncSink entrega alertas em background (fire-and-forget) com timeout.
// Erros de entrega são registrados em log e nunca chegam a quem notificou.
type AsyncSink struct {
	next    domain.AlertSink
	timeout time.Duration
	logger  *slog.Logger
}

var _ domain.AlertSink = (*AsyncSink)(nil)

func NewAsyncSink(next domain.AlertSink, timeout time.Duration, logger *slog.Logger) *AsyncSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncSink{next: next, timeout: timeout, logger: logger}
}

// Notify sempre retorna nil. O ctx do chamador é ignorado para que o alerta
// sobreviva ao fim da requisição que o disparou.
func (s *AsyncSink) Notify(_ context.Context, a domain.Alert) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.next.Notify(ctx, a); err != nil {
			s.logger.Warn("alert delivery failed", "kind", a.Kind, "key", a.Key, "err", err)
		}
	}()
	return nil
}
