package domain

import (
	"context"
	"time"
)

type AlertKind string

const (
	AlertAbuse AlertKind = "abuse"
	AlertError AlertKind = "error"
)

// Alert é uma notificação para o canal de alertas (ex: webhook do Discord).
//
// Fields nunca deve carregar dados sensíveis da requisição; quem monta o alerta
// é responsável por redigir o contexto.
type Alert struct {
	Kind    AlertKind
	Key     Key
	Message string
	At      time.Time

	// Campos de abuso.
	Count        int
	Rate         float64
	BlockedUntil time.Time

	Fields map[string]string
}

// AlertSink entrega alertas. Falhas são best-effort: quem chama registra em log
// e nunca propaga para o cliente.
type AlertSink interface {
	Notify(ctx context.Context, a Alert) error
}

// NopAlertSink descarta alertas.
type NopAlertSink struct{}

func (NopAlertSink) Notify(context.Context, Alert) error { return nil }
