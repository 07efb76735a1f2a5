package application

import (
	"context"
	"errors"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// ErrNoSlot indica que nenhuma vaga de upstream ficou livre dentro do prazo.
var ErrNoSlot = errors.New("no upstream slot available")

// ConcurrencyService concentra a regra de aquisição/liberação de vagas de
// chamada ao upstream com timeout, sem saber nada sobre HTTP.
//
// Handlers de geração e o drenador usam o mesmo pool.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
// - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
// - Se `AcquireTimeout > 0`, espera até o timeout.
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}

	if s.AcquireTimeout <= 0 {
		return s.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Pool.Acquire(acqCtx)
}

// Do executa fn ocupando uma vaga, liberando-a ao final.
func (s ConcurrencyService) Do(ctx context.Context, fn func(context.Context) error) error {
	release, ok := s.Acquire(ctx)
	if !ok {
		return ErrNoSlot
	}
	defer release()
	return fn(ctx)
}
