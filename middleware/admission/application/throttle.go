package application

import (
	"context"
	"fmt"
	"time"

	"admission-gateway/middleware/admission/domain"
)

const globalKey domain.Key = "__global__"

// GlobalThrottle limita a vazão do processo inteiro: no máximo Capacity
// admissões dentro de qualquer janela do WindowStore (60s por padrão).
type GlobalThrottle struct {
	Window   domain.WindowStore
	Capacity int
}

// Admit devolve OutcomeAdmit (e registra now) ou OutcomeQueued quando a janela está cheia.
func (t GlobalThrottle) Admit(ctx context.Context, now time.Time) (domain.Verdict, error) {
	if t.Window == nil {
		return domain.Verdict{Outcome: domain.OutcomeAdmit}, nil
	}

	ok, count, err := t.Window.TryRecord(ctx, globalKey, now, t.Capacity)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("global window: %w", err)
	}
	if !ok {
		return domain.Verdict{Outcome: domain.OutcomeQueued, Count: count}, nil
	}
	return domain.Verdict{Outcome: domain.OutcomeAdmit, Count: count}, nil
}

// InFlight devolve quantas admissões ainda estão dentro da janela.
func (t GlobalThrottle) InFlight(ctx context.Context, now time.Time) (int, error) {
	if t.Window == nil {
		return 0, nil
	}
	return t.Window.Count(ctx, globalKey, now)
}
