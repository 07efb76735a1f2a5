package domain

// Camada de domínio da admissão.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Key identifica um cliente (IP, API key, header configurado).
type Key string

// Outcome é o resultado de uma avaliação de admissão.
type Outcome int

const (
	// OutcomeAdmit libera a requisição para o handler.
	OutcomeAdmit Outcome = iota
	// OutcomeBlocked rejeita a requisição; o cliente está bloqueado.
	OutcomeBlocked
	// OutcomeQueued indica que a capacidade global acabou e a requisição virou tarefa.
	OutcomeQueued
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdmit:
		return "admitted"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeQueued:
		return "queued"
	default:
		return "unknown"
	}
}

// Verdict é a resposta do detector de abuso ou do throttle global.
type Verdict struct {
	Outcome Outcome

	// Count é o número de eventos na janela no momento da decisão.
	Count int

	// BlockedUntil só é preenchido quando Outcome == OutcomeBlocked.
	BlockedUntil time.Time
	// NewBlock indica que o bloqueio foi instalado nesta chamada.
	NewBlock bool
}

// Decision é a decisão final da admissão para uma requisição.
type Decision struct {
	Verdict

	// Task e Position só são preenchidos quando Outcome == OutcomeQueued.
	Task     Task
	Position int
}

// RetryAfter devolve quanto falta para o bloqueio expirar a partir de now.
// Retorna 0 se não há bloqueio ativo.
func (v Verdict) RetryAfter(now time.Time) time.Duration {
	if v.Outcome != OutcomeBlocked || v.BlockedUntil.IsZero() {
		return 0
	}
	if d := v.BlockedUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}
