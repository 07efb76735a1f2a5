package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão da admissão ou de ciclo de vida de tarefa.
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Key   Key
	Event string

	Method string
	Path   string

	At time.Time
}

// Eventos além dos Outcome (admitted, blocked, queued).
const (
	EventTaskDone   = "task_done"
	EventTaskFailed = "task_failed"
)

// StatsStore é a estratégia de persistência para estatísticas da admissão.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// O chamador deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
