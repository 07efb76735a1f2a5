package domain

import (
	"context"
	"encoding/json"
	"time"
)

type TaskID string

type TaskStatus string

const (
	TaskQueued     TaskStatus = "queued"
	TaskProcessing TaskStatus = "processing"
	TaskDone       TaskStatus = "done"
	TaskFailed     TaskStatus = "failed"
)

// Terminal indica se o status não admite mais transições.
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskFailed
}

// CanTransition aplica a máquina de estados monotônica:
// queued -> processing -> {done, failed}.
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	switch s {
	case TaskQueued:
		return to == TaskProcessing
	case TaskProcessing:
		return to == TaskDone || to == TaskFailed
	default:
		return false
	}
}

// TaskInput é o que a admissão captura da requisição que não pôde ser atendida agora.
type TaskInput struct {
	Key    Key
	Method string
	Path   string
	Body   []byte
}

// Task representa uma requisição adiada.
type Task struct {
	ID        TaskID
	Status    TaskStatus
	CreatedAt time.Time

	Key    Key
	Method string
	Path   string
	Body   []byte

	StartedAt  time.Time
	FinishedAt time.Time

	// Result é preenchido em TaskDone.
	Result json.RawMessage
	// Error é uma indicação segura para o cliente, preenchida em TaskFailed.
	Error string
}

// TaskQueue reúne o registro de tarefas e a fila de espera FIFO.
//
// Invariantes:
//   - todo id na fila tem uma Task com status queued;
//   - Dequeue remove da fila e marca processing no mesmo passo atômico;
//   - Complete/Fail só aceitam tarefas em processing.
type TaskQueue interface {
	// Enqueue cria a tarefa e devolve a posição (1-based) no momento do enfileiramento.
	Enqueue(ctx context.Context, in TaskInput, now time.Time) (Task, int, error)
	Lookup(ctx context.Context, id TaskID) (Task, error)
	// Position devolve a posição atual na fila; ok=false se a tarefa não está na fila.
	Position(ctx context.Context, id TaskID) (pos int, ok bool, err error)
	Dequeue(ctx context.Context, now time.Time) (task Task, ok bool, err error)
	Complete(ctx context.Context, id TaskID, result json.RawMessage, now time.Time) error
	Fail(ctx context.Context, id TaskID, reason string, now time.Time) error
	Len(ctx context.Context) (int, error)
}
