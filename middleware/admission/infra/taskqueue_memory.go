package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/google/uuid"
)

// MemoryTaskQueue é o registro de tarefas + fila FIFO em memória, sob um único mutex.
//
// Tarefas terminadas ficam retidas pelo tempo de vida do processo.
type MemoryTaskQueue struct {
	mu    sync.Mutex
	tasks map[domain.TaskID]*domain.Task
	queue []domain.TaskID
	head  int

	newID func() domain.TaskID
}

var _ domain.TaskQueue = (*MemoryTaskQueue)(nil)

type TaskQueueOption func(*MemoryTaskQueue)

// WithIDGenerator troca o gerador de ids (padrão: UUID v4).
func WithIDGenerator(fn func() domain.TaskID) TaskQueueOption {
	return func(q *MemoryTaskQueue) { q.newID = fn }
}

func NewMemoryTaskQueue(opts ...TaskQueueOption) *MemoryTaskQueue {
	q := &MemoryTaskQueue{
		tasks: make(map[domain.TaskID]*domain.Task),
		newID: func() domain.TaskID { return domain.TaskID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *MemoryTaskQueue) Enqueue(_ context.Context, in domain.TaskInput, now time.Time) (domain.Task, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.newID()
	if _, dup := q.tasks[id]; dup {
		return domain.Task{}, 0, fmt.Errorf("duplicate task id %q", id)
	}

	t := &domain.Task{
		ID:        id,
		Status:    domain.TaskQueued,
		CreatedAt: now,
		Key:       in.Key,
		Method:    in.Method,
		Path:      in.Path,
		Body:      in.Body,
	}
	q.tasks[id] = t
	q.queue = append(q.queue, id)

	return *t, q.lenLocked(), nil
}

func (q *MemoryTaskQueue) Lookup(_ context.Context, id domain.TaskID) (domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrUnknownTask
	}
	return *t, nil
}

func (q *MemoryTaskQueue) Position(_ context.Context, id domain.TaskID) (int, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.tasks[id]; !ok {
		return 0, false, domain.ErrUnknownTask
	}
	for i, qid := range q.queue[q.head:] {
		if qid == id {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

func (q *MemoryTaskQueue) Dequeue(_ context.Context, now time.Time) (domain.Task, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head < len(q.queue) {
		id := q.queue[q.head]
		q.queue[q.head] = ""
		q.head++
		q.compactLocked()

		t, ok := q.tasks[id]
		if !ok || t.Status != domain.TaskQueued {
			// não deveria acontecer; a fila só recebe ids recém-criados
			continue
		}
		t.Status = domain.TaskProcessing
		t.StartedAt = now
		return *t, true, nil
	}
	return domain.Task{}, false, nil
}

func (q *MemoryTaskQueue) Complete(_ context.Context, id domain.TaskID, result json.RawMessage, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.transitionLocked(id, domain.TaskDone, now)
	if err != nil {
		return err
	}
	t.Result = result
	return nil
}

func (q *MemoryTaskQueue) Fail(_ context.Context, id domain.TaskID, reason string, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, err := q.transitionLocked(id, domain.TaskFailed, now)
	if err != nil {
		return err
	}
	t.Error = reason
	return nil
}

func (q *MemoryTaskQueue) Len(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked(), nil
}

func (q *MemoryTaskQueue) lenLocked() int { return len(q.queue) - q.head }

func (q *MemoryTaskQueue) compactLocked() {
	if q.head > 0 && q.head*2 >= len(q.queue) {
		n := copy(q.queue, q.queue[q.head:])
		q.queue = q.queue[:n]
		q.head = 0
	}
}

func (q *MemoryTaskQueue) transitionLocked(id domain.TaskID, to domain.TaskStatus, now time.Time) (*domain.Task, error) {
	t, ok := q.tasks[id]
	if !ok {
		return nil, domain.ErrUnknownTask
	}
	if !t.Status.CanTransition(to) {
		return nil, fmt.Errorf("task %s: %s -> %s: %w", id, t.Status, to, domain.ErrInvalidTransition)
	}
	t.Status = to
	t.FinishedAt = now
	return t, nil
}
