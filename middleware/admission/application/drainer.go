package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// Worker executa a unidade de trabalho de uma tarefa drenada da fila.
type Worker interface {
	Process(ctx context.Context, t domain.Task) (json.RawMessage, error)
}

type WorkerFunc func(ctx context.Context, t domain.Task) (json.RawMessage, error)

func (f WorkerFunc) Process(ctx context.Context, t domain.Task) (json.RawMessage, error) {
	return f(ctx, t)
}

// Motivos de falha expostos ao cliente. Nunca carregam detalhe interno.
const (
	FailureReasonTimeout = "task timed out"
	FailureReasonError   = "task failed"
)

// ClientError é uma falha causada pela própria entrada da tarefa.
// ClientMessage é seguro para devolver ao cliente.
type ClientError interface {
	error
	ClientMessage() string
}

// failureReason escolhe o motivo exposto ao cliente. rejected=true quando a
// falha veio da entrada (ClientError) e não deve gerar alerta.
func failureReason(err error) (reason string, rejected bool) {
	var ce ClientError
	switch {
	case errors.As(err, &ce):
		return ce.ClientMessage(), true
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.Is(err, ErrNoSlot):
		return FailureReasonTimeout, false
	default:
		return FailureReasonError, false
	}
}

// Drainer retira uma tarefa da fila por tick e a leva até um estado terminal.
//
// A drenagem é serial: a profundidade da fila vezes Cadence estima a espera.
type Drainer struct {
	Queue       domain.TaskQueue
	Worker      Worker
	Cadence     time.Duration
	TaskTimeout time.Duration

	Alerts domain.AlertSink
	Stats  domain.StatsStore
	Logger *slog.Logger
	Now    func() time.Time
}

func (d *Drainer) defaults() {
	if d.Cadence <= 0 {
		d.Cadence = time.Second
	}
	if d.TaskTimeout <= 0 {
		d.TaskTimeout = 60 * time.Second
	}
	if d.Alerts == nil {
		d.Alerts = domain.NopAlertSink{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// Run bloqueia até ctx ser cancelado.
func (d *Drainer) Run(ctx context.Context) error {
	d.defaults()

	t := time.NewTicker(d.Cadence)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			d.DrainOnce(ctx)
		}
	}
}

// DrainOnce processa no máximo uma tarefa. ok=false quando a fila estava vazia.
func (d *Drainer) DrainOnce(ctx context.Context) (domain.Task, bool) {
	d.defaults()

	task, ok, err := d.Queue.Dequeue(ctx, d.Now())
	if err != nil {
		d.Logger.Error("dequeue failed", "err", err)
		return domain.Task{}, false
	}
	if !ok {
		return domain.Task{}, false
	}

	log := d.Logger.With("task_id", task.ID, "path", task.Path)
	log.Info("processing queued task", "waited", task.StartedAt.Sub(task.CreatedAt))

	result, err := d.process(ctx, task)

	// o estado terminal precisa ser gravado mesmo se ctx já foi cancelado
	finishCtx := context.WithoutCancel(ctx)
	if err != nil {
		reason, rejected := failureReason(err)
		if ferr := d.Queue.Fail(finishCtx, task.ID, reason, d.Now()); ferr != nil {
			log.Error("mark task failed", "err", ferr)
		}
		d.record(finishCtx, task, domain.EventTaskFailed)
		if rejected {
			// entrada inválida é problema do cliente, não dos desenvolvedores
			log.Info("queued task rejected", "reason", reason)
		} else {
			log.Error("queued task failed", "err", err)
			d.alert(finishCtx, task, err)
		}
		return d.lookup(finishCtx, task), true
	}

	if cerr := d.Queue.Complete(finishCtx, task.ID, result, d.Now()); cerr != nil {
		log.Error("mark task done", "err", cerr)
	}
	log.Info("queued task done")
	d.record(finishCtx, task, domain.EventTaskDone)
	return d.lookup(finishCtx, task), true
}

type workResult struct {
	res json.RawMessage
	err error
}

// process roda o worker com timeout. Se o worker ignorar o ctx, a tarefa
// falha mesmo assim quando o prazo estoura; a goroutine termina sozinha depois.
func (d *Drainer) process(ctx context.Context, task domain.Task) (json.RawMessage, error) {
	if d.Worker == nil {
		return nil, errors.New("no worker configured")
	}

	ctx, cancel := context.WithTimeout(ctx, d.TaskTimeout)
	defer cancel()

	done := make(chan workResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- workResult{err: fmt.Errorf("worker panic: %v", r)}
			}
		}()
		res, err := d.Worker.Process(ctx, task)
		done <- workResult{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Drainer) record(ctx context.Context, task domain.Task, event string) {
	if d.Stats == nil {
		return
	}
	_ = d.Stats.Record(ctx, domain.StatsEvent{
		Key:    task.Key,
		Event:  event,
		Method: task.Method,
		Path:   task.Path,
		At:     d.Now(),
	})
}

func (d *Drainer) alert(ctx context.Context, task domain.Task, cause error) {
	err := d.Alerts.Notify(ctx, domain.Alert{
		Kind:    domain.AlertError,
		Key:     task.Key,
		Message: fmt.Sprintf("queued task %s failed: %v", task.ID, cause),
		At:      d.Now(),
		Fields: map[string]string{
			"Task":   string(task.ID),
			"Method": task.Method,
			"Path":   task.Path,
		},
	})
	if err != nil {
		d.Logger.Warn("task failure alert failed", "task_id", task.ID, "err", err)
	}
}

func (d *Drainer) lookup(ctx context.Context, task domain.Task) domain.Task {
	if t, err := d.Queue.Lookup(ctx, task.ID); err == nil {
		return t
	}
	return task
}
