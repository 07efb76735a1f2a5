package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// Request é o que a admissão precisa saber sobre uma requisição.
//
// ReadBody só é chamado quando a requisição vai para a fila.
type Request struct {
	Key      domain.Key
	Method   string
	Path     string
	ReadBody func() ([]byte, error)
}

// Service concentra a ordem da admissão:
//
//  1. detector de abuso (bloqueio é definitivo, nunca enfileira)
//  2. throttle global (admite se houver capacidade)
//  3. fila de espera (excesso vira tarefa)
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Abuse    *AbuseDetector
	Throttle GlobalThrottle
	Queue    domain.TaskQueue
}

func (s Service) Decide(ctx context.Context, req Request, now time.Time) (domain.Decision, error) {
	if s.Abuse != nil {
		v, err := s.Abuse.Check(ctx, req.Key, now)
		if err != nil {
			return domain.Decision{}, fmt.Errorf("abuse check: %w", err)
		}
		if v.Outcome == domain.OutcomeBlocked {
			return domain.Decision{Verdict: v}, nil
		}
	}

	v, err := s.Throttle.Admit(ctx, now)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("global throttle: %w", err)
	}
	if v.Outcome == domain.OutcomeAdmit || s.Queue == nil {
		return domain.Decision{Verdict: domain.Verdict{Outcome: domain.OutcomeAdmit, Count: v.Count}}, nil
	}

	in := domain.TaskInput{Key: req.Key, Method: req.Method, Path: req.Path}
	if req.ReadBody != nil {
		body, err := req.ReadBody()
		if err != nil {
			return domain.Decision{}, errors.Join(ErrBodyCapture, err)
		}
		in.Body = body
	}

	task, pos, err := s.Queue.Enqueue(ctx, in, now)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("enqueue: %w", err)
	}
	return domain.Decision{Verdict: v, Task: task, Position: pos}, nil
}

// ErrBodyCapture indica que o corpo da requisição não pôde ser guardado na tarefa.
var ErrBodyCapture = errors.New("capture request body")

// TaskStatus é a visão de uma tarefa para quem faz polling.
type TaskStatus struct {
	Task domain.Task
	// Position é a posição atual na fila (0 quando a tarefa já saiu da fila).
	Position int
}

// Status consulta uma tarefa. Retorna domain.ErrUnknownTask se o id não existe.
func (s Service) Status(ctx context.Context, id domain.TaskID) (TaskStatus, error) {
	if s.Queue == nil {
		return TaskStatus{}, domain.ErrUnknownTask
	}
	task, err := s.Queue.Lookup(ctx, id)
	if err != nil {
		return TaskStatus{}, err
	}
	st := TaskStatus{Task: task}
	if task.Status == domain.TaskQueued {
		pos, ok, err := s.Queue.Position(ctx, id)
		if err != nil {
			return TaskStatus{}, err
		}
		if ok {
			st.Position = pos
		}
	}
	return st, nil
}
