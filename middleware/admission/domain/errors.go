package domain

import "errors"

var (
	// ErrUnknownTask indica que o task_id nunca existiu (ou foi descartado).
	ErrUnknownTask = errors.New("unknown task")

	// ErrInvalidTransition indica uma tentativa de regredir ou pular estados da tarefa.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

func IsUnknownTask(err error) bool {
	return errors.Is(err, ErrUnknownTask)
}
