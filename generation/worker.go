package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
)

var _ application.ClientError = (*RequestError)(nil)

// Worker executa tarefas enfileiradas pela admissão. O corpo guardado na
// tarefa é decodificado como se a requisição original tivesse sido admitida.
type Worker struct {
	Service Service
	Slots   application.ConcurrencyService
}

func (w Worker) Process(ctx context.Context, t domain.Task) (json.RawMessage, error) {
	var out any
	err := w.Slots.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = w.run(ctx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (w Worker) run(ctx context.Context, t domain.Task) (any, error) {
	switch t.Path {
	case PathQuiz:
		var req QuizRequest
		if err := decodeBody(t.Body, &req); err != nil {
			return nil, err
		}
		return w.Service.Quiz(ctx, req)
	case PathNotes:
		var req NotesRequest
		if err := decodeBody(t.Body, &req); err != nil {
			return nil, err
		}
		return w.Service.Notes(ctx, req)
	default:
		return nil, fmt.Errorf("no handler for queued path %q", t.Path)
	}
}

func decodeBody(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(v); err != nil {
		return invalid("Invalid request body.")
	}
	return nil
}
