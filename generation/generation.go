// Package generation monta os prompts de quiz e notas, chama o upstream e
// valida o formato devolvido.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"admission-gateway/upstream"
)

const (
	PathQuiz  = "/generate_quiz"
	PathNotes = "/generate_notes"
)

var ErrInvalidRequest = errors.New("invalid request")

// RequestError carrega uma mensagem segura para devolver ao cliente.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() error { return ErrInvalidRequest }

// ClientMessage faz a tarefa enfileirada falhar com a mesma mensagem do 400.
func (e *RequestError) ClientMessage() string { return e.Message }

func invalid(msg string) error { return &RequestError{Message: msg} }

// Completer é o que o serviço precisa do upstream.
type Completer interface {
	Complete(ctx context.Context, prompt string) (json.RawMessage, error)
}

type QuizRequest struct {
	Topic        string `json:"topic"`
	Grade        int    `json:"grade"`
	NumQuestions int    `json:"num_questions"`
}

func (r QuizRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return invalid("Topic must not be empty.")
	}
	if r.Grade < 1 || r.Grade > 12 {
		return invalid("Grade must be between 1 and 12.")
	}
	if r.NumQuestions < 1 || r.NumQuestions > 20 {
		return invalid("Number of questions must be between 1 and 20.")
	}
	return nil
}

type NotesRequest struct {
	Topic string `json:"topic"`
	Grade int    `json:"grade"`
}

func (r NotesRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return invalid("Topic must not be empty.")
	}
	if r.Grade < 1 || r.Grade > 12 {
		return invalid("Grade must be between 1 and 12.")
	}
	return nil
}

type Question struct {
	Question       string   `json:"question"`
	CorrectAnswers []string `json:"correct_answers"`
	WrongResponse  string   `json:"wrong_response"`
}

type Quiz struct {
	Questions []Question `json:"questions"`
}

// Notes preserva o valor de "notes" como veio: string ou objeto.
type Notes struct {
	Notes json.RawMessage `json:"notes"`
}

type Service struct {
	Completer Completer
}

func (s Service) Quiz(ctx context.Context, req QuizRequest) (Quiz, error) {
	if err := req.Validate(); err != nil {
		return Quiz{}, err
	}

	raw, err := s.Completer.Complete(ctx, quizPrompt(req))
	if err != nil {
		return Quiz{}, fmt.Errorf("quiz generation: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Quiz{}, fmt.Errorf("%w: %v", upstream.ErrMalformedResponse, err)
	}
	qs, ok := probe["questions"]
	if !ok || !isJSONArray(qs) {
		return Quiz{}, fmt.Errorf("%w: missing or incorrect 'questions' key", upstream.ErrMalformedResponse)
	}

	var quiz Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return Quiz{}, fmt.Errorf("%w: %v", upstream.ErrMalformedResponse, err)
	}
	if quiz.Questions == nil {
		quiz.Questions = []Question{}
	}
	return quiz, nil
}

func (s Service) Notes(ctx context.Context, req NotesRequest) (Notes, error) {
	if err := req.Validate(); err != nil {
		return Notes{}, err
	}

	raw, err := s.Completer.Complete(ctx, notesPrompt(req))
	if err != nil {
		return Notes{}, fmt.Errorf("notes generation: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Notes{}, fmt.Errorf("%w: %v", upstream.ErrMalformedResponse, err)
	}
	n, ok := probe["notes"]
	if !ok || string(n) == "null" {
		return Notes{}, fmt.Errorf("%w: missing 'notes' key", upstream.ErrMalformedResponse)
	}
	return Notes{Notes: n}, nil
}

func isJSONArray(b json.RawMessage) bool {
	s := strings.TrimSpace(string(b))
	return strings.HasPrefix(s, "[")
}
