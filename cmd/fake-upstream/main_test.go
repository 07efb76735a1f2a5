package main

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission-gateway/generation"
	"admission-gateway/upstream"
)

func TestFakeUpstream_ServesGenerationContract(t *testing.T) {
	srv := httptest.NewServer(&completionHandler{logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	defer srv.Close()

	gen := generation.Service{Completer: upstream.New("sk-fake", upstream.WithBaseURL(srv.URL))}

	quiz, err := gen.Quiz(context.Background(), generation.QuizRequest{Topic: "atoms", Grade: 6, NumQuestions: 1})
	require.NoError(t, err)
	assert.Len(t, quiz.Questions, 1)

	notes, err := gen.Notes(context.Background(), generation.NotesRequest{Topic: "atoms", Grade: 6})
	require.NoError(t, err)
	assert.NotEmpty(t, notes.Notes)
}

func TestFakeUpstream_FailEvery(t *testing.T) {
	srv := httptest.NewServer(&completionHandler{failEvery: 2, logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	defer srv.Close()

	c := upstream.New("sk-fake", upstream.WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), "Create concise notes")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "Create concise notes")
	var se *upstream.StatusError
	assert.ErrorAs(t, err, &se)
}
