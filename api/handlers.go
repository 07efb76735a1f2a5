package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"admission-gateway/generation"
	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/domain"
)

const (
	failureMessage = "Unexpected error occurred. We've notified developers."
	maxBodyBytes   = 1 << 20
)

type handlers struct {
	gen    generation.Service
	alerts domain.AlertSink
	logger *slog.Logger
	now    func() time.Time
}

func (h *handlers) quiz(w http.ResponseWriter, r *http.Request) {
	var req generation.QuizRequest
	if !decode(w, r, &req) {
		return
	}

	quiz, err := h.gen.Quiz(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Quiz generation failed", err, req.Topic, req.Grade)
		return
	}
	admission.WriteJSON(w, http.StatusOK, quiz)
}

func (h *handlers) notes(w http.ResponseWriter, r *http.Request) {
	var req generation.NotesRequest
	if !decode(w, r, &req) {
		return
	}

	notes, err := h.gen.Notes(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Notes generation failed", err, req.Topic, req.Grade)
		return
	}
	admission.WriteJSON(w, http.StatusOK, notes)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		admission.WriteDetail(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return true
}

// fail responde 400 para entrada inválida e 500 genérico para o resto.
// O alerta leva só contexto redigido: o tópico nunca sai do processo.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, what string, err error, topic string, grade int) {
	var re *generation.RequestError
	if errors.As(err, &re) {
		admission.WriteDetail(w, http.StatusBadRequest, re.Message)
		return
	}

	h.logger.Error(what, "path", r.URL.Path, "err", err)

	now := time.Now()
	if h.now != nil {
		now = h.now()
	}
	if aerr := h.alerts.Notify(context.WithoutCancel(r.Context()), domain.Alert{
		Kind:    domain.AlertError,
		Message: what + ": " + err.Error(),
		At:      now,
		Fields: map[string]string{
			"Path":         r.URL.Path,
			"Method":       r.Method,
			"Topic length": strconv.Itoa(len(topic)),
			"Grade":        strconv.Itoa(grade),
		},
	}); aerr != nil {
		h.logger.Warn("error alert failed", "err", aerr)
	}

	admission.WriteDetail(w, http.StatusInternalServerError, failureMessage)
}
