package admission

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
)

type queueStatusResponse struct {
	TaskID   string          `json:"task_id"`
	Status   string          `json:"status"`
	Position int             `json:"position,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// CheckQueueHandler atende GET /check_queue?task_id=...
//
// position é a posição atual na fila (não o snapshot do enfileiramento) e só
// aparece enquanto a tarefa está queued. O sinal confiável é status.
func CheckQueueHandler(svc application.Service, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.URL.Query().Get("task_id"))
		if id == "" {
			WriteDetail(w, http.StatusBadRequest, "task_id is required.")
			return
		}

		st, err := svc.Status(r.Context(), domain.TaskID(id))
		if err != nil {
			if domain.IsUnknownTask(err) {
				WriteDetail(w, http.StatusNotFound, "Task not found.")
				return
			}
			logger.Error("task lookup failed", "task_id", id, "err", err)
			WriteDetail(w, http.StatusInternalServerError, internalMessage)
			return
		}

		resp := queueStatusResponse{
			TaskID: string(st.Task.ID),
			Status: string(st.Task.Status),
		}
		switch st.Task.Status {
		case domain.TaskQueued:
			resp.Position = st.Position
		case domain.TaskDone:
			resp.Result = st.Task.Result
		case domain.TaskFailed:
			resp.Error = st.Task.Error
		}
		WriteJSON(w, http.StatusOK, resp)
	})
}
