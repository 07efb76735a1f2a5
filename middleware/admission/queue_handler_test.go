package admission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pollTask(t *testing.T, h http.Handler, id string) (int, queueStatusResponse) {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "http://example/check_queue?task_id="+id, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var resp queueStatusResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func TestCheckQueueHandler_Lifecycle(t *testing.T) {
	q := infra.NewMemoryTaskQueue()
	svc := application.Service{Queue: q}
	h := CheckQueueHandler(svc, nil)
	ctx := context.Background()
	now := time.Now()

	first, _, err := q.Enqueue(ctx, domain.TaskInput{Path: "/generate_quiz"}, now)
	require.NoError(t, err)
	second, _, err := q.Enqueue(ctx, domain.TaskInput{Path: "/generate_quiz"}, now)
	require.NoError(t, err)

	code, resp := pollTask(t, h, string(second.ID))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, 2, resp.Position)

	_, _, err = q.Dequeue(ctx, now)
	require.NoError(t, err)

	code, resp = pollTask(t, h, string(second.ID))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, resp.Position, "position is live")

	code, resp = pollTask(t, h, string(first.ID))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "processing", resp.Status)
	assert.Zero(t, resp.Position)

	require.NoError(t, q.Complete(ctx, first.ID, json.RawMessage(`{"questions":[]}`), now))
	code, resp = pollTask(t, h, string(first.ID))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "done", resp.Status)
	assert.JSONEq(t, `{"questions":[]}`, string(resp.Result))

	_, _, err = q.Dequeue(ctx, now)
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, second.ID, application.FailureReasonTimeout, now))
	code, resp = pollTask(t, h, string(second.ID))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, application.FailureReasonTimeout, resp.Error)
	assert.Empty(t, resp.Result)
}

func TestCheckQueueHandler_UnknownTaskIs404(t *testing.T) {
	h := CheckQueueHandler(application.Service{Queue: infra.NewMemoryTaskQueue()}, nil)

	code, _ := pollTask(t, h, "does-not-exist")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCheckQueueHandler_MissingTaskIDIs400(t *testing.T) {
	h := CheckQueueHandler(application.Service{Queue: infra.NewMemoryTaskQueue()}, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/check_queue", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
