package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission-gateway/generation"
	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
)

const quizOut = `{"questions":[{"question":"2+2?","correct_answers":["4","four","4.0"],"wrong_response":"Incorrect. It is 4."}]}`

type stubCompleter struct {
	out string
	err error
}

func (s stubCompleter) Complete(context.Context, string) (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.out), nil
}

type alertRecorder struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (r *alertRecorder) Notify(_ context.Context, a domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *alertRecorder) all() []domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Alert(nil), r.alerts...)
}

type fixture struct {
	router   http.Handler
	svc      application.Service
	queue    *infra.MemoryTaskQueue
	counters *infra.MemoryStatsStore
	alerts   *alertRecorder
	gen      generation.Service
	now      time.Time
}

func newFixture(t *testing.T, capacity int, c generation.Completer) *fixture {
	t.Helper()
	f := &fixture{
		queue:    infra.NewMemoryTaskQueue(),
		counters: infra.NewMemoryStatsStore(),
		alerts:   &alertRecorder{},
		gen:      generation.Service{Completer: c},
		now:      time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC),
	}
	cfg := application.DefaultAbuseConfig()
	f.svc = application.Service{
		Abuse: application.NewAbuseDetector(cfg,
			infra.NewMemoryWindowStore(cfg.Window), infra.NewMemoryBlockList(), f.alerts, nil),
		Throttle: application.GlobalThrottle{Window: infra.NewMemoryWindowStore(time.Minute), Capacity: capacity},
		Queue:    f.queue,
	}
	f.router = NewRouter(Deps{
		Admission: admission.Options{
			Service: f.svc,
			Stats:   f.counters,
			Now:     func() time.Time { return f.now },
		},
		Generation: f.gen,
		Alerts:     f.alerts,
		Counters:   f.counters,
	})
	return f
}

func (f *fixture) do(method, ip, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	r.RemoteAddr = ip + ":5555"
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["detail"]
}

func TestRouter_Healthz(t *testing.T) {
	f := newFixture(t, 7, stubCompleter{out: quizOut})
	w := f.do(http.MethodGet, "10.0.0.1", "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_GenerateQuiz(t *testing.T) {
	f := newFixture(t, 7, stubCompleter{out: quizOut})

	w := f.do(http.MethodPost, "10.0.0.1", "/generate_quiz", `{"topic":"math","grade":2,"num_questions":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, quizOut, w.Body.String())
}

func TestRouter_GenerateNotes(t *testing.T) {
	f := newFixture(t, 7, stubCompleter{out: `{"notes":"Fractions split a whole."}`})

	w := f.do(http.MethodPost, "10.0.0.1", "/generate_notes", `{"topic":"fractions","grade":4}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"notes":"Fractions split a whole."}`, w.Body.String())
}

func TestRouter_InvalidInputIs400WithoutAlert(t *testing.T) {
	f := newFixture(t, 7, stubCompleter{out: quizOut})

	w := f.do(http.MethodPost, "10.0.0.1", "/generate_quiz", `{"topic":"math","grade":2,"num_questions":21}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Number of questions must be between 1 and 20.", detail(t, w))

	w = f.do(http.MethodPost, "10.0.0.2", "/generate_notes", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, f.alerts.all())
}

func TestRouter_UpstreamFailureIsGeneric500WithRedactedAlert(t *testing.T) {
	f := newFixture(t, 7, stubCompleter{err: errors.New("connection reset")})

	w := f.do(http.MethodPost, "10.0.0.1", "/generate_notes", `{"topic":"secret homework","grade":9}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, failureMessage, detail(t, w))
	assert.NotContains(t, w.Body.String(), "connection reset")

	alerts := f.alerts.all()
	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, domain.AlertError, a.Kind)
	assert.Equal(t, "15", a.Fields["Topic length"])
	assert.Equal(t, "9", a.Fields["Grade"])
	assert.Equal(t, "/generate_notes", a.Fields["Path"])
	for _, v := range a.Fields {
		assert.NotContains(t, v, "secret homework")
	}
}

func TestRouter_PollingNeverCountsAsAbuse(t *testing.T) {
	f := newFixture(t, 7, stubCompleter{out: quizOut})

	for i := 0; i < 10; i++ {
		w := f.do(http.MethodGet, "10.0.0.1", "/check_queue?task_id=missing", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	w := f.do(http.MethodPost, "10.0.0.1", "/generate_quiz", `{"topic":"math","grade":2,"num_questions":1}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_OverflowIsQueuedAndDrained(t *testing.T) {
	f := newFixture(t, 1, stubCompleter{out: quizOut})
	body := `{"topic":"math","grade":2,"num_questions":1}`

	w := f.do(http.MethodPost, "10.0.0.1", "/generate_quiz", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "10.0.0.2", "/generate_quiz", body)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	var queued struct {
		Status   string `json:"status"`
		TaskID   string `json:"task_id"`
		Position int    `json:"position"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queued))
	assert.Equal(t, "queued", queued.Status)
	assert.Equal(t, 1, queued.Position)

	w = f.do(http.MethodGet, "10.0.0.2", "/check_queue?task_id="+queued.TaskID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"position":1`)

	d := &application.Drainer{
		Queue:  f.queue,
		Worker: generation.Worker{Service: f.gen},
		Now:    func() time.Time { return f.now },
	}
	task, ok := d.DrainOnce(context.Background())
	require.True(t, ok)
	assert.Equal(t, domain.TaskDone, task.Status)

	w = f.do(http.MethodGet, "10.0.0.2", "/check_queue?task_id="+queued.TaskID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "done", status.Status)
	assert.JSONEq(t, quizOut, string(status.Result))
}

func TestRouter_StatsCountsOutcomes(t *testing.T) {
	f := newFixture(t, 1, stubCompleter{out: quizOut})
	body := `{"topic":"math","grade":2,"num_questions":1}`
	f.do(http.MethodPost, "10.0.0.1", "/generate_quiz", body)
	f.do(http.MethodPost, "10.0.0.2", "/generate_quiz", body)

	w := f.do(http.MethodGet, "10.0.0.3", "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total["admitted"])
	assert.Equal(t, int64(1), resp.Total["queued"])
	assert.Equal(t, 1, resp.GlobalInFlight)
	assert.Equal(t, 1, resp.GlobalCapacity)
}

func TestRouter_QueuedInvalidInputReportsValidationError(t *testing.T) {
	f := newFixture(t, 1, stubCompleter{out: quizOut})

	w := f.do(http.MethodPost, "10.0.0.1", "/generate_quiz", `{"topic":"math","grade":2,"num_questions":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "10.0.0.2", "/generate_quiz", `{"topic":"atoms","grade":5,"num_questions":50}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	var queued struct {
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queued))

	d := &application.Drainer{
		Queue:  f.queue,
		Worker: generation.Worker{Service: f.gen},
		Alerts: f.alerts,
		Now:    func() time.Time { return f.now },
	}
	_, ok := d.DrainOnce(context.Background())
	require.True(t, ok)

	w = f.do(http.MethodGet, "10.0.0.2", "/check_queue?task_id="+queued.TaskID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "failed", status.Status)
	assert.Equal(t, "Number of questions must be between 1 and 20.", status.Error)
	assert.Empty(t, f.alerts.all())
}
