// Package api monta o router HTTP: admissão na frente de tudo, limite de
// concorrência nas rotas que chamam o upstream.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"admission-gateway/generation"
	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
)

const (
	PathCheckQueue = "/check_queue"
	PathMetrics    = "/metrics"
	PathHealth     = "/healthz"
	PathStats      = "/stats"
)

// ExcludedPaths nunca passam pela admissão.
var ExcludedPaths = []string{PathCheckQueue, PathMetrics, PathHealth, PathStats}

type Deps struct {
	Admission  admission.Options
	Slots      application.ConcurrencyService
	Generation generation.Service
	Alerts     domain.AlertSink

	// Metrics é servido em /metrics quando não-nil (promhttp).
	Metrics http.Handler
	// Counters é servido em /stats quando não-nil.
	Counters *infra.MemoryStatsStore

	Logger *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Alerts == nil {
		d.Alerts = domain.NopAlertSink{}
	}
	if d.Admission.Logger == nil {
		d.Admission.Logger = d.Logger
	}
	d.Admission.ExcludedPaths = append(d.Admission.ExcludedPaths, ExcludedPaths...)

	h := &handlers{gen: d.Generation, alerts: d.Alerts, logger: d.Logger, now: d.Admission.Now}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(admission.Middleware(d.Admission))

	r.Get(PathHealth, func(w http.ResponseWriter, _ *http.Request) {
		admission.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, PathCheckQueue, admission.CheckQueueHandler(d.Admission.Service, d.Logger))
	if d.Metrics != nil {
		r.Method(http.MethodGet, PathMetrics, d.Metrics)
	}
	if d.Counters != nil {
		r.Get(PathStats, statsHandler(d.Counters, d.Admission.Service.Throttle, d.Admission.Now, d.Logger))
	}

	r.Group(func(r chi.Router) {
		r.Use(admission.ConcurrencyMiddleware(d.Slots))
		r.Post(generation.PathQuiz, h.quiz)
		r.Post(generation.PathNotes, h.notes)
	})

	return r
}

type statsResponse struct {
	Total   infra.Counters            `json:"total"`
	ByRoute map[string]infra.Counters `json:"by_route"`
	ByKey   map[string]infra.Counters `json:"by_key,omitempty"`

	// admissões ainda dentro da janela global
	GlobalInFlight int `json:"global_in_flight"`
	GlobalCapacity int `json:"global_capacity"`
}

func statsHandler(s *infra.MemoryStatsStore, throttle application.GlobalThrottle, now func() time.Time, logger *slog.Logger) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		inFlight, err := throttle.InFlight(r.Context(), now())
		if err != nil {
			logger.Warn("global in-flight lookup failed", "err", err)
		}
		admission.WriteJSON(w, http.StatusOK, statsResponse{
			Total:          s.Total(),
			ByRoute:        s.ByRoute(),
			ByKey:          s.ByKey(),
			GlobalInFlight: inFlight,
			GlobalCapacity: throttle.Capacity,
		})
	}
}
