package infra

import (
	"context"

	"admission-gateway/middleware/admission/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats expõe os eventos da admissão como métricas Prometheus.
//
// A chave do cliente nunca vira label (cardinalidade).
type PrometheusStats struct {
	events *prometheus.CounterVec
}

// NewPrometheusStats registra admission_events_total{event,path} em reg.
// queueDepth, se não for nil, é exposto como admission_queue_depth.
func NewPrometheusStats(reg prometheus.Registerer, queueDepth func() float64) (*PrometheusStats, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_events_total",
		Help: "Admission decisions and queued task outcomes.",
	}, []string{"event", "path"})
	if err := reg.Register(events); err != nil {
		return nil, err
	}

	if queueDepth != nil {
		depth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "admission_queue_depth",
			Help: "Tasks waiting in the admission queue.",
		}, queueDepth)
		if err := reg.Register(depth); err != nil {
			return nil, err
		}
	}

	return &PrometheusStats{events: events}, nil
}

func (s *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	s.events.WithLabelValues(ev.Event, ev.Path).Inc()
	return nil
}

// StatsFanout repassa cada evento para todos os stores. Devolve o primeiro erro,
// mas sempre tenta todos.
type StatsFanout []domain.StatsStore

func (f StatsFanout) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
