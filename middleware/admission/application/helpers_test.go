package application

import (
	"context"
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return t0.Add(time.Duration(seconds * float64(time.Second)))
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (s *recordingSink) Notify(_ context.Context, a domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *recordingSink) all() []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Alert(nil), s.alerts...)
}

func newDetector(sink domain.AlertSink) *AbuseDetector {
	cfg := DefaultAbuseConfig()
	return NewAbuseDetector(cfg, infra.NewMemoryWindowStore(cfg.Window), infra.NewMemoryBlockList(), sink, nil)
}

func newService(sink domain.AlertSink) (Service, *infra.MemoryTaskQueue) {
	q := infra.NewMemoryTaskQueue()
	return Service{
		Abuse:    newDetector(sink),
		Throttle: GlobalThrottle{Window: infra.NewMemoryWindowStore(60 * time.Second), Capacity: 7},
		Queue:    q,
	}, q
}
