package infra

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"admission-gateway/middleware/admission/domain"

	"golang.org/x/time/rate"
)

// AlertThrottle limita a taxa de alertas entregues ao sink interno usando um
// token bucket (x/time/rate) por (tipo, chave), com cache e limpeza periódica.
//
// Alertas acima da taxa são descartados (e registrados em log em nível debug).
type AlertThrottle struct {
	next   domain.AlertSink
	logger *slog.Logger

	mu           sync.Mutex
	entries      map[string]*throttleEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

var _ domain.AlertSink = (*AlertThrottle)(nil)

type throttleEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type AlertThrottleOption func(*AlertThrottle)

func WithIdleTTL(d time.Duration) AlertThrottleOption {
	return func(s *AlertThrottle) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) AlertThrottleOption {
	return func(s *AlertThrottle) { s.cleanupEvery = d }
}

func WithThrottleLogger(l *slog.Logger) AlertThrottleOption {
	return func(s *AlertThrottle) { s.logger = l }
}

func NewAlertThrottle(next domain.AlertSink, rps float64, burst int, opts ...AlertThrottleOption) *AlertThrottle {
	s := &AlertThrottle{
		next:         next,
		logger:       slog.Default(),
		entries:      make(map[string]*throttleEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AlertThrottle) RPS() float64 {
	return float64(s.rps)
}

func (s *AlertThrottle) Burst() int {
	return s.burst
}

func (s *AlertThrottle) CleanupEvery() time.Duration {
	return s.cleanupEvery
}

func (s *AlertThrottle) Notify(ctx context.Context, a domain.Alert) error {
	if !s.limiter(string(a.Kind) + "|" + string(a.Key)).Allow() {
		s.logger.Debug("alert suppressed by throttle", "kind", a.Kind, "key", a.Key)
		return nil
	}
	return s.next.Notify(ctx, a)
}

func (s *AlertThrottle) limiter(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &throttleEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *AlertThrottle) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa buckets inativos periodicamente.
// Pare cancelando o contexto.
func (s *AlertThrottle) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

func (s *AlertThrottle) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
