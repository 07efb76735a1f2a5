package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"admission-gateway/middleware/admission/domain"
)

// AbuseConfig define o detector de rajadas. Os padrões pegam flood de script:
// mais de 2 requisições em 3s bloqueiam o cliente por 12h.
type AbuseConfig struct {
	Window    time.Duration
	Threshold int
	BlockFor  time.Duration
}

func DefaultAbuseConfig() AbuseConfig {
	return AbuseConfig{
		Window:    3 * time.Second,
		Threshold: 2,
		BlockFor:  12 * time.Hour,
	}
}

// AbuseDetector decide bloqueio/desbloqueio por cliente.
//
// A sequência checa-bloqueio -> registra -> conta -> bloqueia é atômica por chave.
type AbuseDetector struct {
	cfg    AbuseConfig
	window domain.WindowStore
	blocks domain.BlockList
	alerts domain.AlertSink
	logger *slog.Logger

	locks keyLocks
}

// NewAbuseDetector espera que window tenha sido criado com a mesma duração de cfg.Window.
func NewAbuseDetector(cfg AbuseConfig, window domain.WindowStore, blocks domain.BlockList, alerts domain.AlertSink, logger *slog.Logger) *AbuseDetector {
	def := DefaultAbuseConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.BlockFor <= 0 {
		cfg.BlockFor = def.BlockFor
	}
	if alerts == nil {
		alerts = domain.NopAlertSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AbuseDetector{
		cfg:    cfg,
		window: window,
		blocks: blocks,
		alerts: alerts,
		logger: logger,
	}
}

func (d *AbuseDetector) Config() AbuseConfig { return d.cfg }

// Check avalia uma requisição do cliente key no instante now.
func (d *AbuseDetector) Check(ctx context.Context, key domain.Key, now time.Time) (domain.Verdict, error) {
	v, err := d.check(ctx, key, now)
	if err != nil || !v.NewBlock {
		return v, err
	}

	rate := float64(v.Count) / d.cfg.Window.Seconds()
	d.logger.Warn("client blocked for abuse",
		"key", key, "count", v.Count, "rate", rate, "blocked_until", v.BlockedUntil)

	if err := d.alerts.Notify(ctx, domain.Alert{
		Kind:         domain.AlertAbuse,
		Key:          key,
		Message:      fmt.Sprintf("%d requests in %s", v.Count, d.cfg.Window),
		At:           now,
		Count:        v.Count,
		Rate:         rate,
		BlockedUntil: v.BlockedUntil,
		Fields:       map[string]string{"Block Duration": d.cfg.BlockFor.String()},
	}); err != nil {
		d.logger.Warn("abuse alert failed", "key", key, "err", err)
	}
	return v, nil
}

func (d *AbuseDetector) check(ctx context.Context, key domain.Key, now time.Time) (domain.Verdict, error) {
	unlock := d.locks.lock(key)
	defer unlock()

	until, blocked, err := d.blocks.BlockedUntil(ctx, key)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("read block: %w", err)
	}
	if blocked {
		if until.After(now) {
			return domain.Verdict{Outcome: domain.OutcomeBlocked, BlockedUntil: until}, nil
		}
		// bloqueio expirado: janela zerada, não decaimento gradual
		if err := d.blocks.Unblock(ctx, key); err != nil {
			return domain.Verdict{}, fmt.Errorf("remove expired block: %w", err)
		}
		if err := d.window.Reset(ctx, key); err != nil {
			return domain.Verdict{}, fmt.Errorf("reset window: %w", err)
		}
	}

	count, err := d.window.Record(ctx, key, now)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("record request: %w", err)
	}

	if count > d.cfg.Threshold {
		until := now.Add(d.cfg.BlockFor)
		if err := d.blocks.Block(ctx, key, until); err != nil {
			return domain.Verdict{}, fmt.Errorf("install block: %w", err)
		}
		return domain.Verdict{
			Outcome:      domain.OutcomeBlocked,
			Count:        count,
			BlockedUntil: until,
			NewBlock:     true,
		}, nil
	}

	return domain.Verdict{Outcome: domain.OutcomeAdmit, Count: count}, nil
}
