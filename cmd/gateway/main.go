package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"admission-gateway/api"
	"admission-gateway/generation"
	"admission-gateway/middleware/admission"
	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
	"admission-gateway/middleware/admission/infra"
	"admission-gateway/upstream"
)

func main() {
	// .env é opcional; variáveis já exportadas têm precedência
	_ = godotenv.Load()

	cfg, err := readConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.logLevel)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// alertas: destino -> throttle por tipo+chave -> envio assíncrono
	var base domain.AlertSink = infra.LogSink{Logger: logger}
	if cfg.discordWebhook != "" {
		base = infra.NewDiscordSink(cfg.discordWebhook)
	}
	throttled := infra.NewAlertThrottle(base, cfg.alertRPS, cfg.alertBurst, infra.WithThrottleLogger(logger))
	throttled.StartJanitor(ctx)
	alerts := infra.NewAsyncSink(throttled, 5*time.Second, logger)

	queue := infra.NewMemoryTaskQueue()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promStats, err := infra.NewPrometheusStats(reg, func() float64 {
		n, _ := queue.Len(context.Background())
		return float64(n)
	})
	if err != nil {
		logger.Error("prometheus setup error", "err", err)
		os.Exit(1)
	}

	counters := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.statsTrackKeys))
	stats := infra.StatsFanout{promStats, counters}

	if cfg.statsRedisEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			logger.Error("redis stats ping error", "err", err)
			os.Exit(1)
		}

		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackKeys(cfg.statsTrackKeys),
		))
	}

	abuseCfg := application.AbuseConfig{
		Window:    cfg.abuseWindow,
		Threshold: cfg.abuseThreshold,
		BlockFor:  cfg.abuseBlock,
	}
	svc := application.Service{
		Abuse: application.NewAbuseDetector(abuseCfg,
			infra.NewMemoryWindowStore(cfg.abuseWindow), infra.NewMemoryBlockList(), alerts, logger),
		Throttle: application.GlobalThrottle{
			Window:   infra.NewMemoryWindowStore(cfg.globalWindow),
			Capacity: cfg.globalCapacity,
		},
		Queue: queue,
	}

	client := upstream.New(cfg.openAIKey,
		upstream.WithBaseURL(cfg.openAIBaseURL),
		upstream.WithModel(cfg.openAIModel),
		upstream.WithTimeout(cfg.upstreamTimeout),
	)
	gen := generation.Service{Completer: client}

	var pool domain.SlotPool
	if cfg.concurrencyMax > 0 {
		pool = infra.NewChanPool(cfg.concurrencyMax)
	}

	// o drenador espera vaga até o timeout da tarefa, sem o prazo curto dos handlers
	drainer := &application.Drainer{
		Queue:       queue,
		Worker:      generation.Worker{Service: gen, Slots: application.ConcurrencyService{Pool: pool}},
		Cadence:     cfg.drainCadence,
		TaskTimeout: cfg.taskTimeout,
		Alerts:      alerts,
		Stats:       stats,
		Logger:      logger.With("component", "drainer"),
	}

	h := api.NewRouter(api.Deps{
		Admission: admission.Options{
			Service:             svc,
			Stats:               stats,
			KeyHeader:           cfg.keyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			AddAdmissionHeaders: cfg.addHeaders,
			MaxQueuedBody:       cfg.maxQueuedBody,
			Logger:              logger,
		},
		Slots:      application.ConcurrencyService{Pool: pool, AcquireTimeout: cfg.concurrencyTimeout},
		Generation: gen,
		Alerts:     alerts,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Counters:   counters,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.upstreamTimeout + 15*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("gateway listening", "addr", cfg.listenAddr, "upstream", cfg.openAIBaseURL, "model", client.Model())
	logger.Info("abuse", "window", cfg.abuseWindow, "threshold", cfg.abuseThreshold, "block", cfg.abuseBlock,
		"keyHeader", cfg.keyHeader, "trustXFF", cfg.trustXFF)
	logger.Info("global", "window", cfg.globalWindow, "capacity", cfg.globalCapacity,
		"drainCadence", cfg.drainCadence, "taskTimeout", cfg.taskTimeout)
	logger.Info("alerts", "discord", cfg.discordWebhook != "", "rps", throttled.RPS(), "burst", throttled.Burst(),
		"cleanupEvery", throttled.CleanupEvery())
	logger.Info("stats", "redis", cfg.statsRedisEnabled, "redisAddr", cfg.statsRedisAddr, "bucket", cfg.statsBucket,
		"ttl", cfg.statsTTL, "trackKeys", cfg.statsTrackKeys)
	logger.Info("concurrency", "max", cfg.concurrencyMax, "acquireTimeout", cfg.concurrencyTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := drainer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
