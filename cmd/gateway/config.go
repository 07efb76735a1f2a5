package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type config struct {
	listenAddr    string
	logLevel      slog.Level
	keyHeader     string
	trustXFF      bool
	addHeaders    bool
	maxQueuedBody int64

	abuseWindow    time.Duration
	abuseThreshold int
	abuseBlock     time.Duration

	globalWindow   time.Duration
	globalCapacity int
	drainCadence   time.Duration
	taskTimeout    time.Duration

	openAIKey       string
	openAIBaseURL   string
	openAIModel     string
	upstreamTimeout time.Duration

	concurrencyMax     int
	concurrencyTimeout time.Duration

	discordWebhook string
	alertRPS       float64
	alertBurst     int

	statsRedisEnabled  bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsPrefix        string
	statsTTL           time.Duration
	statsBucket        string
	statsTrackKeys     bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8000")
	level, err := parseLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return config{}, err
	}
	cfg.logLevel = level
	cfg.keyHeader = os.Getenv("KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.addHeaders = getenvBoolDefault("ADD_ADMISSION_HEADERS", false)
	cfg.maxQueuedBody = int64(getenvIntDefault("MAX_QUEUED_BODY", 1<<20))

	cfg.abuseWindow = getenvDurationDefault("ABUSE_WINDOW", 3*time.Second)
	cfg.abuseThreshold = getenvIntDefault("ABUSE_THRESHOLD", 2)
	cfg.abuseBlock = getenvDurationDefault("ABUSE_BLOCK", 12*time.Hour)

	cfg.globalWindow = getenvDurationDefault("GLOBAL_WINDOW", 60*time.Second)
	cfg.globalCapacity = getenvIntDefault("GLOBAL_CAPACITY", 7)
	cfg.drainCadence = getenvDurationDefault("DRAIN_CADENCE", time.Second)
	cfg.taskTimeout = getenvDurationDefault("TASK_TIMEOUT", 60*time.Second)

	cfg.openAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.openAIBaseURL = getenvDefault("OPENAI_BASE_URL", "https://api.openai.com")
	cfg.openAIModel = getenvDefault("OPENAI_MODEL", "gpt-4o-mini-2024-07-18")
	cfg.upstreamTimeout = getenvDurationDefault("UPSTREAM_TIMEOUT", 45*time.Second)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 8)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 10*time.Second)

	cfg.discordWebhook = os.Getenv("DISCORD_WEBHOOK")
	cfg.alertRPS = getenvFloatDefault("ALERT_RPS", 0.2)
	cfg.alertBurst = getenvIntDefault("ALERT_BURST", 3)

	cfg.statsRedisEnabled = getenvBoolDefault("STATS_REDIS_ENABLED", false)
	cfg.statsRedisAddr = getenvDefault("STATS_REDIS_ADDR", "")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = getenvIntDefault("STATS_REDIS_DB", 0)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "admission:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackKeys = getenvBoolDefault("STATS_TRACK_KEYS", false)

	if strings.TrimSpace(cfg.openAIKey) == "" {
		return config{}, errors.New("OPENAI_API_KEY is required")
	}
	if cfg.statsRedisEnabled && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return config{}, errors.New("STATS_REDIS_ADDR is required when STATS_REDIS_ENABLED=true")
	}
	if cfg.abuseWindow <= 0 || cfg.globalWindow <= 0 {
		return config{}, errors.New("ABUSE_WINDOW and GLOBAL_WINDOW must be > 0")
	}
	if cfg.abuseThreshold < 1 {
		return config{}, errors.New("ABUSE_THRESHOLD must be >= 1")
	}
	if cfg.abuseBlock <= 0 {
		return config{}, errors.New("ABUSE_BLOCK must be > 0")
	}
	if cfg.globalCapacity < 1 {
		return config{}, errors.New("GLOBAL_CAPACITY must be >= 1")
	}
	if cfg.drainCadence <= 0 || cfg.taskTimeout <= 0 {
		return config{}, errors.New("DRAIN_CADENCE and TASK_TIMEOUT must be > 0")
	}
	if cfg.alertRPS <= 0 {
		return config{}, errors.New("ALERT_RPS must be > 0")
	}
	if cfg.alertBurst <= 0 {
		return config{}, errors.New("ALERT_BURST must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.maxQueuedBody <= 0 {
		return config{}, errors.New("MAX_QUEUED_BODY must be > 0")
	}
	return cfg, nil
}

func parseLevel(v string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", v)
	}
	return l, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
