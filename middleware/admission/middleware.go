package admission

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"admission-gateway/middleware/admission/application"
	"admission-gateway/middleware/admission/domain"
)

const (
	blockedMessage     = "Too many requests. Your IP is temporarily blocked."
	queuedMessage      = "Added to queue."
	internalMessage    = "Internal server error."
	defaultMaxBodySize = 1 << 20
)

var errBodyTooLarge = errors.New("request body too large")

type KeyFunc func(r *http.Request) string

type Options struct {
	Service             application.Service
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	AddAdmissionHeaders bool

	// MaxQueuedBody limita o corpo guardado numa tarefa enfileirada.
	MaxQueuedBody int64
	// ExcludedPaths não passam pela admissão (ex: polling e métricas).
	ExcludedPaths []string

	Logger *slog.Logger
	Now    func() time.Time
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				ip, _, _ := strings.Cut(xff, ",")
				if ip = strings.TrimSpace(ip); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

type queuedResponse struct {
	Status   string `json:"status"`
	TaskID   string `json:"task_id"`
	Position int    `json:"position"`
	Message  string `json:"message"`
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.MaxQueuedBody <= 0 {
		opts.MaxQueuedBody = defaultMaxBodySize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	excluded := make(map[string]struct{}, len(opts.ExcludedPaths))
	for _, p := range opts.ExcludedPaths {
		excluded[p] = struct{}{}
	}

	newBlockMessage := "Too many requests in a short period. Your IP has been blocked."
	if opts.Service.Abuse != nil {
		newBlockMessage = fmt.Sprintf("Too many requests in a short period. Your IP has been blocked for %s.",
			humanDuration(opts.Service.Abuse.Config().BlockFor))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := excluded[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			key := opts.KeyFn(r)
			now := opts.Now()

			if opts.AddAdmissionHeaders {
				w.Header().Set("X-Admission-Key", key)
				if opts.Service.Throttle.Capacity > 0 {
					w.Header().Set("X-Admission-Capacity", formatInt(opts.Service.Throttle.Capacity))
				}
			}

			dec, err := opts.Service.Decide(r.Context(), application.Request{
				Key:      domain.Key(key),
				Method:   r.Method,
				Path:     r.URL.Path,
				ReadBody: func() ([]byte, error) { return readLimited(r.Body, opts.MaxQueuedBody) },
			}, now)
			if err != nil {
				switch {
				case errors.Is(err, errBodyTooLarge):
					WriteDetail(w, http.StatusRequestEntityTooLarge, "Request body too large.")
				case errors.Is(err, application.ErrBodyCapture):
					WriteDetail(w, http.StatusBadRequest, "Could not read request body.")
				default:
					opts.Logger.Error("admission failed", "key", key, "path", r.URL.Path, "err", err)
					WriteDetail(w, http.StatusInternalServerError, internalMessage)
				}
				return
			}

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:    domain.Key(key),
					Event:  dec.Outcome.String(),
					Method: r.Method,
					Path:   r.URL.Path,
					At:     now,
				})
			}

			switch dec.Outcome {
			case domain.OutcomeBlocked:
				w.Header().Set("Retry-After", retryAfterSeconds(dec.RetryAfter(now)))
				msg := blockedMessage
				if dec.NewBlock {
					msg = newBlockMessage
				}
				WriteDetail(w, http.StatusTooManyRequests, msg)

			case domain.OutcomeQueued:
				opts.Logger.Info("request queued",
					"key", key, "path", r.URL.Path, "task_id", dec.Task.ID, "position", dec.Position)
				WriteJSON(w, http.StatusTooManyRequests, queuedResponse{
					Status:   string(domain.TaskQueued),
					TaskID:   string(dec.Task.ID),
					Position: dec.Position,
					Message:  queuedMessage,
				})

			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func readLimited(body io.Reader, max int64) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	b, err := io.ReadAll(io.LimitReader(body, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, errBodyTooLarge
	}
	return b, nil
}
