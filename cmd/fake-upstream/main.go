// fake-upstream imita /v1/chat/completions para testar o gateway sem gastar
// tokens: OPENAI_BASE_URL=http://localhost:8081
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
)

const (
	cannedQuiz  = `{"questions":[{"question":"What is the smallest unit of an element?","correct_answers":["atom","an atom","atoms"],"wrong_response":"Incorrect. The smallest unit of an element is an atom."}]}`
	cannedNotes = `{"notes":"Study notes generated by fake-upstream."}`
)

type completionHandler struct {
	latency   time.Duration
	failEvery int64
	calls     atomic.Int64
	logger    *slog.Logger
}

func (h *completionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	n := h.calls.Add(1)
	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
		return
	}

	if h.latency > 0 {
		select {
		case <-time.After(h.latency):
		case <-r.Context().Done():
			return
		}
	}

	if h.failEvery > 0 && n%h.failEvery == 0 {
		h.logger.Info("simulated failure", "call", n)
		http.Error(w, `{"error":{"message":"simulated failure"}}`, http.StatusInternalServerError)
		return
	}

	content := cannedNotes
	if strings.Contains(req.Messages[0].Content, "Generate a quiz") {
		content = cannedQuiz
	}
	h.logger.Info("completion served", "call", n, "bytes", len(content))

	resp := map[string]any{
		"id":     "chatcmpl-fake-" + strconv.FormatInt(n, 10),
		"object": "chat.completion",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type CLI struct {
	Listen    string        `help:"Listen address." default:":8081" env:"LISTEN_ADDR"`
	Latency   time.Duration `help:"Delay before each completion." env:"FAKE_LATENCY"`
	FailEvery int64         `name:"fail-every" help:"Answer 500 on every Nth call (0 = never)." env:"FAKE_FAIL_EVERY"`
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("fake-upstream"),
		kong.Description("Fake OpenAI-compatible chat completions server."),
		kong.UsageOnError(),
	)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	h := &completionHandler{latency: cli.Latency, failEvery: cli.FailEvery, logger: logger}

	mux := http.NewServeMux()
	mux.Handle("/v1/chat/completions", h)

	srv := &http.Server{
		Addr:              cli.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("fake upstream listening", "addr", cli.Listen, "latency", cli.Latency, "failEvery", cli.FailEvery)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		kctx.FatalIfErrorf(err)
	}
}
