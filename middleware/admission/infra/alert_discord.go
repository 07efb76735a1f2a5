package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"admission-gateway/middleware/admission/domain"
)

const discordRed = 15158332

// DiscordSink publica alertas como embeds em um webhook do Discord.
type DiscordSink struct {
	webhookURL string
	client     *http.Client
}

var _ domain.AlertSink = (*DiscordSink)(nil)

type DiscordOption func(*DiscordSink)

func WithDiscordHTTPClient(c *http.Client) DiscordOption {
	return func(s *DiscordSink) { s.client = c }
}

func NewDiscordSink(webhookURL string, opts ...DiscordOption) *DiscordSink {
	s := &DiscordSink{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
}

type discordField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s *DiscordSink) Notify(ctx context.Context, a domain.Alert) error {
	body, err := json.Marshal(buildDiscordPayload(a))
	if err != nil {
		return fmt.Errorf("encode discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post discord webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("discord webhook returned %d", resp.StatusCode)
	}
	return nil
}

func buildDiscordPayload(a domain.Alert) discordPayload {
	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	stamp := at.UTC().Format("2006-01-02 15:04:05 UTC")

	var p discordPayload
	switch a.Kind {
	case domain.AlertAbuse:
		p.Username = "Admission Security"
		p.Embeds = []discordEmbed{{
			Title:       "🚨 DDoS Attack Detected!",
			Description: fmt.Sprintf("Client `%s` made **%d** requests in the abuse window and has been blocked.", a.Key, a.Count),
			Color:       discordRed,
			Fields: []discordField{
				{Name: "Timestamp (UTC)", Value: stamp},
				{Name: "Blocked Until (UTC)", Value: a.BlockedUntil.UTC().Format("2006-01-02 15:04:05 UTC")},
				{Name: "Requests Per Second", Value: strconv.FormatFloat(a.Rate, 'f', 2, 64) + " req/s"},
			},
		}}
	default:
		p.Username = "Admission Error Logger"
		p.Embeds = []discordEmbed{{
			Title:       "🚨 Unexpected Error Occurred!",
			Description: fmt.Sprintf("**Time:** %s\n**Error:** %s", stamp, a.Message),
			Color:       discordRed,
			Fields:      []discordField{},
		}}
	}

	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Embeds[0].Fields = append(p.Embeds[0].Fields, discordField{Name: k, Value: a.Fields[k]})
	}
	return p
}
