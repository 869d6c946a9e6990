package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"shapebot/internal/domain"
	"shapebot/internal/metrics"

	"github.com/tidwall/gjson"
)

// maxRelayBody caps how much of a relay response is read.
const maxRelayBody = 4 << 20

// ErrNoResponse is returned when the relay answers without a string
// "response" field.
var ErrNoResponse = errors.New("relay reply has no response field")

// Relay implements domain.Generator against the generation backend. A call
// is attempted exactly once; failures are returned to the caller.
type Relay struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

type RelayConfig struct {
	URL     string
	Timeout time.Duration // default 30s
	Client  *http.Client  // optional, overrides Timeout
	Logger  *slog.Logger
}

func NewRelay(cfg RelayConfig) *Relay {
	client := cfg.Client
	if client == nil {
		client = SharedHTTPClient(cfg.Timeout)
	}
	return &Relay{
		url:    cfg.URL,
		client: client,
		logger: cfg.Logger,
	}
}

// Generate posts {prompt, user_id, channel_id} and returns the reply's
// "response" field verbatim.
func (r *Relay) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal relay request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new relay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	metrics.RelayRequests.Inc()
	start := time.Now()
	text, err := r.do(httpReq)
	metrics.RelayLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RelayFailures.Inc()
		return "", err
	}

	r.logger.Debug("relay replied",
		"channel", req.ChannelID,
		"latency", time.Since(start),
		"len", len(text),
	)
	return text, nil
}

func (r *Relay) do(httpReq *http.Request) (string, error) {
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayBody))
	if err != nil {
		return "", fmt.Errorf("read relay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("relay returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	field := gjson.GetBytes(data, "response")
	if !field.Exists() || field.Type != gjson.String {
		return "", ErrNoResponse
	}
	return field.String(), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
