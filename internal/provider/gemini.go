package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-pro"

// Gemini implements domain.Classifier with Gemini's generateContent API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	limiter *RateLimiter
	logger  *slog.Logger
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string // optional: proxy or test server
	Timeout    time.Duration
	Limiter    *RateLimiter // optional
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		limiter: cfg.Limiter,
		logger:  cfg.Logger,
	}, nil
}

// Ask sends prompt as a single user turn and returns the text of the first
// part of the first candidate, or "" when the reply has no such part.
func (g *Gemini) Ask(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("gemini rate limit: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := firstPartText(resp)
	if text == "" {
		g.logger.Debug("gemini reply without text part", "model", g.model)
	}
	return text, nil
}

func firstPartText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil || len(c.Content.Parts) == 0 || c.Content.Parts[0] == nil {
		return ""
	}
	return c.Content.Parts[0].Text
}
