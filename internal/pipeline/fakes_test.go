package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"shapebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedSampler struct {
	value float64
	calls int
}

func (s *fixedSampler) Float64() float64 {
	s.calls++
	return s.value
}

type fakeLookup struct {
	channels map[string]string
	err      error
}

func (f *fakeLookup) DedicatedChannel(_ context.Context, guildID string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	ch, ok := f.channels[guildID]
	return ch, ok, nil
}

// fakeGenerator answers from a queue of replies and records every request.
type fakeGenerator struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []domain.GenerationRequest
}

func (g *fakeGenerator) Generate(_ context.Context, req domain.GenerationRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "", nil
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r, nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type fakeClassifier struct {
	answers []string
	err     error
	prompts []string
}

func (c *fakeClassifier) Ask(_ context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	if len(c.answers) == 0 {
		return "", nil
	}
	a := c.answers[0]
	c.answers = c.answers[1:]
	return a, nil
}

type fakeTools struct {
	requests []domain.ToolRequest
	err      error
}

func (t *fakeTools) Execute(_ context.Context, req domain.ToolRequest) (domain.Reply, error) {
	t.requests = append(t.requests, req)
	if t.err != nil {
		return domain.Reply{}, t.err
	}
	return domain.Reply{Content: req.Tool + ":" + req.Input}, nil
}

type fakePlatform struct {
	mu      sync.Mutex
	replies []domain.Reply
	typing  int
	history []domain.IncomingMessage
	histErr error
	sendErr error
}

func (p *fakePlatform) Reply(_ context.Context, _ domain.IncomingMessage, r domain.Reply) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.replies = append(p.replies, r)
	return nil
}

func (p *fakePlatform) Typing(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typing++
	return nil
}

func (p *fakePlatform) RecentMessages(_ context.Context, _ string, limit int) ([]domain.IncomingMessage, error) {
	if p.histErr != nil {
		return nil, p.histErr
	}
	if limit < len(p.history) {
		return p.history[:limit], nil
	}
	return p.history, nil
}

func (p *fakePlatform) sent() []domain.Reply {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Reply(nil), p.replies...)
}
