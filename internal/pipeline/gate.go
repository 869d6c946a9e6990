package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"shapebot/internal/domain"
	"shapebot/internal/metrics"
)

const (
	DefaultHistoryWindow = 10
	noSubject            = "nada detectado"

	subjectPrompt  = "Dois usuários estão conversando. Estas são as mensagens:\n%s\nDescreva o assunto diretamente."
	decisionPrompt = "Dois usuários estão falando sobre %s. Se for apropriado o bot interagir, diga apenas \"true\". Senão, diga \"false\"."
)

// HistorySource returns recent channel messages, newest first.
type HistorySource interface {
	RecentMessages(ctx context.Context, channelID string, limit int) ([]domain.IncomingMessage, error)
}

// Gate decides whether a passive trigger should be answered by asking the
// classifier what the channel is talking about and whether joining in fits.
type Gate struct {
	history    HistorySource
	classifier domain.Classifier
	window     int
	logger     *slog.Logger
}

type GateConfig struct {
	History    HistorySource
	Classifier domain.Classifier
	Window     int // default 10
	Logger     *slog.Logger
}

func NewGate(cfg GateConfig) *Gate {
	if cfg.Window <= 0 {
		cfg.Window = DefaultHistoryWindow
	}
	return &Gate{
		history:    cfg.History,
		classifier: cfg.Classifier,
		window:     cfg.Window,
		logger:     cfg.Logger,
	}
}

// Authorize runs the two classifier stages. On approval it returns the
// serialized recent history as the prompt that replaces the assembled one.
// Any failure is logged and treated as a veto.
func (g *Gate) Authorize(ctx context.Context, msg domain.IncomingMessage) (domain.Prompt, bool) {
	prompt, ok, err := g.authorize(ctx, msg)
	if err != nil {
		metrics.GateErrors.Inc()
		g.logger.Warn("relevance gate failed", "channel", msg.ChannelID, "err", err)
		return domain.Prompt{}, false
	}
	if !ok {
		metrics.GateVetoes.Inc()
	}
	return prompt, ok
}

func (g *Gate) authorize(ctx context.Context, msg domain.IncomingMessage) (domain.Prompt, bool, error) {
	recent, err := g.history.RecentMessages(ctx, msg.ChannelID, g.window)
	if err != nil {
		return domain.Prompt{}, false, fmt.Errorf("fetch history: %w", err)
	}
	serialized, err := SerializeHistory(Conversation(recent))
	if err != nil {
		return domain.Prompt{}, false, err
	}

	subject, err := g.classifier.Ask(ctx, fmt.Sprintf(subjectPrompt, serialized))
	if err != nil {
		return domain.Prompt{}, false, fmt.Errorf("subject stage: %w", err)
	}
	if subject == "" {
		subject = noSubject
	}

	answer, err := g.classifier.Ask(ctx, fmt.Sprintf(decisionPrompt, subject))
	if err != nil {
		return domain.Prompt{}, false, fmt.Errorf("decision stage: %w", err)
	}
	if strings.ToLower(strings.TrimSpace(answer)) != "true" {
		g.logger.Info("passive reply vetoed", "channel", msg.ChannelID, "subject", subject, "answer", answer)
		return domain.Prompt{}, false, nil
	}

	return domain.TextPrompt(serialized), true, nil
}

// Conversation turns a newest-first message window into chronological
// history, dropping messages written by bots.
func Conversation(recent []domain.IncomingMessage) []domain.HistoryMessage {
	out := make([]domain.HistoryMessage, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		if m.AuthorIsBot {
			continue
		}
		out = append(out, domain.HistoryMessage{User: m.Name(), Message: m.Content})
	}
	return out
}

// SerializeHistory renders history as a compact JSON array without HTML
// escaping.
func SerializeHistory(history []domain.HistoryMessage) (string, error) {
	if history == nil {
		history = []domain.HistoryMessage{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(history); err != nil {
		return "", fmt.Errorf("serialize history: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
