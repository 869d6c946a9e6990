package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"shapebot/internal/domain"
	"shapebot/internal/metrics"

	"github.com/google/uuid"
)

const DefaultErrorReply = "❌ Erro ao consultar a IA."

var errEmptyReply = errors.New("reply is empty")

// Handler runs the response pipeline for one chat event at a time. It is
// safe for concurrent use.
type Handler struct {
	botID      string
	prefix     string
	template   string
	errorReply string
	trigger    *TriggerEvaluator
	gate       *Gate
	generator  domain.Generator
	dispatcher *Dispatcher
	platform   domain.ChatPlatform
	logger     *slog.Logger
}

type HandlerConfig struct {
	BotID               string
	CommandPrefix       string
	AttributionTemplate string
	ErrorReply          string
	Trigger             *TriggerEvaluator
	Gate                *Gate // nil disables passive replies
	Generator           domain.Generator
	Dispatcher          *Dispatcher
	Platform            domain.ChatPlatform
	Logger              *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.ErrorReply == "" {
		cfg.ErrorReply = DefaultErrorReply
	}
	if cfg.AttributionTemplate == "" {
		cfg.AttributionTemplate = DefaultAttributionTemplate
	}
	return &Handler{
		botID:      cfg.BotID,
		prefix:     cfg.CommandPrefix,
		template:   cfg.AttributionTemplate,
		errorReply: cfg.ErrorReply,
		trigger:    cfg.Trigger,
		gate:       cfg.Gate,
		generator:  cfg.Generator,
		dispatcher: cfg.Dispatcher,
		platform:   cfg.Platform,
		logger:     cfg.Logger,
	}
}

// Handle runs one invocation. Generation and directive failures are answered
// with the fixed error reply; a gate failure ends the invocation silently.
// Only trigger-evaluation and error-reply delivery failures are returned.
func (h *Handler) Handle(ctx context.Context, msg domain.IncomingMessage) error {
	metrics.MessagesSeen.Inc()

	decision, err := h.trigger.Evaluate(ctx, msg)
	if err != nil {
		return fmt.Errorf("evaluate trigger: %w", err)
	}
	if !decision.Fired() {
		return nil
	}
	if decision == domain.PassiveTrigger {
		metrics.PassiveTriggers.Inc()
	} else {
		metrics.ForcedTriggers.Inc()
	}

	log := h.logger.With(
		"invocation", uuid.NewString(),
		"guild", msg.GuildID,
		"channel", msg.ChannelID,
		"trigger", decision.String(),
	)
	log.Info("pipeline triggered", "author", msg.AuthorID, "content_len", len(msg.Content))

	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	media := ClassifyAttachments(msg.Attachments)
	text := CleanContent(msg.Content, h.botID, h.prefix)
	prompt := AssemblePrompt(text, media, msg.Name(), h.template)

	if decision == domain.PassiveTrigger {
		if h.gate == nil {
			return nil
		}
		history, ok := h.gate.Authorize(ctx, msg)
		if !ok {
			return nil
		}
		prompt = history
	}

	if err := h.platform.Typing(ctx, msg.ChannelID); err != nil {
		log.Debug("typing indicator failed", "err", err)
	}

	raw, err := h.generator.Generate(ctx, domain.GenerationRequest{
		Prompt:    prompt,
		UserID:    msg.AuthorID,
		ChannelID: msg.ChannelID,
	})
	if err != nil {
		log.Error("relay request failed", "err", err)
		return h.replyError(ctx, msg)
	}

	deliver := func(r domain.Reply) error {
		if r.IsEmpty() {
			return errEmptyReply
		}
		if err := h.platform.Reply(ctx, msg, r); err != nil {
			return fmt.Errorf("send reply: %w", err)
		}
		metrics.RepliesSent.Inc()
		return nil
	}
	if err := h.dispatcher.Dispatch(ctx, raw, msg.AuthorID, msg.ChannelID, deliver); err != nil {
		log.Error("reply dispatch failed", "err", err)
		return h.replyError(ctx, msg)
	}

	log.Info("pipeline done")
	return nil
}

func (h *Handler) replyError(ctx context.Context, msg domain.IncomingMessage) error {
	if err := h.platform.Reply(ctx, msg, domain.Reply{Content: h.errorReply}); err != nil {
		return fmt.Errorf("send error reply: %w", err)
	}
	return nil
}
