package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shapebot/internal/domain"
	"shapebot/internal/metrics"
)

const deepthinkPrompt = "<raciocínio>: O usuário deseja: %s. O que você acha que deve ser feito?"

// ToolRunner executes a named tool.
type ToolRunner interface {
	Execute(ctx context.Context, req domain.ToolRequest) (domain.Reply, error)
}

// DeliverFunc sends one reply. The dispatcher calls it in delivery order.
type DeliverFunc func(domain.Reply) error

// Dispatcher interprets directive markers in a backend reply.
type Dispatcher struct {
	generator domain.Generator
	tools     ToolRunner
	logger    *slog.Logger
}

func NewDispatcher(generator domain.Generator, tools ToolRunner, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{generator: generator, tools: tools, logger: logger}
}

// Dispatch folds over the directives of raw, kind by kind (deepthink,
// imageGenerate, codeSimple) and left to right within a kind. Every kind is
// scanned on raw itself, so captures never depend on a deepthink rewrite.
//
// deepthink re-queries the generator and replaces the working text.
// imageGenerate and codeSimple each deliver their tool result immediately, so
// a reply carrying several of them produces several deliveries. When no tool
// delivered anything, the working text is delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, raw, userID, channelID string, deliver DeliverFunc) error {
	working := raw
	delivered := 0

	for _, kind := range domain.DirectiveKinds {
		for _, dir := range ScanKind(raw, kind) {
			metrics.Directives(string(kind)).Inc()
			d.logger.Debug("directive", "kind", kind, "param", dir.Param, "payload_len", len(dir.Payload))

			switch kind {
			case domain.DirectiveDeepthink:
				text, err := d.generator.Generate(ctx, domain.GenerationRequest{
					Prompt:    domain.TextPrompt(fmt.Sprintf(deepthinkPrompt, dir.Payload)),
					UserID:    userID,
					ChannelID: channelID,
				})
				if err != nil {
					return fmt.Errorf("deepthink: %w", err)
				}
				working = text

			case domain.DirectiveImageGenerate:
				if err := d.runTool(ctx, domain.ToolRequest{
					Tool:      domain.ToolImage,
					Input:     dir.Payload,
					UserID:    userID,
					ChannelID: channelID,
				}, deliver); err != nil {
					return err
				}
				delivered++

			case domain.DirectiveCodeSimple:
				if err := d.runTool(ctx, domain.ToolRequest{
					Tool:      domain.ToolCode,
					Input:     dir.Payload,
					Extension: dir.Param,
					UserID:    userID,
					ChannelID: channelID,
				}, deliver); err != nil {
					return err
				}
				delivered++
			}
		}
	}

	if delivered > 0 {
		return nil
	}
	return deliver(domain.Reply{Content: working})
}

func (d *Dispatcher) runTool(ctx context.Context, req domain.ToolRequest, deliver DeliverFunc) error {
	start := time.Now()
	reply, err := d.tools.Execute(ctx, req)
	metrics.ToolLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("tool %s: %w", req.Tool, err)
	}
	return deliver(reply)
}
