package pipeline

import (
	"context"
	"log/slog"

	"shapebot/internal/domain"

	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 5

// MessageHandler processes one chat event.
type MessageHandler interface {
	Handle(ctx context.Context, msg domain.IncomingMessage) error
}

// Loop consumes chat events from the bus and runs each one as an independent
// invocation, with bounded concurrency and no ordering across events.
type Loop struct {
	bus         domain.MessageBus
	handler     MessageHandler
	concurrency int
	logger      *slog.Logger
}

type LoopConfig struct {
	Bus         domain.MessageBus
	Handler     MessageHandler
	Concurrency int // default 5
	Logger      *slog.Logger
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Loop{
		bus:         cfg.Bus,
		handler:     cfg.Handler,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// Run blocks until ctx is cancelled or the bus is closed, then waits for
// in-flight invocations to finish.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("pipeline loop started", "concurrency", l.concurrency)

	var g errgroup.Group
	g.SetLimit(l.concurrency)
	defer g.Wait()

	inbound := l.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("pipeline loop stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound channel closed, pipeline loop stopping")
				return
			}
			// blocks while concurrency invocations are running
			g.Go(func() error {
				l.process(ctx, msg)
				return nil
			})
		}
	}
}

func (l *Loop) process(ctx context.Context, msg domain.IncomingMessage) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("pipeline panic", "message", msg.ID, "panic", r)
		}
	}()
	if err := l.handler.Handle(ctx, msg); err != nil {
		l.logger.Error("pipeline invocation failed",
			"message", msg.ID,
			"guild", msg.GuildID,
			"channel", msg.ChannelID,
			"err", err,
		)
	}
}
