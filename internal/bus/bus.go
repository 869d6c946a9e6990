package bus

import (
	"log/slog"
	"sync"
	"time"

	"shapebot/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based queue between the chat gateway and the
// pipeline loop.
type InMemoryBus struct {
	inbound chan domain.IncomingMessage
	mu      sync.RWMutex
	closed  bool
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound: make(chan domain.IncomingMessage, bufferSize),
		timeout: publishTimeout,
		logger:  logger,
	}
}

// Publish enqueues a chat event. It blocks up to 10 seconds when the buffer is
// full and drops the event after that.
func (b *InMemoryBus) Publish(msg domain.IncomingMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus", "message", msg.ID)
		return
	}

	select {
	case b.inbound <- msg:
	default:
		b.logger.Warn("inbound bus full, waiting", "guild", msg.GuildID, "channel", msg.ChannelID)
		timer := time.NewTimer(b.timeout)
		defer timer.Stop()
		select {
		case b.inbound <- msg:
			b.logger.Info("message delivered after wait", "message", msg.ID)
		case <-timer.C:
			b.logger.Error("message dropped: bus full",
				"message", msg.ID,
				"channel", msg.ChannelID,
				"wait", b.timeout,
			)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.IncomingMessage {
	return b.inbound
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
