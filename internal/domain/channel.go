package domain

import "context"

// ChatPlatform is the slice of the chat client the pipeline talks to.
type ChatPlatform interface {
	// Reply sends r to the message's channel as a reply to it.
	Reply(ctx context.Context, to IncomingMessage, r Reply) error
	// Typing shows the typing indicator in a channel.
	Typing(ctx context.Context, channelID string) error
	// RecentMessages returns up to limit messages of a channel, newest first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]IncomingMessage, error)
}
