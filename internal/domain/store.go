package domain

import (
	"context"
	"time"
)

// DedicatedChannel binds a guild to the channel where the bot always answers.
type DedicatedChannel struct {
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DedicatedChannelLookup is the read side used by the trigger evaluator.
type DedicatedChannelLookup interface {
	// DedicatedChannel returns the configured channel for a guild; ok is
	// false when none is configured.
	DedicatedChannel(ctx context.Context, guildID string) (channelID string, ok bool, err error)
}

// DedicatedChannelStore persists dedicated-channel configuration.
type DedicatedChannelStore interface {
	DedicatedChannelLookup
	SetDedicatedChannel(ctx context.Context, guildID, channelID string) error
	ClearDedicatedChannel(ctx context.Context, guildID string) error
	ListDedicatedChannels(ctx context.Context) ([]DedicatedChannel, error)
	Close() error
}
