package channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"shapebot/internal/domain"

	"github.com/bwmarrin/discordgo"
)

const (
	discordMaxMsgLen = 2000

	dedicatedCommand = "dedicated"
)

// Discord connects the pipeline to a Discord bot account. Incoming guild
// messages are published on the bus; replies, typing indicators and channel
// history go through the REST API.
type Discord struct {
	token            string
	guildID          string
	registerCommands bool
	store            domain.DedicatedChannelStore
	session          *discordgo.Session
	commands         []*discordgo.ApplicationCommand
	logger           *slog.Logger
}

// DiscordConfig configures the Discord channel.
type DiscordConfig struct {
	Token            string
	GuildID          string // when set, only this guild is served and commands are registered there
	RegisterCommands bool
	Store            domain.DedicatedChannelStore // backs the /dedicated command; nil disables it
	Logger           *slog.Logger
}

var _ domain.ChatPlatform = (*Discord)(nil)

// NewDiscord creates a new Discord channel handler.
func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{
		token:            cfg.Token,
		guildID:          cfg.GuildID,
		registerCommands: cfg.RegisterCommands,
		store:            cfg.Store,
		logger:           cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Open connects to the gateway and starts publishing guild messages to bus.
// It returns once the session is ready; call Close to disconnect.
func (d *Discord) Open(ctx context.Context, bus domain.MessageBus) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.ID == s.State.User.ID {
			return
		}
		if d.guildID != "" && m.GuildID != d.guildID {
			return
		}
		d.logger.Debug("discord message received",
			"author", m.Author.Username,
			"channel_id", m.ChannelID,
			"content_len", len(m.Content),
		)
		bus.Publish(toIncoming(m.Message))
	})

	if d.store != nil {
		session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			d.onInteraction(ctx, s, i)
		})
	}

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.logger.Info("discord bot connected", "user", session.State.User.Username, "id", session.State.User.ID)

	if d.registerCommands && d.store != nil {
		d.registerSlashCommands()
	}
	return nil
}

// BotID returns the bot's user ID. It is empty before Open succeeds.
func (d *Discord) BotID() string {
	if d.session == nil || d.session.State == nil || d.session.State.User == nil {
		return ""
	}
	return d.session.State.User.ID
}

// Close removes registered commands and disconnects.
func (d *Discord) Close() error {
	if d.session == nil {
		return nil
	}
	for _, cmd := range d.commands {
		if err := d.session.ApplicationCommandDelete(d.session.State.User.ID, d.guildID, cmd.ID); err != nil {
			d.logger.Warn("failed to remove slash command", "command", cmd.Name, "err", err)
		}
	}
	d.logger.Info("discord bot disconnecting")
	return d.session.Close()
}

// Reply sends r as a reply to the triggering message. Long text is split
// into several messages; only the first references the original message and
// files ride on the last one.
func (d *Discord) Reply(ctx context.Context, to domain.IncomingMessage, r domain.Reply) error {
	for _, send := range buildMessages(to, r) {
		if _, err := d.session.ChannelMessageSendComplex(to.ChannelID, send, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord send to %s: %w", to.ChannelID, err)
		}
	}
	return nil
}

func (d *Discord) Typing(ctx context.Context, channelID string) error {
	return d.session.ChannelTyping(channelID, discordgo.WithContext(ctx))
}

// RecentMessages fetches the latest messages of a channel, newest first.
// Nicknames are filled from the state cache when the member is known.
func (d *Discord) RecentMessages(ctx context.Context, channelID string, limit int) ([]domain.IncomingMessage, error) {
	msgs, err := d.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("discord history for %s: %w", channelID, err)
	}

	guildID := ""
	if ch, err := d.session.State.Channel(channelID); err == nil {
		guildID = ch.GuildID
	}

	out := make([]domain.IncomingMessage, 0, len(msgs))
	for _, m := range msgs {
		in := toIncoming(m)
		if in.GuildID == "" {
			in.GuildID = guildID
		}
		if in.DisplayName == "" && guildID != "" && m.Author != nil {
			if member, err := d.session.State.Member(guildID, m.Author.ID); err == nil && member.Nick != "" {
				in.DisplayName = member.Nick
			}
		}
		out = append(out, in)
	}
	return out, nil
}

func toIncoming(m *discordgo.Message) domain.IncomingMessage {
	in := domain.IncomingMessage{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		in.AuthorID = m.Author.ID
		in.AuthorName = m.Author.Username
		in.AuthorIsBot = m.Author.Bot
	}
	if m.Member != nil {
		in.DisplayName = m.Member.Nick
	}
	if m.ReferencedMessage != nil && m.ReferencedMessage.Author != nil {
		in.ReplyToAuthorID = m.ReferencedMessage.Author.ID
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		in.Attachments = append(in.Attachments, domain.Attachment{URL: a.URL, Filename: a.Filename})
	}
	return in
}

func buildMessages(to domain.IncomingMessage, r domain.Reply) []*discordgo.MessageSend {
	var chunks []string
	if r.Content != "" {
		chunks = splitMessage(r.Content, discordMaxMsgLen)
	} else {
		chunks = []string{""}
	}

	sends := make([]*discordgo.MessageSend, len(chunks))
	for i, chunk := range chunks {
		sends[i] = &discordgo.MessageSend{Content: chunk}
	}
	sends[0].Reference = &discordgo.MessageReference{
		MessageID: to.ID,
		ChannelID: to.ChannelID,
		GuildID:   to.GuildID,
	}

	last := sends[len(sends)-1]
	for _, f := range r.Files {
		last.Files = append(last.Files, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      bytes.NewReader(f.Data),
		})
	}
	return sends
}

// splitMessage splits a message into chunks of at most maxLen characters,
// trying to split on newlines when possible.
func splitMessage(msg string, maxLen int) []string {
	if utf8.RuneCountInString(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if utf8.RuneCountInString(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}

		// byte offset of the maxLen-th rune
		limit := 0
		for n := 0; n < maxLen; n++ {
			_, size := utf8.DecodeRuneInString(msg[limit:])
			limit += size
		}

		cut := limit
		if idx := strings.LastIndex(msg[:limit], "\n"); idx > limit/2 {
			cut = idx + 1
		}

		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}

// --- /dedicated slash command ---

var manageGuild int64 = discordgo.PermissionManageServer

func (d *Discord) registerSlashCommands() {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:                     dedicatedCommand,
			Description:              "Configure the channel where the bot always answers",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Make a channel the dedicated channel",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "channel",
							Description:  "Channel (defaults to this one)",
							ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "clear",
					Description: "Remove the dedicated channel",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "show",
					Description: "Show the dedicated channel",
				},
			},
		},
	}

	for _, cmd := range commands {
		created, err := d.session.ApplicationCommandCreate(d.session.State.User.ID, d.guildID, cmd)
		if err != nil {
			d.logger.Warn("failed to register slash command", "command", cmd.Name, "err", err)
			continue
		}
		d.commands = append(d.commands, created)
	}
}

func (d *Discord) onInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != dedicatedCommand || len(data.Options) == 0 {
		return
	}

	sub := data.Options[0]
	target := ""
	for _, opt := range sub.Options {
		if opt.Name == "channel" {
			target = opt.ChannelValue(nil).ID
		}
	}

	content, err := runDedicatedCommand(ctx, d.store, i.GuildID, i.ChannelID, sub.Name, target)
	if err != nil {
		d.logger.Error("dedicated command failed", "guild", i.GuildID, "sub", sub.Name, "err", err)
		content = "❌ Não foi possível atualizar a configuração."
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		d.logger.Warn("interaction respond failed", "err", err)
	}
}

var errNoGuild = errors.New("command used outside a guild")

// runDedicatedCommand applies one /dedicated subcommand and returns the text
// shown to the caller. target defaults to the channel the command was used in.
func runDedicatedCommand(ctx context.Context, store domain.DedicatedChannelStore, guildID, channelID, sub, target string) (string, error) {
	if guildID == "" {
		return "", errNoGuild
	}
	switch sub {
	case "set":
		if target == "" {
			target = channelID
		}
		if err := store.SetDedicatedChannel(ctx, guildID, target); err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Canal dedicado definido: <#%s>", target), nil
	case "clear":
		if err := store.ClearDedicatedChannel(ctx, guildID); err != nil {
			return "", err
		}
		return "✅ Canal dedicado removido.", nil
	case "show":
		ch, ok, err := store.DedicatedChannel(ctx, guildID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "Nenhum canal dedicado configurado.", nil
		}
		return fmt.Sprintf("Canal dedicado: <#%s>", ch), nil
	}
	return "", fmt.Errorf("unknown subcommand %q", sub)
}
