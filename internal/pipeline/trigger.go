package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"shapebot/internal/domain"
)

const DefaultPassiveProbability = 0.10

// Sampler yields uniform samples in [0, 1).
type Sampler interface {
	Float64() float64
}

type globalSampler struct{}

func (globalSampler) Float64() float64 { return rand.Float64() }

// TriggerEvaluator decides whether a message fires the pipeline.
type TriggerEvaluator struct {
	botID       string
	prefix      string
	dedicated   domain.DedicatedChannelLookup
	passive     bool
	probability float64
	sampler     Sampler
}

type TriggerConfig struct {
	BotID              string
	CommandPrefix      string
	Dedicated          domain.DedicatedChannelLookup
	PassiveEnabled     bool
	PassiveProbability float64
	Sampler            Sampler // default math/rand/v2
}

func NewTriggerEvaluator(cfg TriggerConfig) *TriggerEvaluator {
	if cfg.Sampler == nil {
		cfg.Sampler = globalSampler{}
	}
	return &TriggerEvaluator{
		botID:       cfg.BotID,
		prefix:      cfg.CommandPrefix,
		dedicated:   cfg.Dedicated,
		passive:     cfg.PassiveEnabled,
		probability: cfg.PassiveProbability,
		sampler:     cfg.Sampler,
	}
}

// Eligible reports whether a message may be considered at all: it must come
// from a human other than the bot, inside a guild.
func Eligible(msg domain.IncomingMessage, botID string) bool {
	return !msg.AuthorIsBot && msg.AuthorID != botID && msg.GuildID != ""
}

// Evaluate returns the trigger decision for msg. Forced conditions are checked
// first; the random sample is drawn only when none holds. A failing
// dedicated-channel lookup is returned as an error.
func (e *TriggerEvaluator) Evaluate(ctx context.Context, msg domain.IncomingMessage) (domain.TriggerDecision, error) {
	if !Eligible(msg, e.botID) {
		return domain.NotTriggered, nil
	}

	forced, err := e.forced(ctx, msg)
	if err != nil {
		return domain.NotTriggered, err
	}
	if forced {
		return domain.ForcedTrigger, nil
	}

	if e.passive && e.sampler.Float64() < e.probability {
		return domain.PassiveTrigger, nil
	}
	return domain.NotTriggered, nil
}

func (e *TriggerEvaluator) forced(ctx context.Context, msg domain.IncomingMessage) (bool, error) {
	if _, ok := stripMention(strings.TrimSpace(msg.Content), e.botID); ok {
		return true, nil
	}
	if e.prefix != "" && strings.HasPrefix(msg.Content, e.prefix) {
		return true, nil
	}
	if msg.ReplyToAuthorID != "" && msg.ReplyToAuthorID == e.botID {
		return true, nil
	}
	if e.dedicated == nil {
		return false, nil
	}
	channelID, ok, err := e.dedicated.DedicatedChannel(ctx, msg.GuildID)
	if err != nil {
		return false, fmt.Errorf("dedicated channel lookup for guild %s: %w", msg.GuildID, err)
	}
	return ok && channelID == msg.ChannelID, nil
}

// stripMention removes a leading <@ID> or <@!ID> mention of botID.
func stripMention(s, botID string) (string, bool) {
	if botID == "" {
		return s, false
	}
	for _, m := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if strings.HasPrefix(s, m) {
			return s[len(m):], true
		}
	}
	return s, false
}

// CleanContent strips a leading bot mention and then the command prefix from
// content, returning the trimmed remainder.
func CleanContent(content, botID, prefix string) string {
	s, _ := stripMention(strings.TrimSpace(content), botID)
	s = strings.TrimLeft(s, " \t\r\n")
	if prefix != "" {
		s = strings.TrimPrefix(s, prefix)
	}
	return strings.TrimSpace(s)
}
