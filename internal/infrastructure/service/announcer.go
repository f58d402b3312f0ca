// Package service adapts the external clients to the ports the application
// and domain layers declare.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gmz-labs/voicexp/internal/infrastructure/external/discord"
	"github.com/gmz-labs/voicexp/internal/infrastructure/metrics"
)

// TextSender posts plain text to a channel.
type TextSender interface {
	SendText(ctx context.Context, channelID, content string, mentionUserIDs ...string) (*discord.Message, error)
}

// LevelUpMessage is the public announcement for a member reaching level.
func LevelUpMessage(memberID string, level int) string {
	return fmt.Sprintf("Félicitations <@%s>, vous venez de passer au niveau %d !", memberID, level)
}

// DiscordAnnouncer implements eventhandler.Announcer by posting to the log
// channel and pinging the member.
type DiscordAnnouncer struct {
	sender    TextSender
	channelID string
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewDiscordAnnouncer creates an announcer. collector may be nil.
func NewDiscordAnnouncer(sender TextSender, channelID string, collector *metrics.Collector, logger *slog.Logger) *DiscordAnnouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscordAnnouncer{
		sender:    sender,
		channelID: channelID,
		metrics:   collector,
		logger:    logger.With("component", "announcer"),
	}
}

// Announce posts the level-up message.
func (a *DiscordAnnouncer) Announce(ctx context.Context, memberID string, newLevel int) error {
	if a.channelID == "" {
		a.metrics.ObserveAnnounceFailure()
		return ErrNoChannel
	}

	msg, err := a.sender.SendText(ctx, a.channelID, LevelUpMessage(memberID, newLevel), memberID)
	if err != nil {
		a.metrics.ObserveAnnounceFailure()
		if discord.IsForbidden(err) || discord.IsNotFound(err) {
			return fmt.Errorf("announce channel %s not sendable: %w", a.channelID, err)
		}
		return fmt.Errorf("announce level %d for %s: %w", newLevel, memberID, err)
	}

	a.logger.Debug("announcement posted", "message_id", msg.ID, "member_id", memberID)
	return nil
}
