// Package discord is a notify.Sink that posts fishing status updates to a
// Discord channel, grounded on the teacher's internal/remote/discord bot:
// same discordgo.Session construction, same channel-send call, trimmed down
// to one-way notification since this sink never needs to read commands
// back.
package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/bailanluo/autofish/internal/fishing"
)

// Sink posts a short line to a Discord channel for every Status it is
// handed. Construct it behind a notify.FilteredSink so only the events the
// operator cares about reach the channel.
type Sink struct {
	session   *discordgo.Session
	channelID string
	logger    *slog.Logger
}

// New opens a Discord bot session authenticated with token and targets
// channelID for all notifications.
func New(token, channelID string, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return &Sink{session: session, channelID: channelID, logger: logger}, nil
}

// Notify implements notify.Sink.
func (s *Sink) Notify(status fishing.Status) {
	msg := fmt.Sprintf("[fishrig] phase=%s round=%d", status.Phase, status.RoundCount)
	if status.LastError != "" {
		msg += fmt.Sprintf(" last_error=%q", status.LastError)
	}
	if _, err := s.session.ChannelMessageSend(s.channelID, msg); err != nil {
		s.logger.Error("discord: send failed", slog.Any("error", err))
	}
}

// Close releases the underlying Discord session.
func (s *Sink) Close() error {
	return s.session.Close()
}
