package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/rosiebot/rosie/internal/message"
)

// normalizer converts raw Discord messages into the platform-neutral shapes
// the rest of the bot works with. Channel kind lookup is injected so tests
// can run without a gateway connection.
type normalizer struct {
	channelType func(channelID string) (discordgo.ChannelType, error)
}

// conversational reports whether messages of this channel kind belong to a
// multi-party conversation the bot can track.
func conversational(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread,
		discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGroupDM:
		return true
	}
	return false
}

// normalize maps a Discord message to Direct, Channel, or the generic
// fallback shape. Returns nil for messages with no author (webhook edge
// cases), which callers drop.
func (n *normalizer) normalize(m *discordgo.Message) message.Message {
	if m.Author == nil {
		return nil
	}

	meta := message.Generic{
		AuthorID:   m.Author.ID,
		AuthorName: message.Sanitize(displayName(m)),
		ID:         m.ID,
		Body:       message.Sanitize(m.Content),
		FromBot:    m.Author.Bot,
		SentAt:     m.Timestamp,
	}

	kind, err := n.channelType(m.ChannelID)
	if err != nil {
		slog.Warn("could not resolve channel kind, using generic message",
			"channel_id", m.ChannelID, "error", err)
		return meta
	}

	switch {
	case kind == discordgo.ChannelTypeDM:
		return message.Direct{Generic: meta}

	case conversational(kind):
		mentions := make([]string, 0, len(m.Mentions))
		for _, u := range m.Mentions {
			mentions = append(mentions, u.ID)
		}
		return message.Channel{
			Generic:   meta,
			ChannelID: m.ChannelID,
			Mentions:  mentions,
		}

	default:
		slog.Warn("unexpected channel kind, using generic message",
			"channel_id", m.ChannelID, "kind", kind)
		return meta
	}
}

// displayName picks the best name for a message author.
// Priority: server nickname > global display name > username.
func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
