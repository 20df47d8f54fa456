package discord

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/rosiebot/rosie/internal/message"
)

// channelHistory lazily yields the most recent messages of a channel,
// newest first. At most limit messages are fetched from the platform.
//
// Fresh reply threads start nearly empty: their oldest entry references the
// message the thread was spun off from. When the fetch comes back short and
// the oldest message carries a reference, the referenced message is resolved
// and yielded as one extra entry, so the prompt still contains the line that
// kicked the conversation off.
func (b *Bot) channelHistory(channelID string, limit int) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		msgs, err := b.api.ChannelMessages(channelID, limit, "", "", "")
		if err != nil {
			yield(nil, fmt.Errorf("fetch channel history: %w", err))
			return
		}

		for _, m := range msgs {
			norm := b.normalizer.normalize(m)
			if norm == nil {
				continue
			}
			if !yield(norm, nil) {
				return
			}
		}

		// Exhausted the channel under budget: repair the kickoff. Whatever
		// shape the oldest message takes, a reference on it points at the
		// conversation this one was spun off from.
		if len(msgs) == 0 || len(msgs) >= limit {
			return
		}
		oldest := msgs[len(msgs)-1]
		if oldest.MessageReference == nil {
			return
		}

		ref := oldest.MessageReference
		origin, err := b.api.ChannelMessage(ref.ChannelID, ref.MessageID)
		if err != nil {
			// The starter may point at a deleted message. History is still
			// usable without it.
			slog.Warn("could not resolve thread starter",
				"channel_id", channelID, "origin_message_id", ref.MessageID, "error", err)
			return
		}
		if norm := b.normalizer.normalize(origin); norm != nil {
			yield(norm, nil)
		}
	}
}
