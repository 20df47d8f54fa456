package discord

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/rosiebot/rosie/internal/message"
)

func fixedKind(kind discordgo.ChannelType) func(string) (discordgo.ChannelType, error) {
	return func(string) (discordgo.ChannelType, error) { return kind, nil }
}

func rawMessage(body string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		Content:   body,
		Author:    &discordgo.User{ID: "u1", Username: "alice", Bot: false},
		Timestamp: time.Now(),
		Mentions:  []*discordgo.User{{ID: "u2"}},
	}
}

func TestNormalizeDM(t *testing.T) {
	n := &normalizer{channelType: fixedKind(discordgo.ChannelTypeDM)}

	got := n.normalize(rawMessage("hi\nthere"))
	dm, ok := got.(message.Direct)
	if !ok {
		t.Fatalf("got %T, want message.Direct", got)
	}
	if dm.Body != "hi there" {
		t.Errorf("body not sanitized: %q", dm.Body)
	}
	if dm.AuthorName != "alice" {
		t.Errorf("author name = %q", dm.AuthorName)
	}
}

func TestNormalizeGuildChannel(t *testing.T) {
	n := &normalizer{channelType: fixedKind(discordgo.ChannelTypeGuildText)}

	got := n.normalize(rawMessage("hello"))
	ch, ok := got.(message.Channel)
	if !ok {
		t.Fatalf("got %T, want message.Channel", got)
	}
	if ch.ChannelID != "c1" {
		t.Errorf("channel id = %q", ch.ChannelID)
	}
	if !ch.MentionsUser("u2") {
		t.Error("mention lost in normalization")
	}
}

func TestNormalizeThreadsAreChannels(t *testing.T) {
	for _, kind := range []discordgo.ChannelType{
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread,
		discordgo.ChannelTypeGroupDM,
	} {
		n := &normalizer{channelType: fixedKind(kind)}
		if _, ok := n.normalize(rawMessage("x")).(message.Channel); !ok {
			t.Errorf("kind %d did not normalize to a channel message", kind)
		}
	}
}

func TestNormalizeUnknownKindFallsBack(t *testing.T) {
	n := &normalizer{channelType: fixedKind(discordgo.ChannelTypeGuildCategory)}

	got := n.normalize(rawMessage("x"))
	if _, ok := got.(message.Generic); !ok {
		t.Fatalf("got %T, want generic fallback", got)
	}
}

func TestNormalizeLookupErrorFallsBack(t *testing.T) {
	n := &normalizer{channelType: func(string) (discordgo.ChannelType, error) {
		return 0, fmt.Errorf("no such channel")
	}}

	if _, ok := n.normalize(rawMessage("x")).(message.Generic); !ok {
		t.Error("lookup failure should fall back to the generic shape")
	}
}

func TestNormalizeNilAuthor(t *testing.T) {
	n := &normalizer{channelType: fixedKind(discordgo.ChannelTypeGuildText)}
	if got := n.normalize(&discordgo.Message{ID: "m1", ChannelID: "c1"}); got != nil {
		t.Errorf("authorless message normalized to %T, want nil", got)
	}
}

func TestDisplayNamePriority(t *testing.T) {
	m := rawMessage("x")
	m.Author.GlobalName = "Alice G"
	if got := displayName(m); got != "Alice G" {
		t.Errorf("displayName = %q, want global name", got)
	}
	m.Member = &discordgo.Member{Nick: "Ally"}
	if got := displayName(m); got != "Ally" {
		t.Errorf("displayName = %q, want nickname", got)
	}
}
