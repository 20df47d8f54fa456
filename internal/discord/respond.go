package discord

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/rosiebot/rosie/internal/message"
	"github.com/rosiebot/rosie/internal/sd"
	"github.com/rosiebot/rosie/internal/stats"
)

// maxMessageLen is Discord's per-message content limit.
const maxMessageLen = 2000

// handleMessageCreate is the gateway callback. Each message is processed in
// its own goroutine so a slow generation never blocks the event loop, and
// the recover boundary covers the whole unit of work: a panic anywhere in
// normalization, gating, or response handling is contained to that message.
func (b *Bot) handleMessageCreate(ctx context.Context, m *discordgo.MessageCreate) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic while responding", "channel_id", m.ChannelID, "panic", r)
			}
		}()

		norm := b.normalizer.normalize(m.Message)
		if norm == nil {
			return
		}
		should, isSummon := b.gate.ShouldReply(b.botUserID, norm)
		if !should {
			return
		}
		b.respond(ctx, m.Message, norm, isSummon)
	}()
}

func (b *Bot) respond(ctx context.Context, raw *discordgo.Message, msg message.Message, isSummon bool) {
	ctx, span := tracer.Start(ctx, "respond")
	defer span.End()

	meta := msg.Meta()
	slog.Debug("responding",
		"author", meta.AuthorName,
		"channel_id", raw.ChannelID,
		"summon", isSummon,
		"preview", preview(meta.Body, 50),
	)

	// Picture requests ride along with the text response.
	imagePrompt := ""
	if b.image != nil && isSummon {
		imagePrompt, _ = sd.MaybeImagePrompt(meta.Body)
	}

	destID, redirected, ok := b.resolveDestination(raw, msg)
	if !ok {
		return
	}

	if isSummon {
		if ch, isChannel := redirected.(message.Channel); isChannel {
			b.gate.LogMention(ch)
		}
	}

	typing := newTyping(typingOptions{
		StartFn: func() error { return b.api.ChannelTyping(destID) },
	})
	typing.Start()
	defer typing.Stop()

	var g errgroup.Group
	if imagePrompt != "" {
		g.Go(func() error {
			return b.sendImage(ctx, destID, meta.AuthorName, imagePrompt)
		})
	}
	g.Go(func() error {
		return b.sendText(ctx, raw.ChannelID, destID, imagePrompt != "", meta.AuthorName)
	})

	// Both tasks always settle; neither cancels the other. The text path
	// reports its own outcome to the stats collector, so a failed image
	// upload is logged but never double-counted.
	if err := g.Wait(); err != nil {
		slog.Error("response failed", "channel_id", destID, "error", err)
	}
}

// resolveDestination picks the channel the reply goes to. When thread
// replies are enabled and the trigger came from a guild channel, a new
// thread is spun off the triggering message. A user confirmed to lack the
// create-threads permission gets no reply at all, so the bot can't be used
// to sidestep channel permissions; an author whose permissions can't be
// resolved (not a resolvable member) falls back to the origin channel.
func (b *Bot) resolveDestination(raw *discordgo.Message, msg message.Message) (string, message.Message, bool) {
	ch, isChannel := msg.(message.Channel)
	if !b.cfg.ReplyInThread || !isChannel || raw.GuildID == "" {
		return raw.ChannelID, msg, true
	}

	// Already inside a thread: keep the conversation there.
	if kind, err := b.normalizer.channelType(raw.ChannelID); err == nil {
		switch kind {
		case discordgo.ChannelTypeGuildPublicThread,
			discordgo.ChannelTypeGuildPrivateThread,
			discordgo.ChannelTypeGuildNewsThread:
			return raw.ChannelID, msg, true
		}
	}

	perms, err := b.api.UserChannelPermissions(ch.AuthorID, ch.ChannelID)
	if err != nil {
		slog.Warn("could not check thread permissions, replying in channel",
			"channel_id", ch.ChannelID, "error", err)
		return raw.ChannelID, msg, true
	}
	if perms&discordgo.PermissionCreatePublicThreads == 0 {
		slog.Info("not responding: user cannot create threads",
			"author", ch.AuthorName, "channel_id", ch.ChannelID)
		return "", msg, false
	}

	thread, err := b.api.MessageThreadStartComplex(ch.ChannelID, ch.ID, &discordgo.ThreadStart{
		Name:                fmt.Sprintf("%s, replying to %s", b.cfg.AIName, ch.AuthorName),
		AutoArchiveDuration: 60,
		Invitable:           false,
	})
	if err != nil {
		slog.Warn("could not create reply thread",
			"channel_id", ch.ChannelID, "error", err)
		return "", msg, false
	}

	slog.Debug("created reply thread", "thread_id", thread.ID, "origin", ch.ChannelID)
	return thread.ID, ch.WithChannelID(thread.ID), true
}

// sendText runs the text half of a response: assemble the prompt from the
// destination's history, stream the generation, filter it, and post it.
// Repetition tracking stays keyed by the origin channel so throttling
// carries across reply threads.
func (b *Bot) sendText(ctx context.Context, originID, destID string, imageRequested bool, authorName string) error {
	throttleID := b.tracker.ThrottleMessageID(originID)
	history := b.channelHistory(destID, b.prompts.HistoryLines())

	promptText, err := b.prompts.Generate(history, imageRequested, throttleID)
	if err != nil {
		return err
	}

	resp := b.agg.LogRequestArrived(promptText)
	if b.cfg.LogAllTheThings {
		fmt.Printf("prompt:\n%s\n", promptText)
	}

	if err := b.streamResponse(ctx, originID, destID, promptText, resp); err != nil {
		b.agg.LogResponseFailure()
		return err
	}

	b.agg.LogResponseSuccess(resp)
	resp.WriteToLog(fmt.Sprintf("response to %s done", authorName))
	return nil
}

// streamResponse generates and posts the reply. An error here counts as one
// failed response; errors before the request was registered do not.
func (b *Bot) streamResponse(ctx context.Context, originID, destID, promptText string, resp *stats.Response) error {
	if b.cfg.DontSplitResponses {
		full, err := b.text.RequestAsString(ctx, promptText)
		if err != nil {
			return err
		}
		// The whole response is a single fragment: either it goes out
		// wholesale or, when it ends by putting words in someone else's
		// mouth, not at all.
		keep, abort := b.filterFragment(full)
		if abort {
			slog.Warn("generation broke character, response dropped", "channel_id", destID)
			return nil
		}
		if !keep {
			return nil
		}
		return b.sendChunk(ctx, originID, destID, strings.TrimSpace(full), resp)
	}

	for sentence, err := range b.text.RequestBySentence(ctx, promptText) {
		if err != nil {
			return err
		}
		if b.cfg.LogAllTheThings {
			fmt.Printf("fragment: %q\n", sentence)
		}
		keep, abort := b.filterFragment(sentence)
		if abort {
			slog.Warn("generation broke character, aborting response", "channel_id", destID)
			break
		}
		if !keep {
			continue
		}
		if err := b.sendChunk(ctx, originID, destID, sentence, resp); err != nil {
			return err
		}
	}
	return nil
}

// sendChunk posts one piece of the response, splitting anything over the
// platform limit, and feeds the repetition tracker with the message as it
// actually landed.
func (b *Bot) sendChunk(ctx context.Context, originID, destID, content string, resp *stats.Response) error {
	for len(content) > 0 {
		chunk := content
		if len(chunk) > maxMessageLen {
			cutAt := maxMessageLen
			if idx := strings.LastIndexByte(content[:maxMessageLen], '\n'); idx > maxMessageLen/2 {
				cutAt = idx + 1
			}
			chunk = content[:cutAt]
			content = content[cutAt:]
		} else {
			content = ""
		}

		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		sent, err := b.api.ChannelMessageSend(destID, chunk)
		if err != nil {
			return fmt.Errorf("send response message: %w", err)
		}
		resp.LogResponsePart()

		if norm := b.normalizer.normalize(sent); norm != nil {
			b.tracker.LogMessage(originID, norm.Meta())
		}
	}
	return nil
}

// filterFragment applies the immersion filter to one sentence. Fragments
// echoing the bot's own prompt cue are dropped; a fragment that puts words
// in someone else's mouth aborts the rest of the response.
func (b *Bot) filterFragment(sentence string) (keep, abort bool) {
	trimmed := strings.TrimSpace(sentence)
	if trimmed == "" {
		return false, false
	}
	if trimmed == b.prompts.BotPromptLine() {
		return false, false
	}
	if strings.HasSuffix(trimmed, " says:") {
		return false, true
	}
	return true, false
}

func (b *Bot) sendImage(ctx context.Context, destID, authorName, imagePrompt string) error {
	png, err := b.image.GenerateImage(ctx, imagePrompt)
	if err != nil {
		return fmt.Errorf("generate image: %w", err)
	}

	caption := fmt.Sprintf("%s asked for: %s", authorName, imagePrompt)
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := b.api.ChannelFileSendWithMessage(destID, caption, "generated.png", bytes.NewReader(png)); err != nil {
		return fmt.Errorf("upload generated image: %w", err)
	}
	return nil
}
