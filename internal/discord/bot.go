// Package discord is the platform layer. It connects to the Discord
// gateway, normalizes inbound messages, decides where replies belong (the
// origin channel or a freshly created thread), assembles channel history
// into prompts, and streams generated responses back as chat messages.
package discord

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/mattn/go-runewidth"
	"golang.org/x/time/rate"

	"github.com/rosiebot/rosie/internal/config"
	"github.com/rosiebot/rosie/internal/decide"
	"github.com/rosiebot/rosie/internal/prompt"
	"github.com/rosiebot/rosie/internal/repetition"
	"github.com/rosiebot/rosie/internal/stats"
	"github.com/rosiebot/rosie/internal/telemetry"
)

// TextGenerator produces responses from the text backend.
type TextGenerator interface {
	RequestAsString(ctx context.Context, prompt string) (string, error)
	RequestBySentence(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// ImageGenerator renders pictures on request. Nil disables the feature.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Bot owns the gateway connection and the response pipeline.
type Bot struct {
	cfg     *config.Config
	session *discordgo.Session
	api     restAPI

	gate    *decide.Responder
	prompts *prompt.Generator
	text    TextGenerator
	image   ImageGenerator
	tracker *repetition.Tracker
	agg     *stats.Aggregate

	normalizer *normalizer
	limiter    *rate.Limiter

	botUserID string
	inflight  sync.WaitGroup
}

// New builds the bot. The session is created but not opened; call Start.
func New(cfg *config.Config, gate *decide.Responder, prompts *prompt.Generator,
	text TextGenerator, image ImageGenerator, tracker *repetition.Tracker,
	agg *stats.Aggregate) (*Bot, error) {

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:     cfg,
		session: session,
		api:     session,
		gate:    gate,
		prompts: prompts,
		text:    text,
		image:   image,
		tracker: tracker,
		agg:     agg,
		// Discord allows roughly 5 messages per 5s per channel; one per
		// second with a small burst stays well clear of 429s.
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
	b.normalizer = &normalizer{channelType: b.lookupChannelType}
	return b, nil
}

// lookupChannelType resolves a channel's kind, preferring the state cache.
func (b *Bot) lookupChannelType(channelID string) (discordgo.ChannelType, error) {
	if ch, err := b.session.State.Channel(channelID); err == nil {
		return ch.Type, nil
	}
	ch, err := b.session.Channel(channelID)
	if err != nil {
		return 0, fmt.Errorf("resolve channel %s: %w", channelID, err)
	}
	return ch.Type, nil
}

// Start opens the gateway connection and registers handlers and commands.
func (b *Bot) Start(ctx context.Context) error {
	slog.Info("starting discord bot")

	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessageCreate(ctx, m)
	})
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.handleInteraction(i)
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := b.session.User("@me")
	if err != nil {
		b.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	b.botUserID = user.ID

	if err := b.registerCommands(); err != nil {
		slog.Warn("slash command registration failed", "error", err)
	}

	b.logStartup(user)
	return nil
}

// Stop waits for in-flight responses and closes the gateway connection.
func (b *Bot) Stop(ctx context.Context) error {
	slog.Info("stopping discord bot")

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown timed out waiting for in-flight responses")
	}

	return b.session.Close()
}

func (b *Bot) logStartup(user *discordgo.User) {
	slog.Info("discord bot connected",
		"username", user.Username,
		"id", user.ID,
		"invite_url", fmt.Sprintf(
			"https://discord.com/api/oauth2/authorize?client_id=%s&permissions=309237696512&scope=bot",
			user.ID),
	)
	slog.Info("responding as",
		"ai_name", b.cfg.AIName,
		"wakewords", strings.Join(b.cfg.Wakewords, ", "),
		"history_lines", b.cfg.HistoryLines,
		"split_responses", !b.cfg.DontSplitResponses,
		"reply_in_thread", b.cfg.ReplyInThread,
		"image_generation", b.image != nil,
	)
}

// preview shortens message bodies for log lines, counting display width so
// wide runes don't blow up terminal output.
func preview(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

var tracer = telemetry.Tracer("rosie/discord")
