package discord

import (
	"context"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/rosiebot/rosie/internal/config"
	"github.com/rosiebot/rosie/internal/decide"
	"github.com/rosiebot/rosie/internal/prompt"
	"github.com/rosiebot/rosie/internal/repetition"
	"github.com/rosiebot/rosie/internal/stats"
)

const testBotID = "bot-1"

type sentMessage struct {
	ChannelID string
	Content   string
}

type sentFile struct {
	ChannelID string
	Content   string
	Name      string
	Data      []byte
}

// fakeAPI implements restAPI in memory.
type fakeAPI struct {
	mu sync.Mutex

	sent     []sentMessage
	files    []sentFile
	acks     []string
	commands []string
	threads  []string

	history map[string][]*discordgo.Message // channel id → newest first
	kinds   map[string]discordgo.ChannelType
	perms   map[string]int64 // user id → channel permissions

	sendErr  error
	permsErr error
	nextID   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		history: make(map[string][]*discordgo.Message),
		kinds:   make(map[string]discordgo.ChannelType),
		perms:   make(map[string]int64),
	}
}

func (f *fakeAPI) channelType(channelID string) (discordgo.ChannelType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind, ok := f.kinds[channelID]; ok {
		return kind, nil
	}
	return discordgo.ChannelTypeGuildText, nil
}

func (f *fakeAPI) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChannelID: channelID, Content: content})
	return &discordgo.Message{
		ID:        fmt.Sprintf("sent-%d", f.nextID),
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: testBotID, Username: "rosie", Bot: true},
		Timestamp: time.Now(),
	}, nil
}

func (f *fakeAPI) ChannelFileSendWithMessage(channelID, content, name string, r io.Reader, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, sentFile{ChannelID: channelID, Content: content, Name: name, Data: data})
	return &discordgo.Message{ID: "file-1", ChannelID: channelID}, nil
}

func (f *fakeAPI) ChannelTyping(string, ...discordgo.RequestOption) error { return nil }

func (f *fakeAPI) ChannelMessages(channelID string, limit int, _, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.history[channelID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeAPI) ChannelMessage(channelID, messageID string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.history[channelID] {
		if m.ID == messageID {
			return m, nil
		}
	}
	return nil, fmt.Errorf("message %s not found in %s", messageID, channelID)
}

func (f *fakeAPI) MessageThreadStartComplex(channelID, messageID string, data *discordgo.ThreadStart, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("thread-%d", len(f.threads)+1)
	f.threads = append(f.threads, id)
	f.kinds[id] = discordgo.ChannelTypeGuildPublicThread
	return &discordgo.Channel{ID: id, Name: data.Name, Type: discordgo.ChannelTypeGuildPublicThread}, nil
}

func (f *fakeAPI) UserChannelPermissions(userID, _ string, _ ...discordgo.RequestOption) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.permsErr != nil {
		return 0, f.permsErr
	}
	return f.perms[userID], nil
}

func (f *fakeAPI) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, resp.Data.Content)
	return nil
}

func (f *fakeAPI) ApplicationCommandCreate(_, _ string, cmd *discordgo.ApplicationCommand, _ ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd.Name)
	return cmd, nil
}

func (f *fakeAPI) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

// fakeText plays back canned generations.
type fakeText struct {
	sentences []string
	full      string
	err       error
}

func (f *fakeText) RequestAsString(context.Context, string) (string, error) {
	return f.full, f.err
}

func (f *fakeText) RequestBySentence(context.Context, string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if f.err != nil {
			yield("", f.err)
			return
		}
		for _, s := range f.sentences {
			if !yield(s, nil) {
				return
			}
		}
	}
}

type fakeImage struct {
	png []byte
	err error
}

func (f *fakeImage) GenerateImage(context.Context, string) ([]byte, error) {
	return f.png, f.err
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Wakewords = []string{"rosie"}
	cfg.Discord.Token = "test-token"
	return cfg
}

func newTestBot(cfg *config.Config, api *fakeAPI, text TextGenerator, image ImageGenerator) *Bot {
	b := &Bot{
		cfg:       cfg,
		api:       api,
		gate:      decide.NewResponder(cfg.Wakewords, cfg.IgnoreDMs),
		prompts:   prompt.NewGenerator(cfg.AIName, func() string { return cfg.Persona }, cfg.HistoryLines),
		text:      text,
		image:     image,
		tracker:   repetition.NewTracker(repetition.DefaultThreshold),
		agg:       stats.NewAggregate(),
		limiter:   rate.NewLimiter(rate.Inf, 1),
		botUserID: testBotID,
	}
	b.normalizer = &normalizer{channelType: api.channelType}
	return b
}

func guildMessage(id, channelID, author, body string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: channelID,
		GuildID:   "g1",
		Content:   body,
		Author:    &discordgo.User{ID: author, Username: author},
		Timestamp: time.Now(),
	}
}
