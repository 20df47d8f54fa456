package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

const lobotomizeCommand = "lobotomize"

// registerCommands creates the bot's slash commands. Guild-only; memory
// wiping makes no sense in a DM, where history is already private.
func (b *Bot) registerCommands() error {
	dmPermission := false
	_, err := b.api.ApplicationCommandCreate(b.botUserID, "", &discordgo.ApplicationCommand{
		Name:         lobotomizeCommand,
		Description:  fmt.Sprintf("Make %s forget everything said in this channel so far", b.cfg.AIName),
		DMPermission: &dmPermission,
	})
	if err != nil {
		return fmt.Errorf("register %s command: %w", lobotomizeCommand, err)
	}
	slog.Info("slash command registered", "command", lobotomizeCommand)
	return nil
}

func (b *Bot) handleInteraction(i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.ApplicationCommandData().Name != lobotomizeCommand {
		return
	}

	if i.GuildID == "" {
		b.respondEphemeral(i.Interaction, "This command only works in a server channel.")
		return
	}

	// Anchor the wipe at the newest message in the channel. If we can't see
	// it, fail closed rather than forget from an arbitrary point.
	msgs, err := b.api.ChannelMessages(i.ChannelID, 1, "", "", "")
	if err != nil || len(msgs) == 0 {
		slog.Warn("lobotomize failed to find the latest message",
			"channel_id", i.ChannelID, "error", err)
		b.respondEphemeral(i.Interaction, "Sorry, that didn't work. Try again in a moment.")
		return
	}

	b.tracker.HideMessagesBefore(i.ChannelID, msgs[0].ID)
	slog.Info("channel memory wiped",
		"channel_id", i.ChannelID, "before_message_id", msgs[0].ID)

	b.respondEphemeral(i.Interaction,
		fmt.Sprintf("%s has forgotten everything said in this channel so far.", b.cfg.AIName))
}

func (b *Bot) respondEphemeral(i *discordgo.Interaction, content string) {
	err := b.api.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Warn("interaction response failed", "error", err)
	}
}
