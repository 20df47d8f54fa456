package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rosiebot/rosie/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive first-time setup",
		Run: func(cmd *cobra.Command, args []string) {
			runOnboard()
		},
	}
}

func runOnboard() {
	cfg := config.Default()
	token := ""
	wakewords := ""

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Discord bot token").
				Description("From the Discord developer portal. Never written to the config file; exported as ROSIE_DISCORD_TOKEN.").
				EchoMode(huh.EchoModePassword).
				Value(&token),
			huh.NewInput().
				Title("Text backend URL").
				Description("Streaming API of your text-generation-webui instance.").
				Value(&cfg.Ooba.BaseURL),
			huh.NewInput().
				Title("Bot name").
				Description("The persona's display name, used in prompts and thread titles.").
				Value(&cfg.AIName),
			huh.NewText().
				Title("Persona").
				Description("A few sentences describing the character.").
				Value(&cfg.Persona),
			huh.NewInput().
				Title("Wakewords").
				Description("Comma separated. Empty means the bot name.").
				Value(&wakewords),
			huh.NewInput().
				Title("Stable Diffusion URL").
				Description("Optional. Empty disables image generation.").
				Value(&cfg.StableDiffusion.BaseURL),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Setup aborted: %v\n", err)
		os.Exit(1)
	}

	for _, w := range strings.Split(wakewords, ",") {
		if w = strings.TrimSpace(w); w != "" {
			cfg.Wakewords = append(cfg.Wakewords, w)
		}
	}

	path := resolveConfigPath()
	if err := config.Save(path, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Could not write config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nConfig written to %s\n\n", path)
	fmt.Println("Next steps:")
	if token != "" {
		fmt.Println("  export ROSIE_DISCORD_TOKEN=<the token you entered>")
	} else {
		fmt.Println("  export ROSIE_DISCORD_TOKEN=<your bot token>")
	}
	fmt.Println("  rosie")
}
