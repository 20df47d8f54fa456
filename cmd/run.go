package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rosiebot/rosie/internal/config"
	"github.com/rosiebot/rosie/internal/decide"
	"github.com/rosiebot/rosie/internal/discord"
	"github.com/rosiebot/rosie/internal/ooba"
	"github.com/rosiebot/rosie/internal/persona"
	"github.com/rosiebot/rosie/internal/prompt"
	"github.com/rosiebot/rosie/internal/repetition"
	"github.com/rosiebot/rosie/internal/sd"
	"github.com/rosiebot/rosie/internal/stats"
	"github.com/rosiebot/rosie/internal/telemetry"
)

func runBot() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}

	// Persona: a file beats inline text and hot-reloads on change.
	var personaLoader *persona.Loader
	if cfg.PersonaFile != "" {
		personaLoader, err = persona.NewFromFile(config.ExpandHome(cfg.PersonaFile))
		if err != nil {
			slog.Error("failed to load persona file", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := personaLoader.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("persona watcher stopped", "error", err)
			}
		}()
	} else {
		personaLoader = persona.NewStatic(cfg.Persona)
	}

	textClient := ooba.NewClient(cfg.Ooba.BaseURL, ooba.Params{
		MaxNewTokens:      cfg.Ooba.Request.MaxNewTokens,
		Temperature:       cfg.Ooba.Request.Temperature,
		TopP:              cfg.Ooba.Request.TopP,
		RepetitionPenalty: cfg.Ooba.Request.RepetitionPenalty,
	})
	if err := textClient.TryConnect(ctx); err != nil {
		slog.Error("text backend unreachable", "url", textClient.URL(), "error", err)
		os.Exit(1)
	}
	slog.Info("text backend connected", "url", textClient.URL())

	// Image generation is optional; a dead backend degrades to text-only.
	var imageClient discord.ImageGenerator
	if cfg.ImageGenerationEnabled() {
		sdClient := sd.NewClient(cfg.StableDiffusion.BaseURL, sd.Params{
			Steps:   cfg.StableDiffusion.Steps,
			Width:   cfg.StableDiffusion.Width,
			Height:  cfg.StableDiffusion.Height,
			Sampler: cfg.StableDiffusion.Sampler,
		})
		if err := sdClient.TryConnect(ctx); err != nil {
			slog.Warn("image backend unreachable, image generation disabled",
				"url", sdClient.URL(), "error", err)
		} else {
			slog.Info("image backend connected", "url", sdClient.URL())
			imageClient = sdClient
		}
	}

	wakewords := cfg.Wakewords
	if len(wakewords) == 0 {
		wakewords = []string{strings.ToLower(cfg.AIName)}
	}

	gate := decide.NewResponder(wakewords, cfg.IgnoreDMs)
	prompts := prompt.NewGenerator(cfg.AIName, personaLoader.Text, cfg.HistoryLines)
	tracker := repetition.NewTracker(repetition.DefaultThreshold)
	agg := stats.NewAggregate()

	bot, err := discord.New(cfg, gate, prompts, textClient, imageClient, tracker, agg)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}
	if err := bot.Start(ctx); err != nil {
		slog.Error("failed to start bot", "error", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := bot.Stop(shutdownCtx); err != nil {
		slog.Warn("discord shutdown", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown", "error", err)
	}
	agg.WriteSummaryToLog()
}
