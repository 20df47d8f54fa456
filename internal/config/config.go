// Package config loads and validates the bot configuration: a JSON5 file
// overlaid with ROSIE_* environment variables. Env vars take precedence over
// file values; secrets (the Discord token) should come from env.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config is the root configuration for the bot.
type Config struct {
	// AIName is the display name of the persona. It appears in prompt lines
	// ("Rosie says:"), thread names and registered command descriptions.
	AIName string `json:"ai_name"`

	// Persona is the textual description of the character, prepended to every
	// prompt. When PersonaFile is set it takes precedence and is hot-reloaded.
	Persona     string `json:"persona,omitempty"`
	PersonaFile string `json:"persona_file,omitempty"`

	// Wakewords are tokens whose presence in a message counts as a summon.
	Wakewords []string `json:"wakewords,omitempty"`

	Discord         DiscordConfig   `json:"discord"`
	Ooba            OobaConfig      `json:"ooba"`
	StableDiffusion SDConfig        `json:"stable_diffusion,omitempty"`
	Telemetry       TelemetryConfig `json:"telemetry,omitempty"`

	// IgnoreDMs disables replies in one-on-one conversations.
	IgnoreDMs bool `json:"ignore_dms,omitempty"`

	// DontSplitResponses sends each response as a single message instead of
	// streaming it sentence by sentence.
	DontSplitResponses bool `json:"dont_split_responses,omitempty"`

	// ReplyInThread redirects channel replies into a newly created thread
	// scoped to the triggering message.
	ReplyInThread bool `json:"reply_in_thread,omitempty"`

	// HistoryLines is the number of prior messages retrieved per request.
	HistoryLines int `json:"history_lines,omitempty"`

	// LogAllTheThings dumps every prompt and every generated fragment to
	// stdout. Noisy; for debugging prompt assembly.
	LogAllTheThings bool `json:"log_all_the_things,omitempty"`
}

// DiscordConfig holds the Discord credentials.
// Token is never persisted; it comes from env ROSIE_DISCORD_TOKEN.
type DiscordConfig struct {
	Token string `json:"-"`
}

// OobaConfig configures the text-generation backend connection.
type OobaConfig struct {
	// BaseURL is the websocket endpoint of the streaming API,
	// e.g. "ws://localhost:5005".
	BaseURL string        `json:"base_url"`
	Request OobaReqConfig `json:"request,omitempty"`
}

// OobaReqConfig is passed through to the backend with each generation request.
type OobaReqConfig struct {
	MaxNewTokens      int     `json:"max_new_tokens,omitempty"`
	Temperature       float64 `json:"temperature,omitempty"`
	TopP              float64 `json:"top_p,omitempty"`
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty"`
}

// SDConfig configures the optional Stable Diffusion backend.
// An empty BaseURL disables image generation entirely.
type SDConfig struct {
	BaseURL string `json:"base_url,omitempty"`
	Steps   int    `json:"steps,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Sampler string `json:"sampler,omitempty"`
}

// TelemetryConfig configures OpenTelemetry export for traces and spans.
// When enabled, spans are exported to an OTLP-compatible backend.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`
	Endpoint    string            `json:"endpoint,omitempty"`     // e.g. "localhost:4317"
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plain-text transport, for local collectors
	ServiceName string            `json:"service_name,omitempty"` // default "rosie"
	Headers     map[string]string `json:"headers,omitempty"`      // e.g. auth tokens for cloud backends
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		AIName:  "Rosie",
		Persona: "Rosie is a helpful, cheerful assistant who lives in this Discord server.",
		Ooba: OobaConfig{
			BaseURL: "ws://localhost:5005",
			Request: OobaReqConfig{
				MaxNewTokens:      250,
				Temperature:       0.7,
				TopP:              0.9,
				RepetitionPenalty: 1.18,
			},
		},
		StableDiffusion: SDConfig{
			Steps:  30,
			Width:  512,
			Height: 512,
		},
		HistoryLines: 7,
	}
}

// Validate checks the parts of the config the bot cannot run without.
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token not set (env ROSIE_DISCORD_TOKEN)")
	}
	if c.Ooba.BaseURL == "" {
		return fmt.Errorf("ooba.base_url not set")
	}
	if c.AIName == "" {
		return fmt.Errorf("ai_name must not be empty")
	}
	if c.HistoryLines <= 0 {
		return fmt.Errorf("history_lines must be positive, got %d", c.HistoryLines)
	}
	return nil
}

// ImageGenerationEnabled reports whether a Stable Diffusion backend is
// configured.
func (c *Config) ImageGenerationEnabled() bool {
	return c.StableDiffusion.BaseURL != ""
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("ROSIE_DISCORD_TOKEN", &c.Discord.Token)
	envStr("ROSIE_OOBA_URL", &c.Ooba.BaseURL)
	envStr("ROSIE_SD_URL", &c.StableDiffusion.BaseURL)
	envStr("ROSIE_AI_NAME", &c.AIName)
	envStr("ROSIE_PERSONA", &c.Persona)
	envStr("ROSIE_PERSONA_FILE", &c.PersonaFile)

	if v := os.Getenv("ROSIE_WAKEWORDS"); v != "" {
		c.Wakewords = nil
		for _, w := range strings.Split(v, ",") {
			if w = strings.TrimSpace(w); w != "" {
				c.Wakewords = append(c.Wakewords, w)
			}
		}
	}

	envStr("ROSIE_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("ROSIE_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("ROSIE_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("ROSIE_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("ROSIE_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
