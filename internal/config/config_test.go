package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AIName != "Rosie" {
		t.Errorf("AIName = %q, want default %q", cfg.AIName, "Rosie")
	}
	if cfg.HistoryLines != 7 {
		t.Errorf("HistoryLines = %d, want 7", cfg.HistoryLines)
	}
}

func TestLoadJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	// JSON5: comments and trailing commas allowed.
	body := `{
		// persona bot config
		ai_name: "Marvin",
		wakewords: ["marvin", "robot"],
		reply_in_thread: true,
		history_lines: 12,
		ooba: { base_url: "ws://gen:5005", },
	}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AIName != "Marvin" {
		t.Errorf("AIName = %q", cfg.AIName)
	}
	if len(cfg.Wakewords) != 2 || cfg.Wakewords[1] != "robot" {
		t.Errorf("Wakewords = %v", cfg.Wakewords)
	}
	if !cfg.ReplyInThread {
		t.Error("ReplyInThread not set")
	}
	if cfg.HistoryLines != 12 {
		t.Errorf("HistoryLines = %d", cfg.HistoryLines)
	}
	if cfg.Ooba.BaseURL != "ws://gen:5005" {
		t.Errorf("Ooba.BaseURL = %q", cfg.Ooba.BaseURL)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ROSIE_DISCORD_TOKEN", "tok-123")
	t.Setenv("ROSIE_AI_NAME", "Dot")
	t.Setenv("ROSIE_WAKEWORDS", "dot, dotty ,")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.Token != "tok-123" {
		t.Errorf("Token = %q", cfg.Discord.Token)
	}
	if cfg.AIName != "Dot" {
		t.Errorf("AIName = %q", cfg.AIName)
	}
	want := []string{"dot", "dotty"}
	if len(cfg.Wakewords) != len(want) {
		t.Fatalf("Wakewords = %v, want %v", cfg.Wakewords, want)
	}
	for i := range want {
		if cfg.Wakewords[i] != want[i] {
			t.Errorf("Wakewords[%d] = %q, want %q", i, cfg.Wakewords[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without discord token")
	}
	cfg.Discord.Token = "tok"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	cfg.HistoryLines = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error with zero history_lines")
	}
}

func TestSaveDoesNotPersistToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	cfg := Default()
	cfg.Discord.Token = "secret"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("empty config written")
	}
	if strings.Contains(string(data), "secret") {
		t.Error("discord token leaked into saved config")
	}
}
