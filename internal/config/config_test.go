package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider.Model != DefaultModel {
		t.Errorf("model = %q, want %q", cfg.Provider.Model, DefaultModel)
	}
	if cfg.Provider.BaseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", cfg.Provider.BaseURL, DefaultBaseURL)
	}
	if cfg.World.TTLSec != DefaultWorldTTLSec {
		t.Errorf("world ttl = %d, want %d", cfg.World.TTLSec, DefaultWorldTTLSec)
	}
	if cfg.Dialogue.DailyGreetCap != DefaultDailyGreetCap {
		t.Errorf("greet cap = %d, want %d", cfg.Dialogue.DailyGreetCap, DefaultDailyGreetCap)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Provider.Model != DefaultModel {
		t.Errorf("model = %q, want default", cfg.Provider.Model)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	dir := filepath.Join(tmpHome, ".aya")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	raw := `{"telegram":{"enabled":true,"token":"file-token"},"world":{"city":"Москва"},"dialogue":{"criticThreshold":6}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Telegram.Enabled || cfg.Telegram.Token != "file-token" {
		t.Errorf("telegram config not loaded: %+v", cfg.Telegram)
	}
	if cfg.World.City != "Москва" {
		t.Errorf("city = %q, want Москва", cfg.World.City)
	}
	if cfg.Dialogue.CriticThreshold != 6 {
		t.Errorf("critic threshold = %d, want 6", cfg.Dialogue.CriticThreshold)
	}
	// untouched fields keep defaults
	if cfg.Dialogue.DailyGreetCap != DefaultDailyGreetCap {
		t.Errorf("greet cap = %d, want default", cfg.Dialogue.DailyGreetCap)
	}
}

func TestEnvOverrides(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("AYA_TELEGRAM_TOKEN", "env-token")
	t.Setenv("DEEPSEEK_API_KEY", "env-key")
	t.Setenv("AYA_DB_PATH", "/tmp/other.db")
	t.Setenv("AYA_WORLD_TTL_SEC", "60")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Telegram.Token != "env-token" || !cfg.Telegram.Enabled {
		t.Errorf("telegram token override failed: %+v", cfg.Telegram)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Errorf("api key = %q, want env-key", cfg.Provider.APIKey)
	}
	if cfg.Storage.DBPath != "/tmp/other.db" {
		t.Errorf("db path = %q", cfg.Storage.DBPath)
	}
	if cfg.World.TTLSec != 60 {
		t.Errorf("world ttl = %d, want 60", cfg.World.TTLSec)
	}
}

func TestSaveAndReloadConfig(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	cfg := DefaultConfig()
	cfg.Telegram.Token = "saved-token"
	cfg.Telegram.Enabled = true
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Telegram.Token != "saved-token" {
		t.Errorf("token = %q, want saved-token", loaded.Telegram.Token)
	}
}
