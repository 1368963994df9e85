package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel          = "deepseek-chat"
	DefaultBaseURL        = "https://api.deepseek.com/v1"
	DefaultMaxTokens      = 1024
	DefaultTemperature    = 0.8
	DefaultChatTimeoutSec = 30

	DefaultCity      = "Санкт-Петербург"
	DefaultTimezone  = "Europe/Moscow"
	DefaultLatitude  = 59.94
	DefaultLongitude = 30.31

	DefaultBufSize = 100

	DefaultWorldTTLSec      = 900
	DefaultFreshWindowSec   = 180
	DefaultDailyGreetCap    = 3
	DefaultGreetCooldownSec = 15 * 60
	DefaultReentryIdleSec   = 3 * 60 * 60
	DefaultCriticThreshold  = 4
	DefaultTopicCooldownSec = 180
	DefaultFactSweepSpec    = "0 15 * * * *"   // hourly TTL purge
	DefaultEpisodeFlushSpec = "0 0 4 * * *"    // nightly episode summarization
	DefaultWorldRefreshSpec = "0 */10 * * * *" // keep the world cache warm
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Provider ProviderConfig `json:"provider"`
	Persona  PersonaConfig  `json:"persona"`
	World    WorldConfig    `json:"world"`
	Dialogue DialogueConfig `json:"dialogue"`
	Storage  StorageConfig  `json:"storage"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type ProviderConfig struct {
	APIKey      string  `json:"apiKey"`
	BaseURL     string  `json:"baseUrl,omitempty"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TimeoutSec  int     `json:"timeoutSec,omitempty"`
}

type PersonaConfig struct {
	Dir string `json:"dir"`
}

type WorldConfig struct {
	City      string  `json:"city"`
	Timezone  string  `json:"timezone"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	TTLSec    int     `json:"ttlSec,omitempty"`
}

type DialogueConfig struct {
	FreshWindowSec   int `json:"freshWindowSec,omitempty"`
	DailyGreetCap    int `json:"dailyGreetCap,omitempty"`
	GreetCooldownSec int `json:"greetCooldownSec,omitempty"`
	ReentryIdleSec   int `json:"reentryIdleSec,omitempty"`
	CriticThreshold  int `json:"criticThreshold,omitempty"`
	TopicCooldownSec int `json:"topicCooldownSec,omitempty"`
}

type StorageConfig struct {
	DBPath string `json:"dbPath,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{},
		Provider: ProviderConfig{
			BaseURL:     DefaultBaseURL,
			Model:       DefaultModel,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
			TimeoutSec:  DefaultChatTimeoutSec,
		},
		Persona: PersonaConfig{
			Dir: filepath.Join(ConfigDir(), "persona"),
		},
		World: WorldConfig{
			City:      DefaultCity,
			Timezone:  DefaultTimezone,
			Latitude:  DefaultLatitude,
			Longitude: DefaultLongitude,
			TTLSec:    DefaultWorldTTLSec,
		},
		Dialogue: DialogueConfig{
			FreshWindowSec:   DefaultFreshWindowSec,
			DailyGreetCap:    DefaultDailyGreetCap,
			GreetCooldownSec: DefaultGreetCooldownSec,
			ReentryIdleSec:   DefaultReentryIdleSec,
			CriticThreshold:  DefaultCriticThreshold,
			TopicCooldownSec: DefaultTopicCooldownSec,
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(ConfigDir(), "data", "aya.db"),
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".aya")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if token := os.Getenv("AYA_TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
		cfg.Telegram.Enabled = true
	}
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("AYA_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if url := os.Getenv("AYA_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if model := os.Getenv("AYA_MODEL"); model != "" {
		cfg.Provider.Model = model
	}
	if city := os.Getenv("AYA_CITY"); city != "" {
		cfg.World.City = city
	}
	if tz := os.Getenv("AYA_TZ"); tz != "" {
		cfg.World.Timezone = tz
	}
	if dbPath := os.Getenv("AYA_DB_PATH"); dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if dir := os.Getenv("AYA_PERSONA_DIR"); dir != "" {
		cfg.Persona.Dir = dir
	}
	if ttl := os.Getenv("AYA_WORLD_TTL_SEC"); ttl != "" {
		if parsed, err := strconv.Atoi(ttl); err == nil && parsed > 0 {
			cfg.World.TTLSec = parsed
		}
	}

	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = DefaultBaseURL
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = DefaultModel
	}
	if cfg.Provider.MaxTokens <= 0 {
		cfg.Provider.MaxTokens = DefaultMaxTokens
	}
	if cfg.Provider.TimeoutSec <= 0 {
		cfg.Provider.TimeoutSec = DefaultChatTimeoutSec
	}
	if cfg.World.TTLSec <= 0 {
		cfg.World.TTLSec = DefaultWorldTTLSec
	}
	if cfg.World.Latitude == 0 && cfg.World.Longitude == 0 {
		cfg.World.Latitude = DefaultLatitude
		cfg.World.Longitude = DefaultLongitude
	}
	if cfg.Dialogue.FreshWindowSec <= 0 {
		cfg.Dialogue.FreshWindowSec = DefaultFreshWindowSec
	}
	if cfg.Dialogue.DailyGreetCap <= 0 {
		cfg.Dialogue.DailyGreetCap = DefaultDailyGreetCap
	}
	if cfg.Dialogue.GreetCooldownSec <= 0 {
		cfg.Dialogue.GreetCooldownSec = DefaultGreetCooldownSec
	}
	if cfg.Dialogue.ReentryIdleSec <= 0 {
		cfg.Dialogue.ReentryIdleSec = DefaultReentryIdleSec
	}
	if cfg.Dialogue.CriticThreshold <= 0 {
		cfg.Dialogue.CriticThreshold = DefaultCriticThreshold
	}
	if cfg.Dialogue.TopicCooldownSec <= 0 {
		cfg.Dialogue.TopicCooldownSec = DefaultTopicCooldownSec
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = DefaultConfig().Storage.DBPath
	}
	if cfg.Persona.Dir == "" {
		cfg.Persona.Dir = DefaultConfig().Persona.Dir
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
