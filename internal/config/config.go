// Package config loads and manages cierrebot configuration.
// Configuration source priority (highest to lowest):
// 1. Environment variables (TELEGRAM_TOKEN, SHEET_ID, LLM_API_KEY, etc.)
// 2. Config file path specified via --config flag
// 3. ~/.config/cierrebot/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProviderConfig holds configuration for a single inference provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// TelegramConfig holds the chat transport settings.
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// SheetConfig holds the ledger spreadsheet settings.
type SheetConfig struct {
	// ID is the spreadsheet id from its URL.
	ID string `yaml:"id"`

	// CredentialsJSON is the service account key, inline. CredentialsFile
	// wins when both are set.
	CredentialsJSON string `yaml:"credentials_json"`
	CredentialsFile string `yaml:"credentials_file"`

	// Name is the tab holding settlement rows.
	Name string `yaml:"name"`

	// FirstDataRow is the 1-based row where settlement data starts.
	FirstDataRow int `yaml:"first_data_row"`

	// DateColumn / ShortfallColumn are column letters.
	DateColumn      string `yaml:"date_column"`
	ShortfallColumn string `yaml:"shortfall_column"`

	// Columns maps vision-extraction labels to column letters, e.g.
	// deposito: B.
	Columns map[string]string `yaml:"columns"`
}

// FlowConfig holds the closing-wizard shape.
type FlowConfig struct {
	// Teams in prompt order.
	Teams []string `yaml:"teams"`

	// CommissionRate applied to deposits, e.g. 0.05.
	CommissionRate float64 `yaml:"commission_rate"`

	// ExpensesStep toggles the expenses question; some operations close
	// straight from loans to the settled amount.
	ExpensesStep bool `yaml:"expenses_step"`

	// WindowSeconds is the aggregation quiescence window.
	WindowSeconds int `yaml:"window_seconds"`

	// TriggerWords / ConfirmWords / CancelWords override the built-in
	// vocabularies.
	TriggerWords []string `yaml:"trigger_words"`
	ConfirmWords []string `yaml:"confirm_words"`
	CancelWords  []string `yaml:"cancel_words"`
}

// Config is the complete configuration structure for cierrebot.
type Config struct {
	// Provider is the active inference provider name ("openai",
	// "anthropic" or any OpenAI-compatible endpoint).
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// Providers holds per-provider configuration.
	Providers map[string]*ProviderConfig `yaml:"providers"`

	Telegram TelegramConfig `yaml:"telegram"`
	Sheet    SheetConfig    `yaml:"sheet"`
	Flow     FlowConfig     `yaml:"flow"`

	// MaxPromptChars rejects oversized inference payloads locally.
	MaxPromptChars int `yaml:"max_prompt_chars"`

	// AuditDB is the SQLite write-journal path. Empty disables journaling.
	AuditDB string `yaml:"audit_db"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:  "openai",
		Providers: make(map[string]*ProviderConfig),
		Sheet: SheetConfig{
			Name:            "Cierres",
			FirstDataRow:    3,
			DateColumn:      "A",
			ShortfallColumn: "K",
			Columns: map[string]string{
				"deposito": "B",
				"retiro":   "C",
				"gasto":    "F",
				"prestamo": "G",
			},
		},
		Flow: FlowConfig{
			CommissionRate: 0.05,
			ExpensesStep:   true,
			WindowSeconds:  5,
		},
		MaxPromptChars: 4000,
	}
}

// Load reads the config file and merges environment variable overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".config", "cierrebot", "config.yaml")
		}
	}

	// Read config file (use defaults if not found)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}
	return cfg, nil
}

// Validate reports the settings without which the bot cannot start.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token missing (config telegram.token or TELEGRAM_TOKEN)")
	}
	if c.Sheet.ID == "" {
		return fmt.Errorf("sheet id missing (config sheet.id or SHEET_ID)")
	}
	if c.Sheet.CredentialsJSON == "" && c.Sheet.CredentialsFile == "" {
		return fmt.Errorf("sheet credentials missing (config sheet.credentials_file or GOOGLE_SERVICE_ACCOUNT)")
	}
	if len(c.Flow.Teams) == 0 {
		return fmt.Errorf("no teams configured (config flow.teams)")
	}
	return nil
}

// GetProviderConfig returns the config for the named provider, or an empty
// config if not found.
func (c *Config) GetProviderConfig(name string) *ProviderConfig {
	if pc, ok := c.Providers[name]; ok {
		return pc
	}
	return &ProviderConfig{}
}

// applyEnvOverrides applies environment variable overrides to the config.
// The provider selection runs first so LLM_* keys land on the provider the
// environment actually selected.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CIERREBOT_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("SHEET_ID"); v != "" {
		cfg.Sheet.ID = v
	}
	if v := os.Getenv("GOOGLE_SERVICE_ACCOUNT"); v != "" {
		cfg.Sheet.CredentialsJSON = v
	}

	if v := os.Getenv("LLM_API_KEY"); v != "" {
		provider := cfg.Provider
		if cfg.Providers[provider] == nil {
			cfg.Providers[provider] = &ProviderConfig{}
		}
		cfg.Providers[provider].APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		provider := cfg.Provider
		if cfg.Providers[provider] == nil {
			cfg.Providers[provider] = &ProviderConfig{}
		}
		cfg.Providers[provider].BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		if cfg.Providers["anthropic"] == nil {
			cfg.Providers["anthropic"] = &ProviderConfig{}
		}
		cfg.Providers["anthropic"].APIKey = v
	}
}
