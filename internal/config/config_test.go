package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Fatalf("Provider = %q, want openai default", cfg.Provider)
	}
	if cfg.Flow.WindowSeconds != 5 {
		t.Fatalf("WindowSeconds = %d, want 5", cfg.Flow.WindowSeconds)
	}
	if !cfg.Flow.ExpensesStep {
		t.Fatal("ExpensesStep should default on")
	}
	if cfg.Sheet.Columns["deposito"] != "B" {
		t.Fatalf("default columns wrong: %v", cfg.Sheet.Columns)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
provider: anthropic
telegram:
  token: file-token
sheet:
  id: sheet-123
  credentials_file: /tmp/sa.json
flow:
  teams: [norte, sur]
  commission_rate: 0.07
  expenses_step: false
  window_seconds: 8
providers:
  anthropic:
    api_key: file-key
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TELEGRAM_TOKEN", "env-token")
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "anthropic" {
		t.Fatalf("Provider = %q", cfg.Provider)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("env must override file token, got %q", cfg.Telegram.Token)
	}
	if cfg.Providers["anthropic"].APIKey != "env-key" {
		t.Fatalf("env must override provider key, got %q", cfg.Providers["anthropic"].APIKey)
	}
	if cfg.Flow.CommissionRate != 0.07 || cfg.Flow.ExpensesStep || cfg.Flow.WindowSeconds != 8 {
		t.Fatalf("flow not loaded: %+v", cfg.Flow)
	}
	if len(cfg.Flow.Teams) != 2 {
		t.Fatalf("teams = %v", cfg.Flow.Teams)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

// LLM_API_KEY must land on the provider CIERREBOT_PROVIDER selects, not on
// whatever the file or defaults had active.
func TestProviderEnvSelectsKeyTarget(t *testing.T) {
	t.Setenv("CIERREBOT_PROVIDER", "anthropic")
	t.Setenv("LLM_API_KEY", "env-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "anthropic" {
		t.Fatalf("Provider = %q, want anthropic", cfg.Provider)
	}
	if got := cfg.GetProviderConfig("anthropic").APIKey; got != "env-key" {
		t.Fatalf("anthropic key = %q, want env-key", got)
	}
	if got := cfg.GetProviderConfig("openai").APIKey; got != "" {
		t.Fatalf("key leaked to default provider: %q", got)
	}
}

func TestValidateReportsMissingEssentials(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty config should not validate")
	}
	cfg.Telegram.Token = "tok"
	cfg.Sheet.ID = "id"
	cfg.Sheet.CredentialsFile = "/tmp/sa.json"
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing teams should not validate")
	}
	cfg.Flow.Teams = []string{"uno"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
