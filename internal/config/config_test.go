package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"LLM_PROVIDER", "LLM_MODEL", "NUM_TURNS", "PROFILE_COUNTRY", "API_DELAY", "NATS_URL"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	if cfg.LLMProvider != "gemini" {
		t.Errorf("expected provider 'gemini', got '%s'", cfg.LLMProvider)
	}
	if cfg.Model() != "gemini-2.5-flash" {
		t.Errorf("expected default model 'gemini-2.5-flash', got '%s'", cfg.Model())
	}
	if cfg.NumTurns != 4 {
		t.Errorf("expected 4 turns, got %d", cfg.NumTurns)
	}
	if cfg.GoalsToSample != 3 {
		t.Errorf("expected 3 goals to sample, got %d", cfg.GoalsToSample)
	}
	if cfg.ProfileCountry != "US" || cfg.ProfileLanguage != "English" {
		t.Errorf("unexpected profile defaults %s/%s", cfg.ProfileCountry, cfg.ProfileLanguage)
	}
	if cfg.NATSURL != "" {
		t.Errorf("expected NATS disabled by default, got '%s'", cfg.NATSURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("NUM_TURNS", "7")
	t.Setenv("API_DELAY", "250ms")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("SEED", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	if cfg.LLMProvider != "openai" {
		t.Errorf("expected provider 'openai', got '%s'", cfg.LLMProvider)
	}
	if cfg.Model() != "gpt-4o" {
		t.Errorf("expected openai default model, got '%s'", cfg.Model())
	}
	if cfg.NumTurns != 7 {
		t.Errorf("expected 7 turns, got %d", cfg.NumTurns)
	}
	if cfg.APIDelay != 250*time.Millisecond {
		t.Errorf("expected 250ms delay, got %v", cfg.APIDelay)
	}
	if !cfg.TracingEnabled {
		t.Error("expected tracing enabled")
	}
	if cfg.Seed != 42 {
		t.Errorf("invalid int must fall back to default, got %d", cfg.Seed)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %q", cfg.AllowedOrigins)
	}
}

func TestAPIKey(t *testing.T) {
	cfg := &Config{GeminiAPIKey: "g-key"}
	key, err := cfg.APIKey("gemini")
	if err != nil || key != "g-key" {
		t.Errorf("expected g-key, got '%s' (%v)", key, err)
	}
	if _, err := cfg.APIKey("openai"); err == nil {
		t.Error("expected error for missing openai key")
	}
	if _, err := cfg.APIKey("mistral"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.LLMProvider = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown provider")
	}
	cfg.LLMProvider = "gemini"
	cfg.NumTurns = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero turns")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CONVSYNTH_TEST_KEY=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONVSYNTH_TEST_KEY", "")
	os.Unsetenv("CONVSYNTH_TEST_KEY")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("CONVSYNTH_TEST_KEY"); got != "from-dotenv" {
		t.Errorf("expected value from .env, got '%s'", got)
	}
}
