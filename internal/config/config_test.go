package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBPath != "./data/ideascope.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL)
	}
	if cfg.LLM.Model == "" {
		t.Error("LLM.Model must have a default")
	}
	if !cfg.ConversationLog.Enabled {
		t.Error("conversation logging should default on")
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected Load to fail without LLM_API_KEY")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "k")
	t.Setenv("PORT", "9999")
	t.Setenv("LLM_MODEL", "my-model")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("SESSION_TTL_MINUTES", "30")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.LLM.Model != "my-model" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("LLM.Temperature = %v", cfg.LLM.Temperature)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.RateLimit.PerMinute != 5 {
		t.Errorf("RateLimit.PerMinute = %d", cfg.RateLimit.PerMinute)
	}
}

func TestIsDevelopment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		frontendURL string
		want        bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:5173", true},
		{"https://ideascope.example.com", false},
	}
	for _, tc := range tests {
		c := &Config{FrontendURL: tc.frontendURL}
		if got := c.IsDevelopment(); got != tc.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tc.frontendURL, got, tc.want)
		}
	}
}
