package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/carepath?sslmode=disable")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" || cfg.Env != "development" {
		t.Errorf("unexpected port/env %s/%s", cfg.Port, cfg.Env)
	}
	if cfg.LLMProvider != "openai" || cfg.OpenAIChatModel != "gpt-4o-mini" || cfg.OpenAISummaryModel != "gpt-4o-mini" {
		t.Errorf("unexpected llm defaults %+v", cfg)
	}
	if cfg.LLMTimeout != 30*time.Second || cfg.TokenTTL != 720*time.Hour {
		t.Errorf("unexpected durations %s %s", cfg.LLMTimeout, cfg.TokenTTL)
	}
	if cfg.MessageCap != 50 || cfg.Timezone != "Asia/Seoul" || cfg.NotifyChannel != "profile_updates" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.PublicAIRate != 6 || cfg.PublicAIBurst != 3 {
		t.Errorf("unexpected ai limits %v/%d", cfg.PublicAIRate, cfg.PublicAIBurst)
	}
	if cfg.JWTSigningKey != devSigningKey {
		t.Error("expected development signing key")
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Errorf("expected no brokers, got %v", cfg.KafkaBrokers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("OPENAI_MODEL_SUMMARY", "gpt-4o")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("MESSAGE_CAP", "3")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLMProvider != "gemini" || cfg.OpenAISummaryModel != "gpt-4o" {
		t.Errorf("unexpected llm config %+v", cfg)
	}
	if cfg.LLMTimeout != 5*time.Second || cfg.MessageCap != 3 {
		t.Errorf("unexpected overrides %s %d", cfg.LLMTimeout, cfg.MessageCap)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("unexpected origins %v", cfg.CORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Env:           "production",
			DatabaseURL:   "postgres://x",
			LLMProvider:   "openai",
			JWTSigningKey: "prod-key",
			Timezone:      "Asia/Seoul",
			MessageCap:    50,
			LLMTimeout:    time.Second,
			TokenTTL:      time.Hour,
			PublicAIRate:  6,
			PublicAIBurst: 3,
		}
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"no database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "claude" }, "LLM_PROVIDER"},
		{"no signing key", func(c *Config) { c.JWTSigningKey = "" }, "JWT_SIGNING_KEY"},
		{"dev key in production", func(c *Config) { c.JWTSigningKey = devSigningKey }, "development key"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Base" }, "TIMEZONE"},
		{"zero cap", func(c *Config) { c.MessageCap = 0 }, "MESSAGE_CAP"},
		{"zero ai rate", func(c *Config) { c.PublicAIRate = 0 }, "PUBLIC_AI_RATE"},
		{"zero ai burst", func(c *Config) { c.PublicAIBurst = 0 }, "PUBLIC_AI_BURST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
