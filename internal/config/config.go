package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string `mapstructure:"PORT"`
	Env             string `mapstructure:"ENV"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	DBMaxOpenConns  int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	NotifyChannel   string `mapstructure:"POSTGRES_NOTIFY_CHANNEL"`
	LLMProvider     string `mapstructure:"LLM_PROVIDER"`
	OpenAIAPIKey    string `mapstructure:"OPENAI_API_KEY"`
	OpenAIChatModel string `mapstructure:"OPENAI_MODEL_CHAT"`
	// OpenAISummaryModel serves schema-constrained calls; empty means the
	// chat model.
	OpenAISummaryModel string        `mapstructure:"OPENAI_MODEL_SUMMARY"`
	OpenAIBaseURL      string        `mapstructure:"OPENAI_BASE_URL"`
	GeminiAPIKey       string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel        string        `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL      string        `mapstructure:"GEMINI_BASE_URL"`
	LLMTimeout         time.Duration `mapstructure:"LLM_TIMEOUT"`
	ResponseLanguage   string        `mapstructure:"RESPONSE_LANGUAGE"`
	Timezone           string        `mapstructure:"TIMEZONE"`
	MessageCap         int           `mapstructure:"MESSAGE_CAP"`
	JWTSigningKey      string        `mapstructure:"JWT_SIGNING_KEY"`
	TokenTTL           time.Duration `mapstructure:"TOKEN_TTL"`
	ClinicianHash      string        `mapstructure:"CLINICIAN_PASSCODE_HASH"`
	KafkaBrokers       []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic         string        `mapstructure:"KAFKA_TOPIC"`
	ArchiveBucket      string        `mapstructure:"ARCHIVE_BUCKET"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	// PublicAIRate limits the unauthenticated model-backed routes, in
	// requests per minute per client IP.
	PublicAIRate  float64 `mapstructure:"PUBLIC_AI_RATE"`
	PublicAIBurst int     `mapstructure:"PUBLIC_AI_BURST"`
}

// devSigningKey signs tokens in development when JWT_SIGNING_KEY is unset.
const devSigningKey = "carepath-development-signing-key"

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_OPEN_CONNS", "POSTGRES_NOTIFY_CHANNEL",
	"LLM_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL_CHAT", "OPENAI_MODEL_SUMMARY", "OPENAI_BASE_URL",
	"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "LLM_TIMEOUT",
	"RESPONSE_LANGUAGE", "TIMEZONE", "MESSAGE_CAP",
	"JWT_SIGNING_KEY", "TOKEN_TTL", "CLINICIAN_PASSCODE_HASH",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "ARCHIVE_BUCKET", "CORS_ORIGINS",
	"PUBLIC_AI_RATE", "PUBLIC_AI_BURST",
}

// Load reads the .env file, if any, and the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("POSTGRES_NOTIFY_CHANNEL", "profile_updates")
	v.SetDefault("LLM_PROVIDER", "openai")
	v.SetDefault("OPENAI_MODEL_CHAT", "gpt-4o-mini")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("LLM_TIMEOUT", "30s")
	v.SetDefault("RESPONSE_LANGUAGE", "Korean")
	v.SetDefault("TIMEZONE", "Asia/Seoul")
	v.SetDefault("MESSAGE_CAP", 50)
	v.SetDefault("TOKEN_TTL", "720h")
	v.SetDefault("KAFKA_TOPIC", "carepath-events")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("PUBLIC_AI_RATE", 6)
	v.SetDefault("PUBLIC_AI_BURST", 3)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// a missing .env file is fine
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	if cfg.OpenAISummaryModel == "" {
		cfg.OpenAISummaryModel = cfg.OpenAIChatModel
	}
	if cfg.JWTSigningKey == "" && cfg.IsDev() {
		cfg.JWTSigningKey = devSigningKey
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location is the time zone dates of logs and records are computed in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Validate checks that the configuration is usable by the server.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.LLMProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("LLM_PROVIDER must be \"openai\" or \"gemini\", got %q", c.LLMProvider)
	}
	if c.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if !c.IsDev() && c.JWTSigningKey == devSigningKey {
		return fmt.Errorf("JWT_SIGNING_KEY must not be the development key when ENV=%q", c.Env)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.MessageCap <= 0 {
		return fmt.Errorf("MESSAGE_CAP must be positive, got %d", c.MessageCap)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout)
	}
	if c.PublicAIRate <= 0 || c.PublicAIBurst <= 0 {
		return fmt.Errorf("PUBLIC_AI_RATE and PUBLIC_AI_BURST must be positive, got %v and %d", c.PublicAIRate, c.PublicAIBurst)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	return nil
}
