package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Telegram mini-app init data verification.
	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN"`
	InitDataMaxAge   time.Duration `env:"INITDATA_MAX_AGE" envDefault:"1h"`

	// Backend-to-backend api key, previous kept during rotation.
	APIKey         string   `env:"API_KEY"`
	APIKeyPrevious string   `env:"API_KEY_PREVIOUS"`
	ServiceScopes  []string `env:"SERVICE_SCOPES" envSeparator:"," envDefault:"records:read,records:write"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"1h"`

	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	OpenAIModel   string        `env:"OPENAI_MODEL"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAITimeout time.Duration `env:"OPENAI_TIMEOUT" envDefault:"90s"`

	// How many prior turns go into the prompt window.
	HistoryTurns int `env:"HISTORY_TURNS" envDefault:"10"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is not set")
	}
	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	return cfg, nil
}
