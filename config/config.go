// Package config loads service configuration from the environment. A .env
// file in the working directory is read first when present.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the screening service.
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"` // json or console

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	GoogleMapsAPIKey string `env:"GOOGLE_MAPS_API_KEY"`
	TavilyAPIKey     string `env:"TAVILY_SEARCH_API_KEY"`
	ScreeningAPIKey  string `env:"CONSOLIDATED_SCREENING_LIST_API_KEY"`

	MaxRounds      int           `env:"MAX_TOOL_ROUNDS" envDefault:"8"`
	MaxConcurrent  int           `env:"MAX_CONCURRENT_REQUESTS" envDefault:"4"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5m"`
	RoundTimeout   time.Duration `env:"TOOL_ROUND_TIMEOUT" envDefault:"60s"`
}

// Load reads configuration from .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
