package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Port     string
	Env      string
	Database string

	JWTSecret    string
	TokenTTL     time.Duration
	CookieSecure bool
	RedisURL     string

	LLMKey     string
	LLMBaseURL string
	LLMModel   string
	LLMReferer string
	LLMTitle   string
	LLMTimeout time.Duration

	MaxUploadBytes int64
}

const devSecret = "leanpass-dev-secret-change-me"

// Production reports whether APP_ENV selects production mode.
func (c Config) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Load reads configuration from the environment, providing sensible defaults.
func Load() (Config, error) {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()

	cfg := Config{
		Port:       getEnv("PORT", "8080"),
		Env:        strings.ToLower(getEnv("APP_ENV", "development")),
		Database:   getEnv("DATABASE_PATH", "./data/leanpass.db"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		RedisURL:   os.Getenv("REDIS_URL"),
		LLMKey:     os.Getenv("OPENROUTER_API_KEY"),
		LLMBaseURL: strings.TrimRight(getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"), "/"),
		LLMModel:   getEnv("LLM_MODEL", "nvidia/llama-3.1-nemotron-ultra-253b-v1:free"),
		LLMReferer: getEnv("LLM_REFERER", "http://localhost:8080"),
		LLMTitle:   getEnv("LLM_TITLE", "LeanPass Study Guide Generator"),
	}

	var err error
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.LLMTimeout, err = durationEnv("LLM_TIMEOUT", 120*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CookieSecure, err = boolEnv("COOKIE_SECURE", false); err != nil {
		return Config{}, err
	}
	if cfg.MaxUploadBytes, err = intEnv("MAX_UPLOAD_BYTES", 10<<20); err != nil {
		return Config{}, err
	}

	if cfg.JWTSecret == "" {
		if cfg.Production() {
			return Config{}, errors.New("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = devSecret
	}

	if dir := filepath.Dir(cfg.Database); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Config{}, fmt.Errorf("ensure database dir %s: %w", dir, err)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, raw)
	}
	return b, nil
}

func intEnv(key string, fallback int64) (int64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid size %q", key, raw)
	}
	return n, nil
}
