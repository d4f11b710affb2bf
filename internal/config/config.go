package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string
	LogLevel       string
	RequestTimeout time.Duration
	RelayTimeout   time.Duration
	MaxBodyBytes   int64
	StrictPrompt   bool
	Upstream       UpstreamConfig
}

type UpstreamConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxAttempts int
}

// Load читает .env (если есть) и переменные окружения.
// Переменные процесса имеют приоритет над файлом.
func Load() (Config, error) {
	if err := loadEnvFile(getEnv("ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	var cfg Config

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":5000")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	reqTimeout, err := parseDuration(getEnv("HTTP_CLIENT_TIMEOUT", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_CLIENT_TIMEOUT: %w", err)
	}
	cfg.RequestTimeout = reqTimeout

	// RELAY_TIMEOUT покрывает все попытки и паузы между ними.
	relayTimeout, err := parseDuration(getEnv("RELAY_TIMEOUT", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RELAY_TIMEOUT: %w", err)
	}
	cfg.RelayTimeout = relayTimeout

	maxBody, err := parsePositiveInt(getEnv("MAX_BODY_BYTES", "102400"))
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_BODY_BYTES: %w", err)
	}
	cfg.MaxBodyBytes = int64(maxBody)

	strict, err := parseBoolDefault(getEnv("STRICT_PROMPT", ""), true)
	if err != nil {
		return Config{}, fmt.Errorf("parse STRICT_PROMPT: %w", err)
	}
	cfg.StrictPrompt = strict

	attempts, err := parsePositiveInt(getEnv("UPSTREAM_MAX_ATTEMPTS", "1"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPSTREAM_MAX_ATTEMPTS: %w", err)
	}

	cfg.Upstream = UpstreamConfig{
		APIKey:      getEnv("OPENAI_API_KEY", ""),
		BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		MaxAttempts: attempts,
	}
	if cfg.Upstream.BaseURL == "" {
		return Config{}, errors.New("OPENAI_BASE_URL is empty")
	}
	if cfg.Upstream.Model == "" {
		return Config{}, errors.New("OPENAI_MODEL is empty")
	}

	return cfg, nil
}

// loadEnvFile не перезаписывает уже заданные переменные. Отсутствие файла не ошибка.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("duration is empty")
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", value)
	}
	return d, nil
}

func parsePositiveInt(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("must be >= 1, got %d", n)
	}
	return n, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

// parseBoolDefault parses optional boolean with default value.
func parseBoolDefault(value string, def bool) (bool, error) {
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}
