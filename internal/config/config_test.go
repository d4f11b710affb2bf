package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"ENV_FILE", "HTTP_ADDR", "LOG_LEVEL", "HTTP_CLIENT_TIMEOUT", "RELAY_TIMEOUT", "MAX_BODY_BYTES",
	"STRICT_PROMPT", "UPSTREAM_MAX_ATTEMPTS", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
}

// clearEnv снимает переменные на время теста и возвращает их после.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		key := key
		prev, ok := os.LookupEnv(key)
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() {
			if ok {
				os.Setenv(key, prev)
			} else {
				os.Unsetenv(key)
			}
		})
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 60*time.Second, cfg.RelayTimeout)
	assert.Equal(t, int64(102400), cfg.MaxBodyBytes)
	assert.True(t, cfg.StrictPrompt)
	assert.Equal(t, "", cfg.Upstream.APIKey)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Upstream.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.Upstream.Model)
	assert.Equal(t, 1, cfg.Upstream.MaxAttempts)
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	content := "OPENAI_API_KEY=sk-file\nOPENAI_MODEL=\"gpt-test\"\n# comment\nHTTP_ADDR=:7000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("HTTP_ADDR", ":9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-file", cfg.Upstream.APIKey)
	assert.Equal(t, "gpt-test", cfg.Upstream.Model)
	// переменная процесса важнее файла
	assert.Equal(t, ":9000", cfg.HTTPAddr)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_CLIENT_TIMEOUT", "5s")
	t.Setenv("RELAY_TIMEOUT", "20s")
	t.Setenv("MAX_BODY_BYTES", "2048")
	t.Setenv("STRICT_PROMPT", "false")
	t.Setenv("UPSTREAM_MAX_ATTEMPTS", "3")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:1234/v1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 20*time.Second, cfg.RelayTimeout)
	assert.Equal(t, int64(2048), cfg.MaxBodyBytes)
	assert.False(t, cfg.StrictPrompt)
	assert.Equal(t, 3, cfg.Upstream.MaxAttempts)
	assert.Equal(t, "http://localhost:1234/v1", cfg.Upstream.BaseURL)
}

func TestLoadInvalidValues(t *testing.T) {
	cases := map[string]string{
		"HTTP_CLIENT_TIMEOUT":   "soon",
		"RELAY_TIMEOUT":         "0s",
		"MAX_BODY_BYTES":        "0",
		"STRICT_PROMPT":         "maybe",
		"UPSTREAM_MAX_ATTEMPTS": "-1",
		"OPENAI_BASE_URL":       "",
		"OPENAI_MODEL":          "",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}
