package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("STORE_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, time.UTC, cfg.Store.Location)
	assert.Equal(t, 20*time.Second, cfg.Analysis.NarrativeTimeout)
	assert.Equal(t, 400, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.Positive(t, cfg.Analysis.WorkerCount)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("STORE_TIMEZONE", "Europe/Paris")
	t.Setenv("WORKER_COUNT", "3")
	t.Setenv("NARRATIVE_TIMEOUT", "5s")
	t.Setenv("LLM_TEMPERATURE", "0.7")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "Europe/Paris", cfg.Store.Location.String())
	assert.Equal(t, 3, cfg.Analysis.WorkerCount)
	assert.Equal(t, 5*time.Second, cfg.Analysis.NarrativeTimeout)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 0, cfg.Store.RedisDB, "invalid numbers fall back to the default")
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown driver":       {"STORE_DRIVER": "mongo"},
		"postgres without dsn": {"STORE_DRIVER": "postgres", "DATABASE_URL": ""},
		"bad timezone":         {"STORE_DRIVER": "memory", "STORE_TIMEZONE": "Mars/Olympus"},
		"zero workers":         {"STORE_DRIVER": "memory", "WORKER_COUNT": "0"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("STORE_TIMEZONE", "UTC")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HEALTHSIGNAL_DOTENV_CHECK=loaded\n"), 0o600))
	t.Setenv("HEALTHSIGNAL_DOTENV_CHECK", "")
	os.Unsetenv("HEALTHSIGNAL_DOTENV_CHECK")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("HEALTHSIGNAL_DOTENV_CHECK"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")), "missing files are ignored")
}
