package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, ".edu", cfg.Auth.EmailDomainSuffix)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWTExpiration)
	assert.Equal(t, 10*time.Second, cfg.Persist.Timeout)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("LLM_TEMPERATURE", "1.2")
	t.Setenv("PERSIST_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, StoreRedis, cfg.Store.Driver)
	assert.Equal(t, "cache:6379", cfg.Store.RedisAddr)
	assert.InDelta(t, 1.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 3*time.Second, cfg.Persist.Timeout)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_PATH", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LLM_MODEL=gpt-4o\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LLM_MODEL") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"7070\"\nstore:\n  driver: memory\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store: Store{Driver: StoreSQLite},
			Auth:  Auth{JWTSecret: "s"},
			LLM:   LLM{Temperature: 0.7},
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Store.Driver = "cassandra"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Store.Driver = StorePostgres
	assert.Error(t, cfg.Validate())
	cfg.Store.PostgresDSN = "postgres://localhost/chat"
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Auth.JWTSecret = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.LLM.Temperature = 2.5
	assert.Error(t, cfg.Validate())
}
