package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "site.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "messages.log", cfg.Log.FilePath)
	assert.Equal(t, 5, cfg.Log.MaxSizeMB)
	assert.Equal(t, 10, cfg.Log.MaxBackups)

	assert.Error(t, cfg.ValidateForServer(), "a signing secret is required")
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9090"
database:
  path: /tmp/stocks.db
auth:
  secret: from-file
  token_ttl: 2h
quotes:
  timeout: 3s
`), 0o644))

	t.Setenv("STOCKS_AUTH_SECRET", "from-env")
	t.Setenv("STOCKS_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, "/tmp/stocks.db", cfg.Database.Path)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 3*time.Second, cfg.Quotes.Timeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.NoError(t, cfg.ValidateForServer())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(NewViper(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
