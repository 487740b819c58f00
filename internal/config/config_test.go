package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/fieldsync/internal/config"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.ListenAddr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Std())
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen_addr: "0.0.0.0:9090"
  read_timeout: 5s
store:
  backend: mongo
  mongo:
    uri: mongodb://db:27017
    database: fieldsync_prod
log:
  level: debug
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, "mongo", cfg.Store.Backend)
	assert.Equal(t, "fieldsync_prod", cfg.Store.Mongo.Database)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset fields keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout.Std())
	assert.Equal(t, 10*time.Second, cfg.Store.Mongo.ConnectTimeout.Std())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  read_timeout: soon\n"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
