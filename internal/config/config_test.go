package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := writeConfig(t, `
[client]
endpoint = "http://jmap.example.com/jmap"
timeout = "3s"
strategy = "client"

[storage]
backend = "memory"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://jmap.example.com/jmap", cfg.Client.Endpoint)
	assert.Equal(t, Duration(3*time.Second), cfg.Client.Timeout)
	assert.Equal(t, "client", cfg.Client.Strategy)
	assert.Equal(t, "primary", cfg.Client.AccountID)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "[client]\ntimeout = \"soon\"\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "not toml at all ="))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JMAP_ENDPOINT", "http://other/jmap")
	t.Setenv("JMAP_TIMEOUT", "250ms")
	t.Setenv("JMAP_STRATEGY", "client")
	t.Setenv("STORAGE_BACKEND", "memgraph")
	t.Setenv("MEMGRAPH_URI", "bolt://graph:7687")
	t.Setenv("LOG_PRETTY", "true")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "http://other/jmap", cfg.Client.Endpoint)
	assert.Equal(t, Duration(250*time.Millisecond), cfg.Client.Timeout)
	assert.Equal(t, "client", cfg.Client.Strategy)
	assert.Equal(t, BackendMemgraph, cfg.Storage.Backend)
	assert.Equal(t, "bolt://graph:7687", cfg.Memgraph.URI)
	assert.True(t, cfg.Log.Pretty)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	t.Setenv("JMAP_TIMEOUT", "later")
	assert.Error(t, Default().ApplyEnv())

	t.Setenv("JMAP_TIMEOUT", "")
	t.Setenv("LOG_PRETTY", "sometimes")
	assert.Error(t, Default().ApplyEnv())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.Client.Timeout = 0 }},
		{"unknown strategy", func(c *Config) { c.Client.Strategy = "pigeon" }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Storage.SQLitePath = "" }},
		{"memgraph without uri", func(c *Config) {
			c.Storage.Backend = BackendMemgraph
			c.Memgraph.URI = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}
