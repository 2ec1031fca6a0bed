package configloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: \":9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, "https://api.covalenthq.com", cfg.Covalent.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Covalent.RequestTimeout())
	assert.Equal(t, 90*time.Second, cfg.Cache.FreshFor())
	assert.Equal(t, 30*time.Minute, cfg.Cache.EvictAfter())
	assert.Equal(t, 10000, cfg.Cache.MaxEntries)
	assert.Equal(t, []string{"nft"}, cfg.Aggregator.ExcludeTypes)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadReadsYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
covalent:
  baseURL: http://localhost:9999
  requestTimeoutMillis: 1500
  requestsPerSecond: 4
cache:
  freshForSeconds: 120
  evictAfterMinutes: 10
  maxEntries: 50
aggregator:
  excludeTypes: [nft, dust]
swagger:
  enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.Covalent.BaseURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Covalent.RequestTimeout())
	assert.Equal(t, 4.0, cfg.Covalent.RequestsPerSecond)
	assert.Equal(t, 2*time.Minute, cfg.Cache.FreshFor())
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.Equal(t, []string{"nft", "dust"}, cfg.Aggregator.ExcludeTypes)
	assert.True(t, cfg.Swagger.Enabled)
	assert.Equal(t, "/swagger", cfg.Swagger.Path)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("COVALENT_API_KEY", "ckey_env")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "covalent:\n  apiKey: ckey_file\n"))
	require.NoError(t, err)

	assert.Equal(t, "ckey_env", cfg.Covalent.APIKey)
	assert.Equal(t, ":7070", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [not, a, map]"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "cache:\n  freshForSeconds: 7200\n  evictAfterMinutes: 5\n"))
	assert.Error(t, err)
}
