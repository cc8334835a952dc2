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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAPIServer_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  user: hatchmark
  password: secret
auth:
  jwt_secret: super-secret
`)

	cfg, err := LoadAPIServer(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "hatchmark", cfg.Database.Database)
	assert.Equal(t, "10", cfg.Ledger.MinStake)
	assert.Equal(t, 90, cfg.Matcher.RegisterThreshold)
	assert.Equal(t, 70, cfg.Matcher.VerifyThreshold)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadAPIServer_Overrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
database:
  host: db.internal
matcher:
  register_threshold: 95
  verify_threshold: 80
auth:
  jwt_secret: super-secret
  issuer: hatchmark
`)

	cfg, err := LoadAPIServer(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 95, cfg.Matcher.RegisterThreshold)
	assert.Equal(t, 80, cfg.Matcher.VerifyThreshold)
	assert.Equal(t, "hatchmark", cfg.Auth.Issuer)
}

func TestLoadAPIServer_RequiresJWTSecret(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
`)

	_, err := LoadAPIServer(path)
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestLoadAPIServer_RejectsInvertedThresholds(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
matcher:
  register_threshold: 60
  verify_threshold: 80
auth:
  jwt_secret: super-secret
`)

	_, err := LoadAPIServer(path)
	assert.ErrorContains(t, err, "register_threshold")
}

func TestLoadAPIServer_MissingFile(t *testing.T) {
	_, err := LoadAPIServer(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadIndexer(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
ledger:
  feed_url: http://api-server:8080/ledger
`)

	cfg, err := LoadIndexer(path)
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Indexer.PollInterval)
	assert.Equal(t, 100, cfg.Indexer.PageSize)
	assert.Equal(t, "http://api-server:8080/ledger", cfg.Ledger.FeedURL)
}

func TestLoadIndexer_RequiresFeedURL(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
`)

	_, err := LoadIndexer(path)
	assert.ErrorContains(t, err, "feed_url")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(LoggingConfig{Level: "not-a-level"})
	assert.Error(t, err)
}
