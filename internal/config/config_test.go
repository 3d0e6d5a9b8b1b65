package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-123456"

func TestLoadDefaultsWithEnvSecret(t *testing.T) {
	t.Setenv("PRACTICE_JWT_SECRET", testSecret)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 12, cfg.JWT.BcryptCost)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "practice.", cfg.Outbox.ChannelPrefix)
	assert.Equal(t, time.UTC, cfg.Practice.Location())
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yml := `
env: production
server:
  port: 9000
database:
  host: db.internal
  port: 5433
jwt:
  secret: file-secret-file-secret-file-secret-xx
  access_ttl: 5m
practice:
  timezone: Europe/Berlin
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o600))
	t.Setenv("PRACTICE_DB_HOST", "db.override")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "db.override", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, "Europe/Berlin", cfg.Practice.Location().String())
	assert.Contains(t, cfg.Database.DSN(), "host=db.override port=5433")
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("PRACTICE_JWT_SECRET", "short")

	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
}
