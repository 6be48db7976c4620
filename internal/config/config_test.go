package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("MODE", "")
	t.Setenv("DOCSTORE", "")
	t.Setenv("ATTEMPT_GUARD", "")

	cfg := FromEnv()
	assert.Equal(t, ModeOffline, cfg.Mode)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sql", cfg.DocStore)
	assert.Equal(t, "loose", cfg.AttemptGuard)
	assert.True(t, cfg.EnableLocalAuth)
	assert.False(t, cfg.AGSEnabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("AGS_TIMEOUT", "2s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("AGS_TOKEN_URL", "https://lms.example/token")
	t.Setenv("AGS_CLIENT_ID", "tool")

	cfg := FromEnv()
	assert.Equal(t, ModeOnline, cfg.Mode)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 2*time.Second, cfg.AGSTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.EnableLocalAuth)
	assert.True(t, cfg.LogJSON)
	assert.True(t, cfg.AGSEnabled())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(p, []byte("HTTP_ADDR=:9191\n"), 0o600))
	// godotenv never overrides a variable that is already present.
	t.Setenv("HTTP_ADDR", "")
	require.NoError(t, os.Unsetenv("HTTP_ADDR"))

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9191", cfg.HTTPAddr)

	_, err = Load(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
}
