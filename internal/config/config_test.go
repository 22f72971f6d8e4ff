package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // no .env files around

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.um.warszawa.pl/api/action", cfg.BaseURL)
	assert.Equal(t, "stops.json", cfg.StopsFile)
	assert.Equal(t, "lines.json", cfg.IndexFile)
	assert.Equal(t, "lines.json.manifest.json", cfg.ManifestFile())
	assert.Equal(t, 100*time.Millisecond, cfg.RequestDelay)
	assert.Equal(t, 10, cfg.ProgressEvery)
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, 0, cfg.TimetableCacheSize)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.ErrorIs(t, cfg.RequireAPIKey(), ErrMissingAPIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ZTM_API_KEY", "secret")
	t.Setenv("ZTM_REQUEST_DELAY_MS", "250")
	t.Setenv("ZTM_ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("ZTM_BASE_URL", "http://localhost:9999/api/action/")
	t.Setenv("ZTM_TIMETABLE_CACHE_SIZE", "256")

	cfg, err := Load()
	require.NoError(t, err)

	assert.NoError(t, cfg.RequireAPIKey())
	assert.Equal(t, 250*time.Millisecond, cfg.RequestDelay)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "http://localhost:9999/api/action", cfg.BaseURL)
	assert.Equal(t, 256, cfg.TimetableCacheSize)
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ZTM_LOG_FORMAT", "xml")

	_, err := Load()
	assert.Error(t, err)
}
