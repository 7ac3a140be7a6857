package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, envs := range aliases {
		for _, e := range envs {
			t.Setenv(e, "")
		}
	}
	for _, e := range []string{"SQLITE_PATH", "FETCH_MODE", "SCRAPE_MAX_RETRIES", "SCRAPE_RETRY_DELAY",
		"PLACEHOLDER_COVER_URL", "COVER_DIR", "DEBUG_HTML_DIR", "TELEGRAM_TOKEN", "ADMIN_TELEGRAM_IDS", "BROWSER_BIN"} {
		t.Setenv(e, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":3333", cfg.HTTPAddr)
	assert.Equal(t, "https://ipapi.co", cfg.GeoAPIBase)
	assert.Equal(t, FetchHTTP, cfg.FetchMode)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Empty(t, cfg.DatabaseURL)
	assert.True(t, filepath.IsAbs(cfg.SQLitePath))
	assert.Equal(t, filepath.Join("data", "katalog.db"), filepath.Join(filepath.Base(filepath.Dir(cfg.SQLitePath)), filepath.Base(cfg.SQLitePath)))
	assert.Equal(t, cfg.SQLitePath, cfg.DSN())
	assert.Empty(t, cfg.AdminIDs)
	assert.Empty(t, cfg.CoverDir)
}

func TestAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPABASE_DB_URL", "postgres://u:p@db/katalog")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("IPAPI_URL", "http://geo.local/")
	t.Setenv("TOR_PROXY", "127.0.0.1:9050")
	t.Setenv("CORS_PROXY_URL", "https://corsproxy.io/?")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db/katalog", cfg.DSN())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "http://geo.local", cfg.GeoAPIBase)
	assert.Equal(t, "127.0.0.1:9050", cfg.SocksProxy)
	assert.Equal(t, "https://corsproxy.io/?", cfg.RelayURL)
}

func TestPrimaryNameWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://primary/katalog")
	t.Setenv("DB_DSN", "postgres://other/katalog")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)
	assert.Equal(t, "postgres://primary/katalog", cfg.DatabaseURL)
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FETCH_MODE", "Browser")
	t.Setenv("SCRAPE_MAX_RETRIES", "5")
	t.Setenv("SCRAPE_RETRY_DELAY", "500ms")
	t.Setenv("ADMIN_TELEGRAM_IDS", "42, 7,")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, FetchBrowser, cfg.FetchMode)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, []int64{42, 7}, cfg.AdminIDs)
	assert.Equal(t, "123:abc", cfg.TelegramToken)
}

func TestInvalid(t *testing.T) {
	cases := map[string]string{
		"FETCH_MODE":         "curl",
		"SCRAPE_MAX_RETRIES": "0",
		"ADMIN_TELEGRAM_IDS": "42,abc",
	}
	for env, value := range cases {
		t.Run(env, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(env, value)
			_, err := FromViper(newViper())
			assert.Error(t, err)
		})
	}
}
