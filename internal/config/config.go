package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	FetchHTTP    = "http"
	FetchBrowser = "browser"
)

// Config holds every setting of the app; it is loaded once and passed down.
type Config struct {
	// DatabaseURL is a Postgres DSN. Empty means the SQLite file at SQLitePath.
	DatabaseURL string
	SQLitePath  string
	HTTPAddr    string
	GeoAPIBase  string

	FetchMode  string
	SocksProxy string
	RelayURL   string
	BrowserBin string

	MaxRetries       int
	RetryDelay       time.Duration
	PlaceholderCover string
	CoverDir         string
	DebugHTMLDir     string

	TelegramToken string
	AdminIDs      []int64
}

// Several names are accepted for the same setting; the first one set wins.
var aliases = map[string][]string{
	"database_url": {"DATABASE_URL", "SUPABASE_DB_URL", "DB_DSN", "POSTGRES_URL"},
	"port":         {"PORT", "HTTP_PORT"},
	"geo_api_base": {"GEO_API_BASE", "IPAPI_URL"},
	"socks_proxy":  {"SOCKS_PROXY", "TOR_PROXY"},
	"relay_url":    {"RELAY_URL", "CORS_PROXY_URL"},
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env: %v", err)
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	for key, envs := range aliases {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	v.SetDefault("sqlite_path", "data/katalog.db")
	v.SetDefault("port", 3333)
	v.SetDefault("geo_api_base", "https://ipapi.co")
	v.SetDefault("fetch_mode", FetchHTTP)
	v.SetDefault("scrape_max_retries", 3)
	v.SetDefault("scrape_retry_delay", "2s")
	v.SetDefault("cover_dir", "")
	return v
}

func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabaseURL:      strings.TrimSpace(v.GetString("database_url")),
		SQLitePath:       resolvePath(v.GetString("sqlite_path")),
		HTTPAddr:         ":" + strconv.Itoa(v.GetInt("port")),
		GeoAPIBase:       strings.TrimRight(v.GetString("geo_api_base"), "/"),
		FetchMode:        strings.ToLower(strings.TrimSpace(v.GetString("fetch_mode"))),
		SocksProxy:       v.GetString("socks_proxy"),
		RelayURL:         v.GetString("relay_url"),
		BrowserBin:       v.GetString("browser_bin"),
		MaxRetries:       v.GetInt("scrape_max_retries"),
		RetryDelay:       v.GetDuration("scrape_retry_delay"),
		PlaceholderCover: v.GetString("placeholder_cover_url"),
		CoverDir:         resolvePath(v.GetString("cover_dir")),
		DebugHTMLDir:     resolvePath(v.GetString("debug_html_dir")),
		TelegramToken:    v.GetString("telegram_token"),
	}

	if cfg.FetchMode != FetchHTTP && cfg.FetchMode != FetchBrowser {
		return nil, fmt.Errorf("FETCH_MODE must be %q or %q, got %q", FetchHTTP, FetchBrowser, cfg.FetchMode)
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("SCRAPE_MAX_RETRIES must be at least 1")
	}
	if v.GetInt("port") <= 0 {
		return nil, fmt.Errorf("invalid PORT %q", v.GetString("port"))
	}

	ids, err := parseIDs(v.GetString("admin_telegram_ids"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_IDS: %w", err)
	}
	cfg.AdminIDs = ids
	return cfg, nil
}

// DSN is what db.Open takes: the Postgres URL when set, else the SQLite path.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.SQLitePath
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func resolvePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return p
	}
	if filepath.IsAbs(p) {
		return p
	}

	if exe, err := os.Executable(); err == nil {
		base := filepath.Dir(exe)
		return filepath.Clean(filepath.Join(base, p))
	}

	if cwd, err := os.Getwd(); err == nil {
		return filepath.Clean(filepath.Join(cwd, p))
	}

	return p
}
