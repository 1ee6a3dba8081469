package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Scan
	Feeds              []FeedSource
	FeedsFile          string
	ScanInterval       time.Duration
	ScanAutostart      bool
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int
	BackoffMax         time.Duration
	AllowPrivateFeeds  bool

	// Cleanup
	RejectedRetentionDays int

	// Settings
	SettingsPath string

	// Cache
	RedisAddr string
	CacheTTL  time.Duration

	// Listing
	PageSize       int
	PostsListLimit int

	// Admin
	AdminToken string

	// Rate Limit
	RateLimitGeneral int
	RateLimitImport  int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、またはFEEDS_FILEが読み込めない場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.FeedsFile = getEnvString("FEEDS_FILE", "")
	cfg.ScanInterval = getEnvDuration("SCAN_INTERVAL", 10*time.Minute)
	cfg.ScanAutostart = getEnvBool("SCAN_AUTOSTART", true)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 4)
	cfg.BackoffMax = getEnvDuration("BACKOFF_MAX", 2*time.Hour)
	cfg.AllowPrivateFeeds = getEnvBool("ALLOW_PRIVATE_FEEDS", false)
	cfg.RejectedRetentionDays = getEnvInt("REJECTED_RETENTION_DAYS", 180)
	cfg.SettingsPath = getEnvString("SETTINGS_PATH", "data/settings.json")
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "")
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", time.Minute)
	cfg.PageSize = getEnvInt("PAGE_SIZE", 7)
	cfg.PostsListLimit = getEnvInt("POSTS_LIST_LIMIT", 50)
	cfg.AdminToken = getEnvString("ADMIN_TOKEN", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitImport = getEnvInt("RATE_LIMIT_IMPORT", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	// フィードソース: FEEDS_FILE と FEED_URLS をマージする
	var fileFeeds []FeedSource
	if cfg.FeedsFile != "" {
		loaded, err := LoadFeedSources(cfg.FeedsFile)
		if err != nil {
			return nil, err
		}
		fileFeeds = loaded
	}
	cfg.Feeds = MergeFeedSources(fileFeeds, getEnvList("FEED_URLS"))

	return cfg, nil
}

// FeedURLs は有効なフィードソースのURL一覧を返す。
func (c *Config) FeedURLs() []string {
	urls := make([]string, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		if f.Enabled {
			urls = append(urls, f.URL)
		}
	}
	return urls
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvList はカンマ区切りの環境変数を空要素を除いたスライスとして返す。
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
