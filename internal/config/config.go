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
	// Backend（ホスト型認証・データベースサービス）
	BackendURL    string
	BackendAPIKey string

	// OAuth
	OAuthRedirectURL string

	// 外部テーブルデータAPI（管理者設定の接続情報）
	DataAPIURL   string
	DataToken    string
	DataBaseID   string
	DataTimeout  time.Duration
	DataMaxPages int

	// サブスクリプション
	TrialDuration time.Duration
	BillingCycle  time.Duration

	// お知らせフィード
	AnnouncementsFeedURL string
	AnnouncementsTTL     time.Duration
	AnnouncementsLimit   int

	// ローカルストア
	LocalStorePath string

	// ルートガードのリダイレクト先
	UnauthenticatedRoute string
	PaywallRoute         string

	// テーマ
	ForceDarkRoutes []string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitData    int

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BackendURL = os.Getenv("BACKEND_URL")
	if cfg.BackendURL == "" {
		missing = append(missing, "BACKEND_URL")
	}

	cfg.BackendAPIKey = os.Getenv("BACKEND_API_KEY")
	if cfg.BackendAPIKey == "" {
		missing = append(missing, "BACKEND_API_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.OAuthRedirectURL = getEnvString("OAUTH_REDIRECT_URL", cfg.BaseURL+"/auth/callback")
	cfg.DataAPIURL = getEnvString("DATA_API_URL", "https://api.airtable.com")
	cfg.DataToken = os.Getenv("DATA_API_TOKEN")
	cfg.DataBaseID = os.Getenv("DATA_BASE_ID")
	cfg.DataTimeout = getEnvDuration("DATA_TIMEOUT", 10*time.Second)
	cfg.DataMaxPages = getEnvInt("DATA_MAX_PAGES", 1)
	cfg.TrialDuration = getEnvDuration("TRIAL_DURATION", 72*time.Hour)
	cfg.BillingCycle = getEnvDuration("BILLING_CYCLE", 30*24*time.Hour)
	cfg.AnnouncementsFeedURL = os.Getenv("ANNOUNCEMENTS_FEED_URL")
	cfg.AnnouncementsTTL = getEnvDuration("ANNOUNCEMENTS_TTL", 15*time.Minute)
	cfg.AnnouncementsLimit = getEnvInt("ANNOUNCEMENTS_LIMIT", 20)
	cfg.LocalStorePath = getEnvString("LOCAL_STORE_PATH", "pathway.db")
	cfg.UnauthenticatedRoute = getEnvString("UNAUTHENTICATED_ROUTE", "/welcome")
	cfg.PaywallRoute = getEnvString("PAYWALL_ROUTE", "/paywall")
	cfg.ForceDarkRoutes = getEnvStringList("FORCE_DARK_ROUTES", []string{"/welcome", "/onboarding", "/paywall"})
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitData = getEnvInt("RATE_LIMIT_DATA", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvStringList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
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
