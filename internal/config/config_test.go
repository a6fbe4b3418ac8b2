package config

import (
	"testing"
	"time"
)

// setRequiredEnv は必須環境変数をテスト用に設定する。
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BACKEND_URL", "https://backend.example.com")
	t.Setenv("BACKEND_API_KEY", "test-api-key")
	t.Setenv("BASE_URL", "http://localhost:8080")
}

func TestLoad_RequiredMissing(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("BACKEND_API_KEY", "")
	t.Setenv("BASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("必須環境変数が未設定の場合はエラーを返すべき")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}

	if cfg.TrialDuration != 72*time.Hour {
		t.Errorf("TrialDuration = %v, want 72h", cfg.TrialDuration)
	}
	if cfg.BillingCycle != 30*24*time.Hour {
		t.Errorf("BillingCycle = %v, want 720h", cfg.BillingCycle)
	}
	if cfg.DataMaxPages != 1 {
		t.Errorf("DataMaxPages = %d, want 1", cfg.DataMaxPages)
	}
	if cfg.UnauthenticatedRoute != "/welcome" {
		t.Errorf("UnauthenticatedRoute = %s, want /welcome", cfg.UnauthenticatedRoute)
	}
	if cfg.PaywallRoute != "/paywall" {
		t.Errorf("PaywallRoute = %s, want /paywall", cfg.PaywallRoute)
	}
	if cfg.OAuthRedirectURL != "http://localhost:8080/auth/callback" {
		t.Errorf("OAuthRedirectURL = %s, want BASE_URL+/auth/callback", cfg.OAuthRedirectURL)
	}
	if len(cfg.ForceDarkRoutes) != 3 {
		t.Errorf("ForceDarkRoutes = %v, want 3件のデフォルト", cfg.ForceDarkRoutes)
	}
}

func TestLoad_AdminDataPairOptional(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATA_API_TOKEN", "")
	t.Setenv("DATA_BASE_ID", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}

	// 管理者ペアは任意項目。未設定でも起動は成功する。
	if cfg.DataToken != "" || cfg.DataBaseID != "" {
		t.Errorf("DataToken/DataBaseID = %q/%q, want 空", cfg.DataToken, cfg.DataBaseID)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRIAL_DURATION", "24h")
	t.Setenv("FORCE_DARK_ROUTES", "/a, /b")
	t.Setenv("RATE_LIMIT_DATA", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}

	if cfg.TrialDuration != 24*time.Hour {
		t.Errorf("TrialDuration = %v, want 24h", cfg.TrialDuration)
	}
	if len(cfg.ForceDarkRoutes) != 2 || cfg.ForceDarkRoutes[1] != "/b" {
		t.Errorf("ForceDarkRoutes = %v, want [/a /b]", cfg.ForceDarkRoutes)
	}
	if cfg.RateLimitData != 5 {
		t.Errorf("RateLimitData = %d, want 5", cfg.RateLimitData)
	}
}
