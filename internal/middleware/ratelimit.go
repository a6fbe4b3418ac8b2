package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
// 単一利用者のローカルサービスのため、リミッターはプロセス全体で共有する。
type RateLimiterConfig struct {
	GeneralRate  rate.Limit // API全般のレート（req/sec）
	GeneralBurst int        // API全般のバーストサイズ
	DataRate     rate.Limit // 外部データ取得のレート（req/sec）
	DataBurst    int        // 外部データ取得のバーストサイズ
}

// NewRateLimiterConfig は毎分あたりの許可リクエスト数から設定を組み立てる。
func NewRateLimiterConfig(generalPerMinute, dataPerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:  rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst: generalPerMinute,
		DataRate:     rate.Limit(float64(dataPerMinute) / 60.0),
		DataBurst:    dataPerMinute,
	}
}

// RateLimiter はAPI全般と外部データ取得の2種類のレート制限を提供する。
// 外部データ取得は上流APIのクォータを守るため、独立した低いレートで制限する。
type RateLimiter struct {
	config  RateLimiterConfig
	general *rate.Limiter
	data    *rate.Limiter
}

// NewRateLimiter は新しいRateLimiterを生成する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		config:  config,
		general: rate.NewLimiter(config.GeneralRate, config.GeneralBurst),
		data:    rate.NewLimiter(config.DataRate, config.DataBurst),
	}
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.general.Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded", slog.String("limit_type", "general"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DataMiddleware は外部データ取得専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) DataMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.data.Allow() {
				writeRateLimitResponse(w, rl.config.DataRate)
				slog.Warn("rate limit exceeded", slog.String("limit_type", "data"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "rate_limit_exceeded",
		"message":  "Too many requests. Please try again later.",
		"category": "system",
		"action":   "Please wait and retry after the specified time.",
	})
}
