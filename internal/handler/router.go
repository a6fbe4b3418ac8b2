package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/metrics"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Guard             *middleware.Guard
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string

	// 認証／セッション
	SessionService SessionServiceInterface

	// アプリ内操作
	OnboardingService   OnboardingServiceInterface
	ThemeService        ThemeServiceInterface
	ProgressService     ProgressServiceInterface
	AnnouncementService AnnouncementServiceInterface

	// 外部テーブルデータ
	Viewer            ViewerInterface
	CredentialService CredentialServiceInterface
	DataMetrics       DataMetrics

	// メトリクス公開
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → RateLimit(General)
//
// 認証ルート（/auth/*）と/health、/metricsはガードの外に配置する。
// /api/*は認証ガード、/api/data*はさらに購読ガードとデータ用レート制限を通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	authHandler := NewAuthHandler(deps.SessionService)
	appHandler := NewAppHandler(deps.OnboardingService, deps.ThemeService,
		deps.ProgressService, deps.AnnouncementService)
	dataHandler := NewDataHandler(deps.Viewer, deps.CredentialService, deps.DataMetrics)

	// --- ガード外のルート ---

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/signup", authHandler.Signup)
		r.Get("/google", authHandler.GoogleLogin)
		r.Get("/apple", authHandler.AppleLogin)
		r.Post("/logout", authHandler.Logout)
		r.Get("/session", authHandler.Session)
	})

	r.Get("/health", healthHandler)

	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認証ガード付きのルート ---

	r.Group(func(r chi.Router) {
		r.Use(deps.Guard.RequireAuth())

		r.Post("/api/onboarding/complete", appHandler.CompleteOnboarding)
		r.Post("/api/subscription/start", appHandler.StartSubscription)
		r.Get("/api/theme", appHandler.GetTheme)
		r.Post("/api/theme", appHandler.SetTheme)
		r.Get("/api/theme/resolve", appHandler.ResolveTheme)
		r.Get("/api/progress", appHandler.GetProgress)
		r.Post("/api/progress", appHandler.MarkProgress)
		r.Get("/api/announcements", appHandler.Announcements)
	})

	// --- 認証＋購読ガード付きのルート ---

	r.Group(func(r chi.Router) {
		r.Use(deps.Guard.RequireSubscription())
		r.Use(deps.RateLimiter.DataMiddleware())

		r.Get("/api/data/{table}", dataHandler.GetTable)
		r.Get("/api/data-status", dataHandler.GetStatus)
		r.Post("/api/data-credentials", dataHandler.SaveCredentials)
	})

	return r
}

// healthHandler はヘルスチェックに200を返す。
// GET /health
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
