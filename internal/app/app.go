// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/text/language"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/backend"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/config"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/content"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/credential"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/handler"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/localstore"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/logger"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/metrics"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/middleware"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/security"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/session"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/tabular"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/theme"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// prefAdapter はlocalstore.StoreのGetPrefをキー未設定時に空文字を返す
// 2値の形に適合させるアダプタ。テーマ設定とレッスン進捗で使用する。
type prefAdapter struct {
	store *localstore.Store
}

func (a prefAdapter) GetPref(ctx context.Context, key string) (string, error) {
	value, _, err := a.store.GetPref(ctx, key)
	return value, err
}

func (a prefAdapter) SetPref(ctx context.Context, key, value string) error {
	return a.store.SetPref(ctx, key, value)
}

// runServe はAPIサーバーモードで起動する。
// ローカルストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ローカルストア（マイグレーションはOpen時に適用される）
	store, err := localstore.Open(cfg.LocalStorePath)
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	defer store.Close()

	slog.Info("local store opened", slog.String("path", cfg.LocalStorePath))

	// 2. セキュリティサービスの初期化
	outboundGuard := security.NewOutboundGuard()
	sanitizer := security.NewCellSanitizer()

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. バックエンドクライアントとセッションストア
	backendClient := backend.NewClient(
		&http.Client{Timeout: 15 * time.Second},
		slog.Default(), cfg.BackendURL, cfg.BackendAPIKey,
	)
	defer backendClient.Close()

	sessionStore := session.NewStore(backendClient, store, slog.Default(), session.Config{
		TrialDuration:    cfg.TrialDuration,
		BillingCycle:     cfg.BillingCycle,
		OAuthRedirectURL: cfg.OAuthRedirectURL,
	})
	sessionStore.SetMetrics(collector)
	sessionStore.Start(backendClient.Events())
	defer sessionStore.Close()

	// 5. 外部テーブルデータ
	credStore := credential.NewStore(cfg.DataToken, cfg.DataBaseID, store)
	tabularClient := tabular.NewClient(
		outboundGuard.NewSafeClient(cfg.DataTimeout),
		slog.Default(), cfg.DataAPIURL, credStore, cfg.DataMaxPages,
	)
	tabularClient.SetMetrics(collector)
	presenter := tabular.NewPresenter(sanitizer, language.Japanese)
	viewer := tabular.NewViewer(tabularClient, presenter)

	// 6. テーマ・進捗・お知らせ
	prefs := prefAdapter{store: store}
	themeService := theme.NewService(prefs, localstore.KeyTheme, cfg.ForceDarkRoutes)
	progress := content.NewProgressTracker(prefs, localstore.KeyLessonProgress)
	announcements := content.NewAnnouncementService(
		outboundGuard.NewSafeClient(10*time.Second),
		slog.Default(), outboundGuard, sanitizer,
		cfg.AnnouncementsFeedURL, cfg.AnnouncementsTTL, cfg.AnnouncementsLimit,
	)

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		Guard:             middleware.NewGuard(sessionStore, cfg.UnauthenticatedRoute, cfg.PaywallRoute),
		RateLimiter:       middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitData)),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,

		SessionService: sessionStore,

		OnboardingService:   sessionStore,
		ThemeService:        themeService,
		ProgressService:     progress,
		AnnouncementService: announcements,

		Viewer:            viewer,
		CredentialService: credStore,
		DataMetrics:       collector,

		MetricsGatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はローカルストアのマイグレーションを適用する。
// マイグレーションはOpen時に適用されるため、開いて閉じるだけでよい。
func runMigrate(cfg *config.Config) error {
	slog.Info("running local store migrations",
		slog.String("path", cfg.LocalStorePath),
	)

	store, err := localstore.Open(cfg.LocalStorePath)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer store.Close()

	slog.Info("local store migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
