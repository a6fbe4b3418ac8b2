// Package session はセッション／利用権の状態機械を提供する。
// 状態はバックエンドの認証状態変化ストリームから全面的に導出され、
// このプロセス内で唯一のSessionスナップショットとして保持される。
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/backend"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/localstore"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/model"
)

// State はセッションの状態を表す。
type State string

const (
	// StateUnknown は初期状態。認証状態がまだ確定していない。
	StateUnknown State = "unknown"
	// StateAnonymous は未サインイン状態。
	StateAnonymous State = "anonymous"
	// StateAuthenticated はサインイン済み状態。
	StateAuthenticated State = "authenticated"
)

// Snapshot はある時点のセッション状態を表す不変値。
// ProfileとSubscriptionはリモート解決に失敗した場合nilになりうる。
// ゲーティング上、Subscription未解決は未認証相当として扱われる。
type Snapshot struct {
	Profile      *model.Profile
	Subscription *model.Subscription
	Loading      bool
}

// State はスナップショットから状態を導出する。
func (s Snapshot) State() State {
	if s.Loading {
		return StateUnknown
	}
	if s.Profile == nil {
		return StateAnonymous
	}
	return StateAuthenticated
}

// IsAuthenticated はプロフィール（Identity）が解決済みかを返す。
func (s Snapshot) IsAuthenticated() bool {
	return s.Profile != nil
}

// Backend はセッションストアが必要とするバックエンド操作のインターフェース。
type Backend interface {
	SignInWithPassword(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password, name string) error
	OAuthURL(provider model.AuthProvider, redirectTo string) string
	SignOut(ctx context.Context) error

	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	CreateProfile(ctx context.Context, p *model.Profile) error
	UpdateProfile(ctx context.Context, userID string, patch map[string]any) error
	GetSubscription(ctx context.Context, userID string) (*model.Subscription, error)
	CreateSubscription(ctx context.Context, s *model.Subscription) error
	UpdateSubscription(ctx context.Context, userID string, patch map[string]any) error
}

// FlagStore は匿名利用権フラグの永続化に必要なインターフェース。
// localstore.Storeの部分集合として定義する。
type FlagStore interface {
	GetBoolPref(ctx context.Context, key string) (bool, error)
	SetBoolPref(ctx context.Context, key string, value bool) error
}

// Metrics はセッションストアが記録するメトリクスのインターフェース。
// metrics.Collectorの部分集合として定義する。
type Metrics interface {
	RecordAuthEvent(eventType string)
	RecordSessionResolution(outcome string)
}

// noopMetrics は未設定時のデフォルト実装。
type noopMetrics struct{}

func (noopMetrics) RecordAuthEvent(string)         {}
func (noopMetrics) RecordSessionResolution(string) {}

// Config はセッションストアの設定。
type Config struct {
	TrialDuration    time.Duration // 新規トライアルの期間
	BillingCycle     time.Duration // 次回請求日までの期間
	OAuthRedirectURL string        // OAuth完了後の戻り先
}

// Store はセッション／利用権の状態機械。
// プロセス起動時に1回構築し、依存先へ明示的に注入する。
// 認証状態変化ストリームのイベントを到着順に1つずつ処理し、
// イベントごとにスナップショット全体を再導出する（部分マージはしない）。
type Store struct {
	backend Backend
	flags   FlagStore
	logger  *slog.Logger
	config  Config
	metrics Metrics
	now     func() time.Time

	mu          sync.RWMutex
	snap        Snapshot
	anonFlag    bool
	subscribers []chan struct{}

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewStore はStoreを生成する。初期状態はUnknown（loading=true）。
// 匿名利用権フラグは永続ストアから読み込み、以後はメモリ上のミラーを
// ガード判定に使う（ガードはI/Oを行わないため）。
func NewStore(b Backend, flags FlagStore, logger *slog.Logger, config Config) *Store {
	s := &Store{
		backend: b,
		flags:   flags,
		logger:  logger,
		config:  config,
		metrics: noopMetrics{},
		now:     time.Now,
		snap:    Snapshot{Loading: true},
		done:    make(chan struct{}),
	}

	anon, err := flags.GetBoolPref(context.Background(), localstore.KeyAnonymousEntitlement)
	if err != nil {
		logger.Error("failed to load anonymous entitlement flag",
			slog.String("error", err.Error()),
		)
	}
	s.anonFlag = anon

	return s
}

// SetMetrics はメトリクスコレクターを設定する。Startの前に呼ぶこと。
func (s *Store) SetMetrics(m Metrics) {
	s.metrics = m
}

// Start は認証状態変化ストリームの購読を開始する。
// ストリームが閉じられるかCloseが呼ばれるまでイベントを処理し続ける。
func (s *Store) Start(events <-chan backend.AuthEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.done:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.handleEvent(ev)
			}
		}
	}()
}

// Close は購読を停止する。アプリ終了時に呼ぶこと。
// 破棄済みのストアへイベントが配送されることを防ぐ。
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

// Snapshot は現在のセッションスナップショットを返す。I/Oは行わない。
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Subscribe はスナップショット変化の通知チャネルを返す。
// 通知は合流されることがある（最新のSnapshotを読み直すこと）。
func (s *Store) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

// handleEvent は認証イベント1件を処理し、スナップショットを全面再導出する。
func (s *Store) handleEvent(ev backend.AuthEvent) {
	s.metrics.RecordAuthEvent(string(ev.Type))

	if ev.Principal == nil || ev.Type == backend.EventSignedOut {
		s.setSnapshot(Snapshot{Loading: false})
		s.logger.Info("session cleared")
		return
	}

	snap := s.resolveSession(context.Background(), ev.Principal)
	outcome := "success"
	if snap.Profile == nil || snap.Subscription == nil {
		outcome = "partial"
	}
	s.metrics.RecordSessionResolution(outcome)
	s.setSnapshot(snap)
	s.logger.Info("session resolved",
		slog.String("user_id", ev.Principal.ID),
		slog.String("state", string(snap.State())),
	)
}

// resolveSession はプリンシパルからプロフィールとサブスクリプションを解決する。
// リモートに存在しない場合はデフォルト行を作成する。
// 解決失敗はログに記録し、該当フィールドをnilのまま残す（処理は継続する）。
func (s *Store) resolveSession(ctx context.Context, principal *backend.Principal) Snapshot {
	snap := Snapshot{Loading: false}

	profile, err := s.backend.GetProfile(ctx, principal.ID)
	if err != nil {
		s.logger.Error("failed to resolve profile",
			slog.String("user_id", principal.ID),
			slog.String("error", err.Error()),
		)
	} else {
		if profile == nil {
			profile = &model.Profile{
				ID:                  principal.ID,
				Name:                principal.Name,
				PhotoURL:            principal.PhotoURL,
				Provider:            principal.Provider,
				OnboardingCompleted: false,
				CreatedAt:           s.now(),
				UpdatedAt:           s.now(),
			}
			if err := s.backend.CreateProfile(ctx, profile); err != nil {
				s.logger.Error("failed to create default profile",
					slog.String("user_id", principal.ID),
					slog.String("error", err.Error()),
				)
				profile = nil
			}
		}
		if profile != nil {
			// メールアドレスはprofilesテーブルの外（認証側）にあるためここで合成する
			profile.Email = principal.Email
		}
	}
	snap.Profile = profile

	sub, err := s.backend.GetSubscription(ctx, principal.ID)
	if err != nil {
		s.logger.Error("failed to resolve subscription",
			slog.String("user_id", principal.ID),
			slog.String("error", err.Error()),
		)
	} else {
		if sub == nil {
			trialEnd := s.now().Add(s.config.TrialDuration)
			sub = &model.Subscription{
				UserID:       principal.ID,
				Status:       model.StatusTrial,
				StartDate:    s.now(),
				TrialEndDate: &trialEnd,
			}
			if err := s.backend.CreateSubscription(ctx, sub); err != nil {
				s.logger.Error("failed to create trial subscription",
					slog.String("user_id", principal.ID),
					slog.String("error", err.Error()),
				)
				sub = nil
			}
		}
	}
	snap.Subscription = sub

	return snap
}

// setSnapshot はスナップショットを置き換え、購読者へ通知する。
func (s *Store) setSnapshot(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	subscribers := s.subscribers
	s.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Login はメールアドレスとパスワードでのサインインをバックエンドへ委譲する。
// スナップショットはここでは変更しない（認証ストリームのイベントが非同期に反映する）。
func (s *Store) Login(ctx context.Context, email, password string) error {
	return s.backend.SignInWithPassword(ctx, email, password)
}

// Signup は新規アカウント作成をバックエンドへ委譲する。
func (s *Store) Signup(ctx context.Context, email, password, name string) error {
	return s.backend.SignUp(ctx, email, password, name)
}

// LoginWithGoogle はGoogleの認可URLを返す。ネットワークアクセスは行わない。
func (s *Store) LoginWithGoogle() string {
	return s.backend.OAuthURL(model.ProviderGoogle, s.config.OAuthRedirectURL)
}

// LoginWithApple はAppleの認可URLを返す。ネットワークアクセスは行わない。
func (s *Store) LoginWithApple() string {
	return s.backend.OAuthURL(model.ProviderApple, s.config.OAuthRedirectURL)
}

// Logout はリモートサインアウトを実行し、成功時のみスナップショットを同期的に消去する。
// 失敗時はスナップショットを変更しない（リモートと食い違った
// クライアント側だけのサインアウトを避ける）。
func (s *Store) Logout(ctx context.Context) error {
	if err := s.backend.SignOut(ctx); err != nil {
		return err
	}
	s.setSnapshot(Snapshot{Loading: false})
	return nil
}

// CompleteOnboarding はオンボーディング完了をリモートへ永続化し、ローカルへ反映する。
// プロフィール未解決の場合は何もせずnilを返す（呼び出し側の誤用に対する
// 非致命的なガードであり、エラーではない）。
func (s *Store) CompleteOnboarding(ctx context.Context) error {
	s.mu.RLock()
	profile := s.snap.Profile
	s.mu.RUnlock()

	if profile == nil {
		return nil
	}

	if err := s.backend.UpdateProfile(ctx, profile.ID, map[string]any{
		"onboarding_completed": true,
	}); err != nil {
		return err
	}

	s.mu.Lock()
	if s.snap.Profile != nil {
		updated := *s.snap.Profile
		updated.OnboardingCompleted = true
		updated.UpdatedAt = s.now()
		s.snap.Profile = &updated
	}
	snap := s.snap
	s.mu.Unlock()
	s.notify(snap)

	return nil
}

// StartSubscription はサブスクリプション開始を記録する。
// 決済処理は行わない（決済プロバイダー連携までのプレースホルダー）。
// Identityの解決有無にかかわらず、まず永続的な匿名利用権フラグを立てて
// ユーザーのブロックを解除する（フォールバック経路）。
// Identityが解決済みであれば、リモートのサブスクリプション行を
// status=active・次回請求30日後に更新し、ローカルにも反映する。
func (s *Store) StartSubscription(ctx context.Context) error {
	if err := s.flags.SetBoolPref(ctx, localstore.KeyAnonymousEntitlement, true); err != nil {
		// フラグの永続化失敗はメモリ上のミラーで補う（次回起動時には失われる）
		s.logger.Error("failed to persist anonymous entitlement flag",
			slog.String("error", err.Error()),
		)
	}
	s.mu.Lock()
	s.anonFlag = true
	s.mu.Unlock()

	s.mu.RLock()
	profile := s.snap.Profile
	s.mu.RUnlock()

	if profile == nil {
		return nil
	}

	nextBilling := s.now().Add(s.config.BillingCycle)
	if err := s.backend.UpdateSubscription(ctx, profile.ID, map[string]any{
		"status":            string(model.StatusActive),
		"next_billing_date": nextBilling.Format(time.RFC3339),
	}); err != nil {
		return err
	}

	s.mu.Lock()
	if s.snap.Subscription != nil {
		updated := *s.snap.Subscription
		updated.Status = model.StatusActive
		updated.NextBillingDate = &nextBilling
		s.snap.Subscription = &updated
	} else {
		s.snap.Subscription = &model.Subscription{
			UserID:          profile.ID,
			Status:          model.StatusActive,
			StartDate:       s.now(),
			NextBillingDate: &nextBilling,
		}
	}
	snap := s.snap
	s.mu.Unlock()
	s.notify(snap)

	return nil
}

// notify は購読者へスナップショット変化を通知する。
func (s *Store) notify(_ Snapshot) {
	s.mu.RLock()
	subscribers := s.subscribers
	s.mu.RUnlock()
	for _, ch := range subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// IsAuthenticated はIdentityが解決済みかを返す。
func (s *Store) IsAuthenticated() bool {
	return s.Snapshot().IsAuthenticated()
}

// HasSubscription は利用権を持つかを返す。
// リモートのSubscriptionがactiveまたはtrialであるか、
// ローカルの匿名利用権フラグが立っている場合にtrue。
func (s *Store) HasSubscription() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Subscription.IsEntitled() || s.anonFlag
}

// IsTrialActive はトライアル中かつ期限が未来であるかを返す。
func (s *Store) IsTrialActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Subscription.IsTrialActive(s.now())
}

// AnonymousEntitlement は匿名利用権フラグのメモリ上のミラーを返す。
func (s *Store) AnonymousEntitlement() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.anonFlag
}
