package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/session"
)

// SessionServiceInterface は認証ハンドラーが必要とするセッション操作のインターフェース。
type SessionServiceInterface interface {
	Login(ctx context.Context, email, password string) error
	Signup(ctx context.Context, email, password, name string) error
	LoginWithGoogle() string
	LoginWithApple() string
	Logout(ctx context.Context) error
	Snapshot() session.Snapshot
	HasSubscription() bool
	IsTrialActive() bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	session SessionServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(s SessionServiceInterface) *AuthHandler {
	return &AuthHandler{session: s}
}

// loginRequest はサインインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signupRequest はアカウント作成リクエストのボディ。
type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// oauthURLResponse はOAuth認可URLのレスポンス。
type oauthURLResponse struct {
	AuthURL string `json:"auth_url"`
}

// sessionResponse は現在のセッション状態のレスポンス。
type sessionResponse struct {
	State           string               `json:"state"`
	Profile         *profileResponse     `json:"profile,omitempty"`
	Subscription    *subscriptionPayload `json:"subscription,omitempty"`
	HasSubscription bool                 `json:"has_subscription"`
	IsTrialActive   bool                 `json:"is_trial_active"`
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	ID                  string `json:"id"`
	Email               string `json:"email"`
	Name                string `json:"name"`
	PhotoURL            string `json:"photo_url,omitempty"`
	Provider            string `json:"provider"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
}

// subscriptionPayload はサブスクリプションのAPIレスポンス。
type subscriptionPayload struct {
	Status          string     `json:"status"`
	StartDate       time.Time  `json:"start_date"`
	TrialEndDate    *time.Time `json:"trial_end_date,omitempty"`
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`
}

// Login はメールアドレスとパスワードでのサインインを処理する。
// セッション状態の反映は認証ストリーム経由で非同期に行われる。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.session.Login(r.Context(), req.Email, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Signup は新規アカウント作成を処理する。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.session.Signup(r.Context(), req.Email, req.Password, req.Name); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// GoogleLogin はGoogleの認可URLを返す。
// GET /auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, oauthURLResponse{AuthURL: h.session.LoginWithGoogle()})
}

// AppleLogin はAppleの認可URLを返す。
// GET /auth/apple
func (h *AuthHandler) AppleLogin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, oauthURLResponse{AuthURL: h.session.LoginWithApple()})
}

// Logout はサインアウトを処理する。リモート失敗時はセッションを保持したままエラーを返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Session は現在のセッションスナップショットを返す。I/Oは行わない。
// GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()

	resp := sessionResponse{
		State:           string(snap.State()),
		HasSubscription: h.session.HasSubscription(),
		IsTrialActive:   h.session.IsTrialActive(),
	}
	if snap.Profile != nil {
		resp.Profile = &profileResponse{
			ID:                  snap.Profile.ID,
			Email:               snap.Profile.Email,
			Name:                snap.Profile.Name,
			PhotoURL:            snap.Profile.PhotoURL,
			Provider:            string(snap.Profile.Provider),
			OnboardingCompleted: snap.Profile.OnboardingCompleted,
		}
	}
	if snap.Subscription != nil {
		resp.Subscription = &subscriptionPayload{
			Status:          string(snap.Subscription.Status),
			StartDate:       snap.Subscription.StartDate,
			TrialEndDate:    snap.Subscription.TrialEndDate,
			NextBillingDate: snap.Subscription.NextBillingDate,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
