// Package backend はホスト型の認証・データベースサービスへのHTTPクライアントを提供する。
// 認証エンドポイント群と、profiles / subscriptions テーブルへの行レベルの
// select / insert / update を薄くラップする。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/model"
)

// EventType は認証状態変化イベントの種別を表す。
type EventType string

const (
	// EventSignedIn はサインイン成功を表す。
	EventSignedIn EventType = "signed_in"
	// EventSignedOut はサインアウトを表す。
	EventSignedOut EventType = "signed_out"
	// EventTokenRefreshed はトークン更新を表す。プリンシパルは変わらない。
	EventTokenRefreshed EventType = "token_refreshed"
)

// Principal は認証済みのプリンシパルを表す。
type Principal struct {
	ID       string
	Email    string
	Name     string
	PhotoURL string
	Provider model.AuthProvider
}

// AuthEvent は認証状態変化ストリーム上の1イベントを表す。
// サインアウト時はPrincipalがnilになる。
type AuthEvent struct {
	Type      EventType
	Principal *Principal
}

// Client はホスト型バックエンドのHTTPクライアント。
// 認証操作が成功するたびに認証状態変化イベントをストリームへ送出する。
// イベントは送出順に配送される（単一チャネル、マージなし）。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string

	mu          sync.Mutex
	accessToken string

	events    chan AuthEvent
	closeOnce sync.Once
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     apiKey,
		events:     make(chan AuthEvent, 16),
	}
}

// Events は認証状態変化イベントのストリームを返す。
// 消費者は1つであることを想定する（セッションストア）。
func (c *Client) Events() <-chan AuthEvent {
	return c.events
}

// Close はイベントストリームを閉じる。アプリ終了時に呼ぶこと。
// Close後の認証操作はイベントを送出しない。
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.events)
	})
}

// emit はイベントをストリームへ送出する。
func (c *Client) emit(ev AuthEvent) {
	defer func() {
		// Close済みチャネルへの送出はアプリ終了時のみ起こりうる。握りつぶしてよい。
		_ = recover()
	}()
	c.events <- ev
}

// authResponse は認証エンドポイントのレスポンスボディ。
type authResponse struct {
	AccessToken string   `json:"access_token"`
	User        authUser `json:"user"`
}

// authUser は認証レスポンス中のユーザー情報。
type authUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
	AppMetadata struct {
		Provider string `json:"provider"`
	} `json:"app_metadata"`
}

// errorResponse は認証エンドポイントのエラーレスポンスボディ。
type errorResponse struct {
	Message          string `json:"msg"`
	ErrorDescription string `json:"error_description"`
}

// message はプロバイダーから返されたエラーメッセージを返す。
func (e *errorResponse) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorDescription
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
// 成功するとアクセストークンを保持し、signed_inイベントを送出する。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	resp, err := c.doAuth(ctx, "/auth/v1/token?grant_type=password", body)
	if err != nil {
		return err
	}
	c.establishSession(resp, model.ProviderEmail)
	return nil
}

// SignUp は新規アカウントを作成してサインインする。
// 成功するとsigned_inイベントを送出する。
func (c *Client) SignUp(ctx context.Context, email, password, name string) error {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"name": name},
	}
	resp, err := c.doAuth(ctx, "/auth/v1/signup", body)
	if err != nil {
		return err
	}
	c.establishSession(resp, model.ProviderEmail)
	return nil
}

// OAuthURL はOAuthプロバイダーの認可URLを生成する。ネットワークアクセスは行わない。
func (c *Client) OAuthURL(provider model.AuthProvider, redirectTo string) string {
	q := url.Values{}
	q.Set("provider", string(provider))
	q.Set("redirect_to", redirectTo)
	return c.baseURL + "/auth/v1/authorize?" + q.Encode()
}

// CompleteOAuth はOAuthリダイレクトで受け取ったアクセストークンを検証し、
// セッションを確立してsigned_inイベントを送出する。
func (c *Client) CompleteOAuth(ctx context.Context, accessToken string, provider model.AuthProvider) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewAuthFailedError(err.Error())
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return model.NewAuthFailedError(err.Error())
	}

	if httpResp.StatusCode != http.StatusOK {
		var errResp errorResponse
		_ = json.Unmarshal(raw, &errResp)
		c.logger.Warn("oauth token verification rejected",
			slog.Int("status", httpResp.StatusCode),
		)
		return model.NewAuthFailedError(errResp.message())
	}

	var user authUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return model.NewAuthFailedError("unexpected response from provider")
	}
	c.establishSession(&authResponse{AccessToken: accessToken, User: user}, provider)
	return nil
}

// SignOut はリモートのサインアウトを実行する。
// リモートが成功した場合のみトークンを破棄し、signed_outイベントを送出する。
// 失敗時はローカル状態を変更しない（リモートとの不整合を避ける）。
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewAuthFailedError(err.Error())
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusNoContent && httpResp.StatusCode != http.StatusOK {
		c.logger.Warn("sign-out rejected by provider",
			slog.Int("status", httpResp.StatusCode),
		)
		return model.NewAuthFailedError(fmt.Sprintf("sign-out returned status %d", httpResp.StatusCode))
	}

	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()

	c.emit(AuthEvent{Type: EventSignedOut})
	return nil
}

// doAuth は認証エンドポイントへのPOSTを実行し、レスポンスをデコードする。
func (c *Client) doAuth(ctx context.Context, path string, body any) (*authResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewAuthFailedError(err.Error())
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, model.NewAuthFailedError(err.Error())
	}

	if httpResp.StatusCode != http.StatusOK {
		var errResp errorResponse
		_ = json.Unmarshal(raw, &errResp)
		c.logger.Warn("auth request rejected by provider",
			slog.String("path", path),
			slog.Int("status", httpResp.StatusCode),
		)
		return nil, model.NewAuthFailedError(errResp.message())
	}

	var resp authResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, model.NewAuthFailedError("unexpected response from provider")
	}
	if resp.AccessToken == "" || resp.User.ID == "" {
		return nil, model.NewAuthFailedError("incomplete response from provider")
	}

	return &resp, nil
}

// establishSession はトークンを保持し、signed_inイベントを送出する。
func (c *Client) establishSession(resp *authResponse, fallbackProvider model.AuthProvider) {
	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.mu.Unlock()

	provider := model.AuthProvider(resp.User.AppMetadata.Provider)
	if !provider.IsValid() {
		provider = fallbackProvider
	}

	c.emit(AuthEvent{
		Type: EventSignedIn,
		Principal: &Principal{
			ID:       resp.User.ID,
			Email:    resp.User.Email,
			Name:     resp.User.UserMetadata.Name,
			PhotoURL: resp.User.UserMetadata.AvatarURL,
			Provider: provider,
		},
	})
}
