package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// signInResponse はテスト用の認証成功レスポンスを生成する。
func signInResponse(userID, email string) map[string]any {
	return map[string]any{
		"access_token": "token-abc",
		"user": map[string]any{
			"id":    userID,
			"email": email,
			"user_metadata": map[string]any{
				"name": "テスト太郎",
			},
			"app_metadata": map[string]any{
				"provider": "email",
			},
		},
	}
}

func TestClient_SignInWithPassword_EmitsSignedIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" {
			t.Errorf("path = %s, want /auth/v1/token", r.URL.Path)
		}
		if r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("grant_type = %s, want password", r.URL.Query().Get("grant_type"))
		}
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("apikey ヘッダー = %s, want anon-key", r.Header.Get("apikey"))
		}

		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "user@example.com" {
			t.Errorf("email = %s, want user@example.com", body["email"])
		}

		json.NewEncoder(w).Encode(signInResponse("user-1", "user@example.com"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, "anon-key")

	if err := c.SignInWithPassword(context.Background(), "user@example.com", "secret"); err != nil {
		t.Fatalf("SignInWithPassword がエラーを返した: %v", err)
	}

	select {
	case ev := <-c.Events():
		if ev.Type != EventSignedIn {
			t.Errorf("イベント種別 = %s, want signed_in", ev.Type)
		}
		if ev.Principal == nil || ev.Principal.ID != "user-1" {
			t.Errorf("Principal = %+v, want ID=user-1", ev.Principal)
		}
		if ev.Principal.Provider != model.ProviderEmail {
			t.Errorf("Provider = %s, want email", ev.Principal.Provider)
		}
	default:
		t.Fatal("signed_in イベントが送出されていない")
	}
}

func TestClient_SignInWithPassword_InvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"msg": "Invalid login credentials"})
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, "anon-key")

	err := c.SignInWithPassword(context.Background(), "user@example.com", "wrong")
	if err == nil {
		t.Fatal("無効な資格情報でエラーが返らなかった")
	}

	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("エラー型 = %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeAuthFailed {
		t.Errorf("エラーコード = %s, want AUTH_FAILED", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "Invalid login credentials") {
		t.Errorf("プロバイダーのメッセージが含まれていない: %s", apiErr.Message)
	}

	// 失敗時はイベントを送出しない
	select {
	case ev := <-c.Events():
		t.Errorf("失敗時にイベントが送出された: %+v", ev)
	default:
	}
}

func TestClient_SignOut_ClearsAndEmits(t *testing.T) {
	var sawLogout bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			json.NewEncoder(w).Encode(signInResponse("user-1", "user@example.com"))
		case "/auth/v1/logout":
			sawLogout = true
			if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer token-abc") {
				t.Errorf("Authorization = %s, want Bearer token-abc", r.Header.Get("Authorization"))
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("予期しないパス: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, "anon-key")

	if err := c.SignInWithPassword(context.Background(), "user@example.com", "secret"); err != nil {
		t.Fatalf("SignInWithPassword がエラーを返した: %v", err)
	}
	<-c.Events() // signed_in を読み捨てる

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut がエラーを返した: %v", err)
	}
	if !sawLogout {
		t.Error("logout エンドポイントが呼ばれていない")
	}

	ev := <-c.Events()
	if ev.Type != EventSignedOut {
		t.Errorf("イベント種別 = %s, want signed_out", ev.Type)
	}
	if ev.Principal != nil {
		t.Errorf("signed_out の Principal = %+v, want nil", ev.Principal)
	}
}

func TestClient_SignOut_FailureKeepsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			json.NewEncoder(w).Encode(signInResponse("user-1", "user@example.com"))
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, "anon-key")

	if err := c.SignInWithPassword(context.Background(), "user@example.com", "secret"); err != nil {
		t.Fatalf("SignInWithPassword がエラーを返した: %v", err)
	}
	<-c.Events()

	if err := c.SignOut(context.Background()); err == nil {
		t.Fatal("リモートサインアウト失敗でエラーが返らなかった")
	}

	// 失敗時はsigned_outイベントを送出せず、トークンも破棄しない
	select {
	case ev := <-c.Events():
		t.Errorf("失敗時にイベントが送出された: %+v", ev)
	default:
	}
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	if token == "" {
		t.Error("リモートサインアウト失敗時にトークンが破棄された")
	}
}

func TestClient_OAuthURL(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), "https://backend.example.com", "anon-key")

	got := c.OAuthURL(model.ProviderGoogle, "https://app.example.com/auth/callback")
	if !strings.HasPrefix(got, "https://backend.example.com/auth/v1/authorize?") {
		t.Errorf("URL = %s, want authorize エンドポイント", got)
	}
	if !strings.Contains(got, "provider=google") {
		t.Errorf("URL に provider=google が含まれていない: %s", got)
	}
	if !strings.Contains(got, "redirect_to=") {
		t.Errorf("URL に redirect_to が含まれていない: %s", got)
	}
}

func TestClient_GetProfile_NotFoundReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/profiles" {
			t.Errorf("path = %s, want /rest/v1/profiles", r.URL.Path)
		}
		if r.URL.Query().Get("id") != "eq.user-404" {
			t.Errorf("idフィルタ = %s, want eq.user-404", r.URL.Query().Get("id"))
		}
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, "anon-key")

	p, err := c.GetProfile(context.Background(), "user-404")
	if err != nil {
		t.Fatalf("GetProfile がエラーを返した: %v", err)
	}
	if p != nil {
		t.Errorf("存在しない行で Profile = %+v, want nil", p)
	}
}

func TestClient_CreateAndGetSubscription(t *testing.T) {
	var inserted subscriptionRow
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/subscriptions" {
			t.Errorf("path = %s, want /rest/v1/subscriptions", r.URL.Path)
		}
		switch r.Method {
		case http.MethodPost:
			json.NewDecoder(r.Body).Decode(&inserted)
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			json.NewEncoder(w).Encode([]subscriptionRow{inserted})
		}
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, "anon-key")

	sub := &model.Subscription{
		UserID: "user-1",
		Status: model.StatusTrial,
	}
	if err := c.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("CreateSubscription がエラーを返した: %v", err)
	}
	if inserted.Status != "trial" {
		t.Errorf("insert された status = %s, want trial", inserted.Status)
	}

	got, err := c.GetSubscription(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetSubscription がエラーを返した: %v", err)
	}
	if got == nil || got.Status != model.StatusTrial {
		t.Errorf("GetSubscription = %+v, want status=trial", got)
	}
}

func TestClient_UpdateSubscription_SendsPatch(t *testing.T) {
	var patch map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if r.URL.Query().Get("user_id") != "eq.user-1" {
			t.Errorf("user_idフィルタ = %s, want eq.user-1", r.URL.Query().Get("user_id"))
		}
		json.NewDecoder(r.Body).Decode(&patch)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, "anon-key")

	err := c.UpdateSubscription(context.Background(), "user-1", map[string]any{"status": "active"})
	if err != nil {
		t.Fatalf("UpdateSubscription がエラーを返した: %v", err)
	}
	if patch["status"] != "active" {
		t.Errorf("patch = %v, want status=active", patch)
	}
}
