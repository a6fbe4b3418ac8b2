package credential

import (
	"context"
	"errors"
	"testing"
)

// --- モック定義 ---

type mockLocal struct {
	token, baseID string
	getErr        error
	saved         bool
	savedToken    string
	savedBaseID   string
}

func (m *mockLocal) GetCredentials(_ context.Context) (string, string, error) {
	if m.getErr != nil {
		return "", "", m.getErr
	}
	return m.token, m.baseID, nil
}

func (m *mockLocal) SaveCredentials(_ context.Context, token, baseID string) error {
	m.saved = true
	m.savedToken = token
	m.savedBaseID = baseID
	return nil
}

func TestStore_IsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		baseID string
		want   bool
	}{
		{name: "両方設定済みで真", token: "tok", baseID: "base", want: true},
		{name: "トークンが空で偽", token: "", baseID: "base", want: false},
		{name: "ベースIDが空で偽", token: "tok", baseID: "", want: false},
		{name: "両方空で偽", token: "", baseID: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ユーザー入力のフォールバックが存在してもIsConfiguredには影響しない
			local := &mockLocal{token: "user-tok", baseID: "user-base"}
			s := NewStore(tt.token, tt.baseID, local)
			if got := s.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_GetCredentials_AdminPairPreferred(t *testing.T) {
	local := &mockLocal{token: "user-tok", baseID: "user-base"}
	s := NewStore("admin-tok", "admin-base", local)

	cred, err := s.GetCredentials(context.Background())
	if err != nil {
		t.Fatalf("GetCredentials がエラーを返した: %v", err)
	}
	if cred == nil || cred.Token != "admin-tok" || cred.BaseID != "admin-base" {
		t.Errorf("cred = %+v, want 管理者ペア", cred)
	}
}

func TestStore_GetCredentials_FallbackToUserPair(t *testing.T) {
	local := &mockLocal{token: "user-tok", baseID: "user-base"}
	s := NewStore("", "", local)

	cred, err := s.GetCredentials(context.Background())
	if err != nil {
		t.Fatalf("GetCredentials がエラーを返した: %v", err)
	}
	// 管理者ペアが未設定でも、ユーザー入力のフォールバックは返される
	if cred == nil || cred.Token != "user-tok" || cred.BaseID != "user-base" {
		t.Errorf("cred = %+v, want ユーザー入力ペア", cred)
	}
	if s.IsConfigured() {
		t.Error("フォールバックが存在しても IsConfigured は false であるべき")
	}
}

func TestStore_GetCredentials_NothingAvailable(t *testing.T) {
	s := NewStore("", "", &mockLocal{})

	cred, err := s.GetCredentials(context.Background())
	if err != nil {
		t.Fatalf("GetCredentials がエラーを返した: %v", err)
	}
	if cred != nil {
		t.Errorf("cred = %+v, want nil（未設定）", cred)
	}
}

func TestStore_GetCredentials_LocalError(t *testing.T) {
	local := &mockLocal{getErr: errors.New("disk failure")}
	s := NewStore("", "", local)

	if _, err := s.GetCredentials(context.Background()); err == nil {
		t.Fatal("ローカルストアのエラーが伝播しない")
	}
}

func TestStore_SaveCredentials_AdminOnlyIsNoop(t *testing.T) {
	local := &mockLocal{}
	s := &Store{local: local, adminOnly: true}

	if err := s.SaveCredentials(context.Background(), "tok", "base"); err != nil {
		t.Fatalf("SaveCredentials がエラーを返した: %v", err)
	}
	if local.saved {
		t.Error("管理者専用モードで保存が実行された")
	}
}

func TestStore_SaveCredentials_PersistsWhenAllowed(t *testing.T) {
	local := &mockLocal{}
	s := &Store{local: local, adminOnly: false}

	if err := s.SaveCredentials(context.Background(), "tok", "base"); err != nil {
		t.Fatalf("SaveCredentials がエラーを返した: %v", err)
	}
	if !local.saved || local.savedToken != "tok" || local.savedBaseID != "base" {
		t.Errorf("保存内容 = (%q, %q), want (tok, base)", local.savedToken, local.savedBaseID)
	}
}
