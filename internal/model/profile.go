// Package model はドメインモデルを定義する。
package model

import "time"

// AuthProvider は認証プロバイダーの種別を表す。
type AuthProvider string

const (
	// ProviderEmail はメールアドレス＋パスワード認証。
	ProviderEmail AuthProvider = "email"
	// ProviderGoogle はGoogle OAuth認証。
	ProviderGoogle AuthProvider = "google"
	// ProviderApple はApple ID認証。
	ProviderApple AuthProvider = "apple"
)

// IsValid はプロバイダー種別が定義済みの値かを検証する。
func (p AuthProvider) IsValid() bool {
	switch p {
	case ProviderEmail, ProviderGoogle, ProviderApple:
		return true
	}
	return false
}

// Profile はサインイン済みユーザーのプロフィールを表す。
// バックエンドのprofilesテーブルの1行に対応する。
// 初回サインイン時にリモートに存在しなければデフォルト値で作成される。
type Profile struct {
	ID                  string
	Email               string
	Name                string
	PhotoURL            string
	Provider            AuthProvider
	OnboardingCompleted bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
