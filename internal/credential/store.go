// Package credential は外部データベースAPIの接続情報を管理する。
// 管理者が設定した固定ペアを優先し、未設定の場合のみローカルストアの
// ユーザー入力ペアへフォールバックする。
package credential

import (
	"context"
	"fmt"
)

// AdminOnlyMode は接続情報の変更を管理者に限定するビルド時定数。
// 有効の場合、SaveCredentialsは何もしない。呼び出し側はIsConfiguredを先に確認し、
// 未設定時は入力フォームではなく「管理者によるセットアップが必要」の状態を表示すること。
const AdminOnlyMode = true

// Credential は外部データベースAPIの接続情報ペア。
type Credential struct {
	Token  string
	BaseID string
}

// LocalCredentials はユーザー入力ペアの永続化に必要なインターフェース。
// localstore.Storeの部分集合として定義する。
type LocalCredentials interface {
	GetCredentials(ctx context.Context) (token, baseID string, err error)
	SaveCredentials(ctx context.Context, token, baseID string) error
}

// Store は接続情報の解決を提供する。
type Store struct {
	adminToken  string
	adminBaseID string
	local       LocalCredentials
	adminOnly   bool
}

// NewStore はStoreを生成する。adminTokenとadminBaseIDには管理者設定のペアを渡す
// （未設定の場合は空文字）。
func NewStore(adminToken, adminBaseID string, local LocalCredentials) *Store {
	return &Store{
		adminToken:  adminToken,
		adminBaseID: adminBaseID,
		local:       local,
		adminOnly:   AdminOnlyMode,
	}
}

// IsConfigured は管理者ペアが完全に設定されているかを返す。
// ユーザー入力のフォールバックが存在しても、ここでの判定には影響しない
// （管理者ゲーティングの判定は管理者ペアのみで行う）。
func (s *Store) IsConfigured() bool {
	return s.adminToken != "" && s.adminBaseID != ""
}

// AdminOnly は接続情報の変更が管理者に限定されているかを返す。
func (s *Store) AdminOnly() bool {
	return s.adminOnly
}

// GetCredentials は利用可能な接続情報を返す。
// 管理者ペアが設定されていればそれを、なければユーザー入力ペアを返す。
// どちらも利用できない場合はnilを返す（この場合フェッチは設定エラーで
// 短絡しなければならない）。
func (s *Store) GetCredentials(ctx context.Context) (*Credential, error) {
	if s.IsConfigured() {
		return &Credential{Token: s.adminToken, BaseID: s.adminBaseID}, nil
	}

	token, baseID, err := s.local.GetCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("接続情報の読み込みに失敗しました: %w", err)
	}
	if token == "" || baseID == "" {
		return nil, nil
	}
	return &Credential{Token: token, BaseID: baseID}, nil
}

// SaveCredentials はユーザー入力の接続情報をローカルストアへ永続化する。
// 管理者専用モードが有効の場合は何もしない。
func (s *Store) SaveCredentials(ctx context.Context, token, baseID string) error {
	if s.adminOnly {
		return nil
	}
	if err := s.local.SaveCredentials(ctx, token, baseID); err != nil {
		return fmt.Errorf("接続情報の保存に失敗しました: %w", err)
	}
	return nil
}
