// Package localstore は端末ローカル相当の永続ストレージを提供する。
// 匿名サブスクリプションフラグ、テーマ設定、レガシーな学習進捗マーカー、
// ユーザー入力のデータベース接続情報をSQLiteファイルに保持する。
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// 予約済みのprefsキー。
const (
	// KeyAnonymousEntitlement はサインインなしで利用権を付与するフォールバックフラグ。
	KeyAnonymousEntitlement = "anonymous_entitlement"
	// KeyTheme はテーマ設定（light / dark / system）。
	KeyTheme = "theme"
	// KeyLessonProgress はレガシーな学習進捗マーカー。中身は解釈しない。
	KeyLessonProgress = "lesson_progress"
)

// Store はSQLiteベースのローカルストア。
type Store struct {
	db *sql.DB
}

// Open はSQLiteファイルを開き、マイグレーションを適用したStoreを返す。
// WALモードとbusy_timeoutを有効化する。書き込み競合を避けるため接続数は1に制限する。
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to local store: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// GetPref は指定キーの設定値を返す。未設定の場合は("", false, nil)。
func (s *Store) GetPref(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM prefs WHERE key = ?`
	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get pref %q: %w", key, err)
	}
	return value, true, nil
}

// SetPref は指定キーの設定値を保存する。既存値は上書きされる。
func (s *Store) SetPref(ctx context.Context, key, value string) error {
	const query = `INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set pref %q: %w", key, err)
	}
	return nil
}

// GetBoolPref は指定キーの真偽値設定を返す。未設定または"true"以外はfalse。
func (s *Store) GetBoolPref(ctx context.Context, key string) (bool, error) {
	value, ok, err := s.GetPref(ctx, key)
	if err != nil {
		return false, err
	}
	return ok && value == "true", nil
}

// SetBoolPref は指定キーの真偽値設定を保存する。
func (s *Store) SetBoolPref(ctx context.Context, key string, value bool) error {
	str := "false"
	if value {
		str = "true"
	}
	return s.SetPref(ctx, key, str)
}

// GetCredentials はユーザー入力のデータベース接続情報を返す。
// 未保存の場合は("", "", nil)。
func (s *Store) GetCredentials(ctx context.Context) (token, baseID string, err error) {
	const query = `SELECT token, base_id FROM data_credentials WHERE id = 1`
	err = s.db.QueryRowContext(ctx, query).Scan(&token, &baseID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get credentials: %w", err)
	}
	return token, baseID, nil
}

// SaveCredentials はユーザー入力のデータベース接続情報を保存する。
// 既存の値は上書きされる。
func (s *Store) SaveCredentials(ctx context.Context, token, baseID string) error {
	const query = `INSERT INTO data_credentials (id, token, base_id, updated_at) VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET token = excluded.token, base_id = excluded.base_id, updated_at = CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, query, token, baseID); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}
