// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, config, data, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthFailed          = "AUTH_FAILED"
	ErrCodeProfileResolution   = "PROFILE_RESOLUTION_FAILED"
	ErrCodeNotConfigured       = "NOT_CONFIGURED"
	ErrCodeFetchFailed         = "FETCH_FAILED"
	ErrCodeNoRecords           = "NO_RECORDS"
	ErrCodeCredentialsLocked   = "CREDENTIALS_LOCKED"
	ErrCodeInvalidTheme        = "INVALID_THEME"
	ErrCodeAnnouncementsFailed = "ANNOUNCEMENTS_FAILED"
)

// NewAuthFailedError は認証失敗エラーを生成する。
// detailにはプロバイダーから返されたメッセージを渡す（ない場合は空文字）。
func NewAuthFailedError(detail string) *APIError {
	msg := "認証に失敗しました。"
	if detail != "" {
		msg = fmt.Sprintf("認証に失敗しました: %s", detail)
	}
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  msg,
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認し、再度お試しください。",
	}
}

// NewNotConfiguredError はデータベース接続が未設定の場合のエラーを生成する。
// ネットワークアクセスを一切行わずに返すこと。
func NewNotConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodeNotConfigured,
		Message:  "外部データベースの接続情報が設定されていません。",
		Category: "config",
		Action:   "管理者によるセットアップが完了するまでお待ちください。",
	}
}

// NewFetchFailedError は外部データ取得失敗エラーを生成する。
// HTTPステータスが判明している場合はstatusに渡す（不明は0）。
func NewFetchFailedError(status int, reason string) *APIError {
	msg := fmt.Sprintf("データの取得に失敗しました: %s", reason)
	if status > 0 {
		msg = fmt.Sprintf("データの取得に失敗しました（ステータス %d）: %s", status, reason)
	}
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  msg,
		Category: "data",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNoRecordsWarning はレコード0件の警告を生成する。
// 失敗ではないが、テーブル名の誤りの可能性をユーザーに伝える。
func NewNoRecordsWarning(table string) *APIError {
	return &APIError{
		Code:     ErrCodeNoRecords,
		Message:  fmt.Sprintf("テーブル「%s」にはレコードがありません。", table),
		Category: "data",
		Action:   "テーブル名が正しいか確認してください。",
	}
}

// NewCredentialsLockedError は管理者専用モードで接続情報の保存を拒否するエラーを生成する。
func NewCredentialsLockedError() *APIError {
	return &APIError{
		Code:     ErrCodeCredentialsLocked,
		Message:  "このアプリでは接続情報の変更は管理者のみ可能です。",
		Category: "config",
		Action:   "管理者によるセットアップが必要です。",
	}
}

// NewInvalidThemeError は無効なテーマ指定エラーを生成する。
func NewInvalidThemeError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTheme,
		Message:  fmt.Sprintf("無効なテーマです: %s", value),
		Category: "validation",
		Action:   "テーマには light、dark、system のいずれかを指定してください。",
	}
}

// NewAnnouncementsFailedError はお知らせフィード取得失敗エラーを生成する。
func NewAnnouncementsFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAnnouncementsFailed,
		Message:  fmt.Sprintf("お知らせの取得に失敗しました: %s", reason),
		Category: "data",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
