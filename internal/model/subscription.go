// Package model はドメインモデルを定義する。
package model

import "time"

// SubscriptionStatus はサブスクリプションの状態を表す。
type SubscriptionStatus string

const (
	// StatusTrial は無料トライアル期間中。
	StatusTrial SubscriptionStatus = "trial"
	// StatusActive は有料サブスクリプション契約中。
	StatusActive SubscriptionStatus = "active"
	// StatusCanceled は解約済み（期間満了までは利用可能な場合がある）。
	StatusCanceled SubscriptionStatus = "canceled"
	// StatusExpired は期限切れ。
	StatusExpired SubscriptionStatus = "expired"
)

// Subscription はユーザーの利用権を表す。
// バックエンドのsubscriptionsテーブルの1行に対応する。
// 初回サインイン時に存在しなければstatus=trial、3日間のトライアルで作成される。
// 削除されることはなく、statusの遷移のみが起こる。
type Subscription struct {
	UserID          string
	Status          SubscriptionStatus
	StartDate       time.Time
	TrialEndDate    *time.Time
	NextBillingDate *time.Time
}

// IsEntitled はstatusが利用権を持つ状態（active または trial）かを返す。
// ローカルの匿名フラグによる利用権はここには含まれない（session側で合成する）。
func (s *Subscription) IsEntitled() bool {
	if s == nil {
		return false
	}
	return s.Status == StatusActive || s.Status == StatusTrial
}

// IsTrialActive はトライアル中かつトライアル期限が未来であるかを返す。
// 期限ちょうど、および期限超過ではfalseを返す。
func (s *Subscription) IsTrialActive(now time.Time) bool {
	if s == nil || s.Status != StatusTrial || s.TrialEndDate == nil {
		return false
	}
	return now.Before(*s.TrialEndDate)
}
