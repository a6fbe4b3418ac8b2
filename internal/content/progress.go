package content

import (
	"context"
	"encoding/json"
	"fmt"
)

// PrefStore はレッスン進捗の永続化に必要なインターフェース。
type PrefStore interface {
	GetPref(ctx context.Context, key string) (string, error)
	SetPref(ctx context.Context, key, value string) error
}

// ProgressTracker は完了済みレッスンの記録を管理する。
// 進捗は端末ローカルにのみ保存する。
type ProgressTracker struct {
	prefs PrefStore
	key   string
}

// NewProgressTracker はProgressTrackerを生成する。
func NewProgressTracker(prefs PrefStore, key string) *ProgressTracker {
	return &ProgressTracker{prefs: prefs, key: key}
}

// Completed は完了済みレッスンIDの一覧を返す。未記録の場合は空スライス。
func (t *ProgressTracker) Completed(ctx context.Context) ([]string, error) {
	raw, err := t.prefs.GetPref(ctx, t.key)
	if err != nil {
		return nil, fmt.Errorf("進捗の読み込みに失敗しました: %w", err)
	}
	if raw == "" {
		return []string{}, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("進捗データの解析に失敗しました: %w", err)
	}
	return ids, nil
}

// MarkCompleted はレッスンを完了として記録する。記録済みの場合は何もしない。
func (t *ProgressTracker) MarkCompleted(ctx context.Context, lessonID string) error {
	ids, err := t.Completed(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == lessonID {
			return nil
		}
	}

	ids = append(ids, lessonID)
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("進捗データの生成に失敗しました: %w", err)
	}
	if err := t.prefs.SetPref(ctx, t.key, string(raw)); err != nil {
		return fmt.Errorf("進捗の保存に失敗しました: %w", err)
	}
	return nil
}

// IsCompleted はレッスンが完了済みかを返す。
func (t *ProgressTracker) IsCompleted(ctx context.Context, lessonID string) (bool, error) {
	ids, err := t.Completed(ctx)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == lessonID {
			return true, nil
		}
	}
	return false, nil
}
