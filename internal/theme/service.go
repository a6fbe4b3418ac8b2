// Package theme は表示テーマの設定と画面ごとの実効テーマの解決を行う。
package theme

import (
	"context"
	"fmt"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/model"
)

// Theme は表示テーマ。
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	// ThemeSystem はOSの外観設定に追従する。実際の明暗の解決はクライアント側で行う。
	ThemeSystem Theme = "system"
)

// IsValid はテーマ値が有効かを返す。
func (t Theme) IsValid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

// PrefStore はテーマ設定の永続化に必要なインターフェース。
type PrefStore interface {
	GetPref(ctx context.Context, key string) (string, error)
	SetPref(ctx context.Context, key, value string) error
}

// Service はテーマ設定を管理する。
// forceDarkに登録された画面では、ユーザー設定にかかわらずダークテーマを返す。
type Service struct {
	prefs     PrefStore
	prefKey   string
	forceDark map[string]struct{}
}

// NewService はServiceを生成する。forceDarkRoutesには常にダーク表示とする
// 画面のパスを渡す。
func NewService(prefs PrefStore, prefKey string, forceDarkRoutes []string) *Service {
	forced := make(map[string]struct{}, len(forceDarkRoutes))
	for _, route := range forceDarkRoutes {
		forced[route] = struct{}{}
	}
	return &Service{prefs: prefs, prefKey: prefKey, forceDark: forced}
}

// Get は保存済みのテーマ設定を返す。未設定の場合はライトテーマ。
func (s *Service) Get(ctx context.Context) (Theme, error) {
	value, err := s.prefs.GetPref(ctx, s.prefKey)
	if err != nil {
		return "", fmt.Errorf("テーマ設定の読み込みに失敗しました: %w", err)
	}
	t := Theme(value)
	if !t.IsValid() {
		return ThemeLight, nil
	}
	return t, nil
}

// Set はテーマ設定を検証して永続化する。
func (s *Service) Set(ctx context.Context, value string) error {
	t := Theme(value)
	if !t.IsValid() {
		return model.NewInvalidThemeError(value)
	}
	if err := s.prefs.SetPref(ctx, s.prefKey, string(t)); err != nil {
		return fmt.Errorf("テーマ設定の保存に失敗しました: %w", err)
	}
	return nil
}

// Resolve は画面パスに対する実効テーマを返す。
// 強制ダーク指定の画面ではユーザー設定を無視してダークを返す。
// systemはそのまま返し、OSの外観設定への追従はクライアント側に委ねる。
func (s *Service) Resolve(ctx context.Context, route string) (Theme, error) {
	if _, forced := s.forceDark[route]; forced {
		return ThemeDark, nil
	}
	return s.Get(ctx)
}
