package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// CellSanitizerService はテーブルセルに表示する文字列のサニタイズ機能を定義する。
// 外部データベースのフィールド値は信頼できないため、表示前にマークアップを
// すべて除去してプレーンテキストに変換する。
type CellSanitizerService interface {
	// SanitizeText は入力からすべてのHTMLタグを除去したプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// cellSanitizer はCellSanitizerServiceの実装。
// bluemondayのStrictPolicy（タグを一切許可しない）を使用する。
type cellSanitizer struct {
	policy *bluemonday.Policy
}

// NewCellSanitizer はCellSanitizerServiceの新しいインスタンスを生成する。
func NewCellSanitizer() *cellSanitizer {
	return &cellSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力からマークアップを除去したプレーンテキストを返す。
// StrictPolicyはエンティティをエスケープして返すため、表示用にアンエスケープする。
func (s *cellSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
