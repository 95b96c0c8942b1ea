// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DescriptionSanitizerService はビジネス説明文からHTMLを除去する。
// 説明文はリッチテキストエディタ経由で入力される可能性があり、
// 各プラットフォームの説明フィールドはプレーンテキストのみを受け付けるため、
// マッピング前にタグを完全に除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DescriptionSanitizerService は説明文サニタイズ機能のインターフェースを定義する。
// Field Mapperが文字数制限を評価する前に適用される。
type DescriptionSanitizerService interface {
	// Sanitize は説明文からすべてのHTMLタグを除去し、
	// HTMLエンティティをデコードしたプレーンテキストを返す。
	// 前後の空白は除去される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// descriptionSanitizer はDescriptionSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはすべてのタグと属性を除去し、テキストのみを残す。
func NewDescriptionSanitizer() *descriptionSanitizer {
	return &descriptionSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は説明文からすべてのHTMLタグを除去したプレーンテキストを返す。
// bluemondayはテキストをHTMLエスケープして返すため、
// エンティティ（&amp; 等）をデコードして元のテキストに戻す。
func (s *descriptionSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
