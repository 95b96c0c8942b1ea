// Package auth はプラットフォーム接続のOAuthフローを提供する。
// プロバイダーごとの認可URL生成、認可コード交換、トークンリフレッシュ、
// プラットフォーム側ビジネスIDの発見を含む。
package auth

import (
	"context"
	"time"

	"github.com/hitoshi/profileman/internal/model"
)

// OAuthToken はプロバイダーから取得したトークンセットを表す。
type OAuthToken struct {
	AccessToken  string
	RefreshToken string // プロバイダーが発行しない場合は空
	ExpiresAt    time.Time
}

// ConnectionMaterial はOAuthコールバックで取得した接続素材を表す。
// トークンに加え、プラットフォーム側のビジネス/ページ識別子を含む。
type ConnectionMaterial struct {
	Token              OAuthToken
	PlatformBusinessID string
}

// OAuthProvider はプラットフォーム接続のOAuthプロバイダーのインターフェース。
type OAuthProvider interface {
	// Platform はこのプロバイダーが扱うプラットフォームを返す。
	Platform() model.Platform

	// GetConnectURL はOAuth認可URLを生成する。
	GetConnectURL(state string) string

	// ExchangeCode は認可コードをトークンに交換し、
	// プラットフォーム側のビジネスIDを発見して接続素材を返す。
	ExchangeCode(ctx context.Context, code string) (*ConnectionMaterial, error)
}

// TokenRefresher はリフレッシュトークンによるトークン更新のインターフェース。
// リフレッシュトークンを発行しないプロバイダー（Facebook等）は実装しない。
type TokenRefresher interface {
	// RefreshToken はリフレッシュトークンで新しいアクセストークンを取得する。
	RefreshToken(ctx context.Context, refreshToken string) (*OAuthToken, error)
}
