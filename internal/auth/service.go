package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/profileman/internal/model"
)

// ConnectionUpserter は接続レコードの作成・再有効化のインターフェース。
// Connection Registryが実装する。
type ConnectionUpserter interface {
	Upsert(ctx context.Context, conn *model.PlatformConnection) error
}

// ConnectService はプラットフォーム接続のOAuthフローのビジネスロジックを提供する。
// プロバイダーはプラットフォーム名で登録され、switch分岐なしで選択される。
type ConnectService struct {
	providers map[model.Platform]OAuthProvider
	upserter  ConnectionUpserter
}

// NewConnectService はConnectServiceを生成する。
func NewConnectService(upserter ConnectionUpserter, providers ...OAuthProvider) *ConnectService {
	m := make(map[model.Platform]OAuthProvider, len(providers))
	for _, p := range providers {
		m[p.Platform()] = p
	}
	return &ConnectService{
		providers: m,
		upserter:  upserter,
	}
}

// Provider は指定プラットフォームのプロバイダーを返す。
// OAuth非対応のプラットフォーム（firmy等）の場合は2番目の戻り値がfalseになる。
func (s *ConnectService) Provider(platform model.Platform) (OAuthProvider, bool) {
	p, ok := s.providers[platform]
	return p, ok
}

// GetConnectURL は指定プラットフォームのOAuth認可URLを生成する。
func (s *ConnectService) GetConnectURL(platform model.Platform, state string) (string, error) {
	provider, ok := s.providers[platform]
	if !ok {
		return "", fmt.Errorf("platform %s does not support oauth connect", platform)
	}
	return provider.GetConnectURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、接続を作成または再有効化する。
// 認可コードの交換とビジネスID発見に成功した場合のみUpsertが行われる。
func (s *ConnectService) HandleCallback(ctx context.Context, userID string, platform model.Platform, code string) (*model.PlatformConnection, error) {
	provider, ok := s.providers[platform]
	if !ok {
		return nil, fmt.Errorf("platform %s does not support oauth connect", platform)
	}

	material, err := provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code for %s: %w", platform, err)
	}

	now := time.Now()
	conn := &model.PlatformConnection{
		ID:                 uuid.New().String(),
		UserID:             userID,
		Platform:           platform,
		AccessToken:        material.Token.AccessToken,
		RefreshToken:       material.Token.RefreshToken,
		TokenExpiresAt:     material.Token.ExpiresAt,
		PlatformBusinessID: material.PlatformBusinessID,
		IsActive:           true,
		SyncStatus:         model.SyncStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.upserter.Upsert(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to persist connection: %w", err)
	}

	slog.Info("platform connected",
		slog.String("user_id", userID),
		slog.String("platform", string(platform)),
		slog.String("platform_business_id", material.PlatformBusinessID),
	)

	return conn, nil
}
