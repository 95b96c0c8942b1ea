// Package registry はプラットフォーム接続の登録簿のドメインロジックを提供する。
// 接続状態の一覧、同期対象の解決、切断（ソフトデリート）を担当する。
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/profileman/internal/model"
	"github.com/hitoshi/profileman/internal/repository"
)

// PlatformStatus は1プラットフォームの接続状態を表すドメインオブジェクト。
// 未接続のプラットフォームも一覧に含めるため、接続レコードとは別に定義する。
type PlatformStatus struct {
	Platform      model.Platform
	DisplayName   string
	Description   string
	Connected     bool
	SyncStatus    model.SyncStatus
	LastSyncedAt  *time.Time
	LastSyncError string
}

// Service は接続登録簿のサービス層。
type Service struct {
	connRepo repository.ConnectionRepository
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(connRepo repository.ConnectionRepository, logger *slog.Logger) *Service {
	return &Service{
		connRepo: connRepo,
		logger:   logger,
	}
}

// ListPlatformStatuses は全対応プラットフォームの接続状態を固定順序で返す。
// 未接続（接続レコードなし、または無効化済み）のプラットフォームも含まれる。
func (s *Service) ListPlatformStatuses(ctx context.Context, userID string) ([]PlatformStatus, error) {
	conns, err := s.connRepo.ListActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("接続一覧の取得に失敗しました: %w", err)
	}

	byPlatform := make(map[model.Platform]*model.PlatformConnection, len(conns))
	for _, conn := range conns {
		byPlatform[conn.Platform] = conn
	}

	statuses := make([]PlatformStatus, 0, len(model.KnownPlatforms))
	for _, p := range model.KnownPlatforms {
		cfg, _ := model.ConfigFor(p)
		status := PlatformStatus{
			Platform:    p,
			DisplayName: cfg.DisplayName,
			Description: cfg.Description,
		}
		if conn, ok := byPlatform[p]; ok {
			status.Connected = true
			status.SyncStatus = conn.SyncStatus
			status.LastSyncedAt = conn.LastSyncedAt
			status.LastSyncError = conn.LastSyncError
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// ActiveConnections はユーザーの有効な接続一覧を返す。
func (s *Service) ActiveConnections(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	conns, err := s.connRepo.ListActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("接続一覧の取得に失敗しました: %w", err)
	}
	return conns, nil
}

// ActiveConnection はユーザーの指定プラットフォームの有効な接続を返す。
// 未接続または無効化済みの場合はCONNECTION_NOT_FOUNDのAPIErrorを返す。
func (s *Service) ActiveConnection(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
	conn, err := s.connRepo.FindByUserAndPlatform(ctx, userID, platform)
	if err != nil {
		return nil, fmt.Errorf("接続の取得に失敗しました: %w", err)
	}
	if conn == nil || !conn.IsActive {
		return nil, model.NewConnectionNotFoundError(platform)
	}
	return conn, nil
}

// Disconnect は接続を無効化する（ソフトデリート）。
// レコードは監査のため保持され、再接続時にUpsertで再有効化される。
// 有効な接続が存在しない場合はCONNECTION_NOT_FOUNDのAPIErrorを返す。
func (s *Service) Disconnect(ctx context.Context, userID string, platform model.Platform) error {
	conn, err := s.connRepo.FindByUserAndPlatform(ctx, userID, platform)
	if err != nil {
		return fmt.Errorf("接続の取得に失敗しました: %w", err)
	}
	if conn == nil || !conn.IsActive {
		return model.NewConnectionNotFoundError(platform)
	}

	if err := s.connRepo.Deactivate(ctx, userID, platform); err != nil {
		return fmt.Errorf("接続の無効化に失敗しました: %w", err)
	}

	s.logger.Info("プラットフォーム接続を切断しました",
		slog.String("user_id", userID),
		slog.String("platform", string(platform)),
	)

	return nil
}
