// Package syncjob はプロフィールのバックグラウンド同期処理を提供する。
// 定期ティッカーで同期期限の到来した接続を取得し、ユーザー単位でまとめて同期する。
package syncjob

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/profileman/internal/model"
	"github.com/hitoshi/profileman/internal/repository"
)

// SyncExecutor はユーザーの接続群を同期する実行インターフェース。
// syncer.Orchestratorが実装する。
type SyncExecutor interface {
	SyncAll(ctx context.Context, profile *model.BusinessProfile, conns []*model.PlatformConnection) map[model.Platform]model.SyncResult
}

// Scheduler は同期期限の到来した接続の定期同期を行う。
// 複数ワーカープロセスが同時に動いても、ListDueForSyncの
// FOR UPDATE SKIP LOCKEDにより同一接続の二重処理は発生しない。
type Scheduler struct {
	connRepo     repository.ConnectionRepository
	businessRepo repository.BusinessRepository
	executor     SyncExecutor
	logger       *slog.Logger
	syncInterval time.Duration
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// syncIntervalが0以下の場合はデフォルト値15分を使用する。
func NewScheduler(
	connRepo repository.ConnectionRepository,
	businessRepo repository.BusinessRepository,
	executor SyncExecutor,
	logger *slog.Logger,
	syncInterval time.Duration,
) *Scheduler {
	if syncInterval <= 0 {
		syncInterval = 15 * time.Minute
	}
	return &Scheduler{
		connRepo:     connRepo,
		businessRepo: businessRepo,
		executor:     executor,
		logger:       logger,
		syncInterval: syncInterval,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("tick_interval", tickInterval),
		slog.Duration("sync_interval", s.syncInterval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("同期サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は同期期限の到来した接続を1回取得し、ユーザー単位で同期を実行する。
// ビジネスプロフィールが未登録のユーザーの接続はスキップされる
// （次のサイクルで再び対象になる）。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	olderThan := time.Now().Add(-s.syncInterval)
	conns, err := s.connRepo.ListDueForSync(ctx, olderThan)
	if err != nil {
		return err
	}

	if len(conns) == 0 {
		s.logger.Info("同期対象の接続はありません")
		return nil
	}

	// ユーザー単位にまとめてプロフィールのロードを1回にする
	byUser := make(map[string][]*model.PlatformConnection)
	userOrder := make([]string, 0)
	for _, conn := range conns {
		if _, ok := byUser[conn.UserID]; !ok {
			userOrder = append(userOrder, conn.UserID)
		}
		byUser[conn.UserID] = append(byUser[conn.UserID], conn)
	}

	s.logger.Info("同期サイクルを開始します",
		slog.Int("connection_count", len(conns)),
		slog.Int("user_count", len(userOrder)),
	)

	synced := 0
	for _, userID := range userOrder {
		userConns := byUser[userID]

		profile, err := s.businessRepo.FindByUserID(ctx, userID)
		if err != nil {
			s.logger.Error("ビジネスプロフィールの取得に失敗しました",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if profile == nil {
			s.logger.Warn("ビジネスプロフィールが未登録のためスキップします",
				slog.String("user_id", userID),
				slog.Int("connection_count", len(userConns)),
			)
			continue
		}

		s.executor.SyncAll(ctx, profile, userConns)
		synced += len(userConns)
	}

	duration := time.Since(start)
	s.logger.Info("同期サイクルが完了しました",
		slog.Int("connection_count", len(conns)),
		slog.Int("synced_count", synced),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
