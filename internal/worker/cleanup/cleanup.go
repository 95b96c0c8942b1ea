// Package cleanup は同期ログの自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超過したsync_logsを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SyncLogDeleter は古い同期ログの削除インターフェース。
type SyncLogDeleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は保持期間を超過した同期ログの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	logRepo       SyncLogDeleter
	logger        *slog.Logger
	RetentionDays int // 同期ログの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は30日。
func NewCleanupJob(logRepo SyncLogDeleter, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		logRepo:       logRepo,
		logger:        logger,
		RetentionDays: 30,
	}
}

// Run は保持期間を超過した同期ログを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	cutoff := time.Now().AddDate(0, 0, -j.RetentionDays)
	deletedCount, err := j.logRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("同期ログクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("同期ログクリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("同期ログクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
