package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/profileman/internal/model"
)

// PostgresSyncLogRepo はPostgreSQLを使用した同期ログリポジトリ。
type PostgresSyncLogRepo struct {
	db *sql.DB
}

// NewPostgresSyncLogRepo はPostgresSyncLogRepoを生成する。
func NewPostgresSyncLogRepo(db *sql.DB) *PostgresSyncLogRepo {
	return &PostgresSyncLogRepo{db: db}
}

// Create は同期ログを1件作成する。
func (r *PostgresSyncLogRepo) Create(ctx context.Context, log *model.SyncLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_logs (id, user_id, platform, success, message, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ID, log.UserID, log.Platform, log.Success, log.Message,
		log.DurationMs, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("同期ログの作成に失敗しました: %w", err)
	}
	return nil
}

// ListRecentByUser はユーザーの直近の同期ログを新しい順に返す。
func (r *PostgresSyncLogRepo) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.SyncLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, platform, success, message, duration_ms, created_at
		 FROM sync_logs WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("同期ログの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var logs []*model.SyncLog
	for rows.Next() {
		log := &model.SyncLog{}
		if err := rows.Scan(
			&log.ID, &log.UserID, &log.Platform, &log.Success,
			&log.Message, &log.DurationMs, &log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("同期ログの読み取りに失敗しました: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("同期ログの走査に失敗しました: %w", err)
	}

	return logs, nil
}

// DeleteOlderThan は指定日時より古いログを削除し、削除件数を返す。
func (r *PostgresSyncLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_logs WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("同期ログの削除に失敗しました: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ SyncLogRepository = (*PostgresSyncLogRepo)(nil)
