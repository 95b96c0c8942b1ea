// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/profileman/internal/model"
)

// ConnectionRepository はプラットフォーム接続の永続化インターフェース。
// 接続レコードの唯一の書き込み経路であり、(user_id, platform) の一意性を前提とする。
type ConnectionRepository interface {
	// FindByUserAndPlatform はユーザーIDとプラットフォームで接続を検索する。
	// 見つからない場合はnilを返す。
	FindByUserAndPlatform(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error)

	// ListActiveByUserID はユーザーの有効な接続一覧を返す。
	ListActiveByUserID(ctx context.Context, userID string) ([]*model.PlatformConnection, error)

	// ListDueForSync は同期対象の有効な接続を取得する。
	// last_synced_at IS NULL または last_synced_at <= olderThan の接続を
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDueForSync(ctx context.Context, olderThan time.Time) ([]*model.PlatformConnection, error)

	// Upsert は接続を作成、または既存の (user_id, platform) レコードを更新・再有効化する。
	// OAuthコールバック成功時に使用される。
	Upsert(ctx context.Context, conn *model.PlatformConnection) error

	// Deactivate は接続を無効化する（ソフトデリート）。
	// レコードは監査のため保持される。
	Deactivate(ctx context.Context, userID string, platform model.Platform) error

	// UpdateToken は接続のトークンと有効期限を1文で更新する。
	// トークンリフレッシュ成功時に使用される。
	UpdateToken(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error

	// UpdateSyncState は同期試行の完了後に last_synced_at / sync_status /
	// last_sync_error を更新する。成功・失敗を問わず同期完了ごとに呼ばれる。
	UpdateSyncState(ctx context.Context, id string, syncedAt time.Time, status model.SyncStatus, errMsg string) error
}

// BusinessRepository はビジネスプロフィールの読み取りインターフェース。
// プロフィールの所有者はビジネス管理層であり、このサブシステムは読み取りのみを行う。
type BusinessRepository interface {
	// FindByUserID はユーザーのビジネスプロフィールを取得する。
	// 見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.BusinessProfile, error)
}

// SyncLogRepository は同期試行の監査ログの永続化インターフェース。
type SyncLogRepository interface {
	// Create は同期ログを1件作成する。
	Create(ctx context.Context, log *model.SyncLog) error

	// ListRecentByUser はユーザーの直近の同期ログを新しい順に返す。
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.SyncLog, error)

	// DeleteOlderThan は指定日時より古いログを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
