package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/profileman/internal/model"
)

// PostgresConnectionRepo はPostgreSQLを使用した接続リポジトリ。
type PostgresConnectionRepo struct {
	db *sql.DB
}

// NewPostgresConnectionRepo はPostgresConnectionRepoを生成する。
func NewPostgresConnectionRepo(db *sql.DB) *PostgresConnectionRepo {
	return &PostgresConnectionRepo{db: db}
}

const connectionColumns = `id, user_id, platform, access_token, refresh_token,
	token_expires_at, platform_business_id, is_active, last_synced_at,
	sync_status, last_sync_error, created_at, updated_at`

// scanConnection は1行分の接続レコードを読み取る。
func scanConnection(scan func(dest ...any) error) (*model.PlatformConnection, error) {
	conn := &model.PlatformConnection{}
	var refreshToken, platformBusinessID, lastSyncError sql.NullString
	var lastSyncedAt sql.NullTime

	err := scan(
		&conn.ID, &conn.UserID, &conn.Platform, &conn.AccessToken, &refreshToken,
		&conn.TokenExpiresAt, &platformBusinessID, &conn.IsActive, &lastSyncedAt,
		&conn.SyncStatus, &lastSyncError, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	conn.RefreshToken = nullStringValue(refreshToken)
	conn.PlatformBusinessID = nullStringValue(platformBusinessID)
	conn.LastSyncError = nullStringValue(lastSyncError)
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		conn.LastSyncedAt = &t
	}

	return conn, nil
}

// FindByUserAndPlatform はユーザーIDとプラットフォームで接続を検索する。見つからない場合はnilを返す。
func (r *PostgresConnectionRepo) FindByUserAndPlatform(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM platform_connections
		 WHERE user_id = $1 AND platform = $2`,
		userID, platform,
	)

	conn, err := scanConnection(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("接続の取得に失敗しました: %w", err)
	}
	return conn, nil
}

// ListActiveByUserID はユーザーの有効な接続一覧を返す。
func (r *PostgresConnectionRepo) ListActiveByUserID(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM platform_connections
		 WHERE user_id = $1 AND is_active = true
		 ORDER BY platform ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("有効な接続一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectConnections(rows)
}

// ListDueForSync は同期対象の有効な接続を取得する。
// last_synced_at IS NULL または last_synced_at <= olderThan の接続を
// FOR UPDATE SKIP LOCKEDで排他的に取得する。
func (r *PostgresConnectionRepo) ListDueForSync(ctx context.Context, olderThan time.Time) ([]*model.PlatformConnection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM platform_connections
		 WHERE is_active = true
		   AND (last_synced_at IS NULL OR last_synced_at <= $1)
		 ORDER BY last_synced_at ASC NULLS FIRST
		 FOR UPDATE SKIP LOCKED`,
		olderThan,
	)
	if err != nil {
		return nil, fmt.Errorf("同期対象接続の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectConnections(rows)
}

// Upsert は接続を作成、または既存の (user_id, platform) レコードを更新・再有効化する。
func (r *PostgresConnectionRepo) Upsert(ctx context.Context, conn *model.PlatformConnection) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO platform_connections
		    (id, user_id, platform, access_token, refresh_token, token_expires_at,
		     platform_business_id, is_active, sync_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8, $9, $10)
		 ON CONFLICT (user_id, platform) DO UPDATE SET
		    access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    token_expires_at = EXCLUDED.token_expires_at,
		    platform_business_id = EXCLUDED.platform_business_id,
		    is_active = true,
		    last_sync_error = NULL,
		    updated_at = EXCLUDED.updated_at`,
		conn.ID, conn.UserID, conn.Platform, conn.AccessToken,
		nullString(conn.RefreshToken), conn.TokenExpiresAt,
		nullString(conn.PlatformBusinessID), conn.SyncStatus,
		conn.CreatedAt, conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("接続のUPSERTに失敗しました: %w", err)
	}
	return nil
}

// Deactivate は接続を無効化する（ソフトデリート）。
func (r *PostgresConnectionRepo) Deactivate(ctx context.Context, userID string, platform model.Platform) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE platform_connections SET is_active = false, updated_at = now()
		 WHERE user_id = $1 AND platform = $2`,
		userID, platform,
	)
	if err != nil {
		return fmt.Errorf("接続の無効化に失敗しました: %w", err)
	}
	return nil
}

// UpdateToken は接続のトークンと有効期限を更新する。
func (r *PostgresConnectionRepo) UpdateToken(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE platform_connections SET
		    access_token = $2,
		    refresh_token = $3,
		    token_expires_at = $4,
		    updated_at = now()
		 WHERE id = $1`,
		id, accessToken, nullString(refreshToken), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("トークンの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateSyncState は同期試行の完了後に同期状態を更新する。
func (r *PostgresConnectionRepo) UpdateSyncState(ctx context.Context, id string, syncedAt time.Time, status model.SyncStatus, errMsg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE platform_connections SET
		    last_synced_at = $2,
		    sync_status = $3,
		    last_sync_error = $4,
		    updated_at = now()
		 WHERE id = $1`,
		id, syncedAt, status, nullString(errMsg),
	)
	if err != nil {
		return fmt.Errorf("同期状態の更新に失敗しました: %w", err)
	}
	return nil
}

// collectConnections はrowsから接続のスライスを構築する。
func collectConnections(rows *sql.Rows) ([]*model.PlatformConnection, error) {
	var conns []*model.PlatformConnection
	for rows.Next() {
		conn, err := scanConnection(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("接続の読み取りに失敗しました: %w", err)
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("接続の走査に失敗しました: %w", err)
	}
	return conns, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ ConnectionRepository = (*PostgresConnectionRepo)(nil)
