// Package credential はプラットフォーム接続のトークン管理を提供する。
// 期限切れ間近のトークンのリフレッシュと永続化を一箇所に集約し、
// 有効期限マージンのポリシーがここ以外に存在しないようにする。
package credential

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/profileman/internal/auth"
	"github.com/hitoshi/profileman/internal/model"
)

// ConnectionTokenUpdater はリフレッシュ後のトークン永続化のインターフェース。
type ConnectionTokenUpdater interface {
	UpdateToken(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error
}

// TokenRefreshRecorder はトークンリフレッシュの結果をメトリクスとして記録する
// インターフェース。metrics.Collectorが実装する。
type TokenRefreshRecorder interface {
	RecordTokenRefresh(platform model.Platform, success bool)
}

// Store はプラットフォーム接続の有効なトークンを供給する。
// 現在時刻がトークン有効期限のマージン内に入っており、かつリフレッシュ
// トークンが存在する場合はプラットフォーム固有のリフレッシュを実行し、
// 新しいトークンを接続レコードへ永続化してから返す。
type Store struct {
	refreshers map[model.Platform]auth.TokenRefresher
	repo       ConnectionTokenUpdater
	margin     time.Duration
	logger     *slog.Logger
	metrics    TokenRefreshRecorder
}

// NewStore はStoreを生成する。
// marginが0以下の場合はデフォルト値5分を使用する。
// metricsはnilを許容する（記録をスキップする）。
func NewStore(repo ConnectionTokenUpdater, margin time.Duration, logger *slog.Logger, metrics TokenRefreshRecorder) *Store {
	if margin <= 0 {
		margin = 5 * time.Minute
	}
	return &Store{
		refreshers: make(map[model.Platform]auth.TokenRefresher),
		repo:       repo,
		margin:     margin,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterRefresher はプラットフォームのトークンリフレッシャーを登録する。
// リフレッシュトークンを発行しないプラットフォームは登録しない。
func (s *Store) RegisterRefresher(platform model.Platform, r auth.TokenRefresher) {
	s.refreshers[platform] = r
}

// GetValidToken は接続の有効なアクセストークンを返す。
// 必要に応じてリフレッシュを行い、新しいトークンと有効期限を
// 接続レコードへ永続化した上で、引数のconnもリフレッシュ後の状態に更新する。
// アクセストークンが未設定の場合は *model.SyncError（configuration）を、
// リフレッシュトークンが存在しないまま期限切れになった場合と
// リフレッシュ呼び出しが失敗した場合は *model.SyncError（credential）を返す。
func (s *Store) GetValidToken(ctx context.Context, conn *model.PlatformConnection) (string, error) {
	// トークン未設定は接続レコードの必須フィールド欠落として扱う
	if conn.AccessToken == "" {
		return "", model.NewConfigurationError(conn.Platform, "アクセストークン")
	}

	// 期限までマージン以上の余裕があればそのまま返す
	if time.Until(conn.TokenExpiresAt) > s.margin {
		return conn.AccessToken, nil
	}

	if conn.RefreshToken == "" {
		return "", model.NewCredentialError(conn.Platform, "トークンが期限切れで、リフレッシュトークンがありません")
	}

	refresher, ok := s.refreshers[conn.Platform]
	if !ok {
		return "", model.NewCredentialError(conn.Platform, "トークンリフレッシュに対応していません")
	}

	token, err := refresher.RefreshToken(ctx, conn.RefreshToken)
	if err != nil {
		s.recordRefresh(conn.Platform, false)
		s.logger.Error("トークンリフレッシュに失敗しました",
			slog.String("connection_id", conn.ID),
			slog.String("platform", string(conn.Platform)),
			slog.String("error", err.Error()),
		)
		return "", model.NewCredentialError(conn.Platform, "トークンリフレッシュに失敗しました")
	}
	s.recordRefresh(conn.Platform, true)

	// プロバイダーが新しいリフレッシュトークンを返さない場合は既存の値を維持する
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = conn.RefreshToken
	}

	if err := s.repo.UpdateToken(ctx, conn.ID, token.AccessToken, refreshToken, token.ExpiresAt); err != nil {
		// 永続化できないトークンを使い続けると次回以降のリフレッシュが
		// 失効済みトークンで行われるため、ここでは失敗として扱う
		s.logger.Error("リフレッシュ後のトークン永続化に失敗しました",
			slog.String("connection_id", conn.ID),
			slog.String("platform", string(conn.Platform)),
			slog.String("error", err.Error()),
		)
		return "", model.NewCredentialError(conn.Platform, "トークンの保存に失敗しました")
	}

	conn.AccessToken = token.AccessToken
	conn.RefreshToken = refreshToken
	conn.TokenExpiresAt = token.ExpiresAt

	s.logger.Info("トークンをリフレッシュしました",
		slog.String("connection_id", conn.ID),
		slog.String("platform", string(conn.Platform)),
		slog.Time("expires_at", token.ExpiresAt),
	)

	return token.AccessToken, nil
}

// recordRefresh はリフレッシュ結果をメトリクスに記録する。
func (s *Store) recordRefresh(platform model.Platform, success bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordTokenRefresh(platform, success)
}
