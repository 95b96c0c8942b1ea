// Package model はドメインモデルを定義する。
package model

import "time"

// Platform は外部プラットフォームの識別子を表す。
type Platform string

const (
	// PlatformGoogle はGoogleビジネスプロフィール。
	PlatformGoogle Platform = "google"
	// PlatformFacebook はFacebookページ。
	PlatformFacebook Platform = "facebook"
	// PlatformInstagram はInstagramビジネスアカウント。
	// Facebook Graph APIを共有する。
	PlatformInstagram Platform = "instagram"
	// PlatformFirmy はFirmy.czの企業リスティング。
	PlatformFirmy Platform = "firmy"
)

// SyncStatus は接続の直近の同期結果を表す。
type SyncStatus string

const (
	// SyncStatusPending は一度も同期されていない状態。
	SyncStatusPending SyncStatus = "pending"
	// SyncStatusOK は直近の同期が成功した状態。
	SyncStatusOK SyncStatus = "ok"
	// SyncStatusError は直近の同期が失敗した状態。
	// 接続は自動では無効化されない（明示的な切断のみが無効化する）。
	SyncStatusError SyncStatus = "error"
)

// PlatformConnection はユーザーと外部プラットフォームの接続を表す。
// (UserID, Platform) の組で一意。
// OAuth成功時に作成され、切断時は削除せずIsActive=falseにする（ソフトデリート）。
// AccessToken/TokenExpiresAtはトークンリフレッシュ時のみ更新される。
// LastSyncedAt/SyncStatusは同期試行の完了（成功・失敗を問わず）時のみ更新される。
type PlatformConnection struct {
	ID                 string
	UserID             string
	Platform           Platform
	AccessToken        string
	RefreshToken       string
	TokenExpiresAt     time.Time
	PlatformBusinessID string
	IsActive           bool
	LastSyncedAt       *time.Time
	SyncStatus         SyncStatus
	LastSyncError      string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SyncLog は1プラットフォームに対する同期試行の監査ログを表す。
type SyncLog struct {
	ID         string
	UserID     string
	Platform   Platform
	Success    bool
	Message    string
	DurationMs int64
	CreatedAt  time.Time
}
