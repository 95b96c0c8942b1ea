// Package model はドメインモデルを定義する。
package model

import "fmt"

// SyncErrorCategory は同期エラーの原因分類を表す。
type SyncErrorCategory string

const (
	// SyncErrorConfiguration は接続レコードの必須フィールド欠落。
	// 再接続なしではリトライ不可。
	SyncErrorConfiguration SyncErrorCategory = "configuration"
	// SyncErrorCredential はトークンの期限切れ・無効・リフレッシュ不能。
	// 再接続が必要。
	SyncErrorCredential SyncErrorCategory = "credential"
	// SyncErrorPlatformAPI はプラットフォームAPIによる書き込み拒否。
	// 一時的な可能性があり、リトライは呼び出し元の判断に委ねる。
	SyncErrorPlatformAPI SyncErrorCategory = "platform_api"
	// SyncErrorValidation はマッピング後のペイロードがプラットフォーム制限を超過。
	// Field Mapperまたは上流データの問題を示す。
	SyncErrorValidation SyncErrorCategory = "validation"
	// SyncErrorInternal はアダプター内の予期しない失敗（panic捕捉等）。
	SyncErrorInternal SyncErrorCategory = "internal"
)

// SyncError は同期失敗の構造化エラーを表す。
// Detailにはプラットフォームの生エラーペイロードを診断用に保持するが、
// エンドユーザーにはMessageのみを表示する。
type SyncError struct {
	Category SyncErrorCategory
	Code     string
	Message  string
	Detail   string // プラットフォームの生エラーペイロード（診断用）
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *SyncError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// SyncResult は1プラットフォームに対する同期試行の結果を表す。
// 一時的な値であり、LastSyncedAt/SyncStatusの更新以外には永続化されない。
type SyncResult struct {
	Platform Platform
	Success  bool
	Message  string
	Err      *SyncError
}

// NewConfigurationError は接続レコードの必須フィールド欠落エラーを生成する。
func NewConfigurationError(platform Platform, field string) *SyncError {
	return &SyncError{
		Category: SyncErrorConfiguration,
		Code:     "MISSING_CONNECTION_FIELD",
		Message:  fmt.Sprintf("%s の接続情報に %s が設定されていません。", platform, field),
		Action:   "プラットフォームを一度切断し、再接続してください。",
	}
}

// NewCredentialError はトークンの期限切れ・リフレッシュ失敗エラーを生成する。
func NewCredentialError(platform Platform, reason string) *SyncError {
	return &SyncError{
		Category: SyncErrorCredential,
		Code:     "CREDENTIAL_INVALID",
		Message:  fmt.Sprintf("%s のアクセストークンが無効です: %s", platform, reason),
		Action:   "プラットフォームに再接続して認証をやり直してください。",
	}
}

// NewPlatformAPIError はプラットフォームAPIの書き込み拒否エラーを生成する。
// rawBodyにはAPIの生エラーペイロードを診断用に保持する。
func NewPlatformAPIError(platform Platform, statusCode int, rawBody string) *SyncError {
	return &SyncError{
		Category: SyncErrorPlatformAPI,
		Code:     "PLATFORM_API_ERROR",
		Message:  fmt.Sprintf("%s のAPIがステータス %d を返しました。", platform, statusCode),
		Detail:   rawBody,
		Action:   "しばらく待ってから再度同期してください。",
	}
}

// NewValidationError はペイロードの制限超過エラーを生成する。
func NewValidationError(platform Platform, reason string) *SyncError {
	return &SyncError{
		Category: SyncErrorValidation,
		Code:     "PAYLOAD_INVALID",
		Message:  fmt.Sprintf("%s 向けのデータが制限を超えています: %s", platform, reason),
		Action:   "説明文を短くするか、プラットフォーム別の説明文を設定してください。",
	}
}

// NewInternalSyncError はアダプター内の予期しない失敗を表すエラーを生成する。
func NewInternalSyncError(platform Platform, reason string) *SyncError {
	return &SyncError{
		Category: SyncErrorInternal,
		Code:     "SYNC_INTERNAL_ERROR",
		Message:  fmt.Sprintf("%s の同期中に予期しないエラーが発生しました。", platform),
		Detail:   reason,
		Action:   "しばらく待ってから再度同期してください。",
	}
}

// FailureResult はSyncErrorから失敗のSyncResultを生成する。
func FailureResult(platform Platform, err *SyncError) SyncResult {
	return SyncResult{
		Platform: platform,
		Success:  false,
		Message:  err.Message,
		Err:      err,
	}
}

// SuccessResult は成功のSyncResultを生成する。
func SuccessResult(platform Platform, message string) SyncResult {
	return SyncResult{
		Platform: platform,
		Success:  true,
		Message:  message,
	}
}
