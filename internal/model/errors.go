// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, connection, sync, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnknownPlatform    = "UNKNOWN_PLATFORM"
	ErrCodeConnectionNotFound = "CONNECTION_NOT_FOUND"
	ErrCodeBusinessNotFound   = "BUSINESS_NOT_FOUND"
	ErrCodeSyncInProgress     = "SYNC_IN_PROGRESS"
	ErrCodeOAuthFailed        = "OAUTH_FAILED"
	ErrCodeInvalidWebsiteURL  = "INVALID_WEBSITE_URL"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewUnknownPlatformError は未対応プラットフォームのエラーを生成する。
func NewUnknownPlatformError(platform string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownPlatform,
		Message:  fmt.Sprintf("対応していないプラットフォームです: %s", platform),
		Category: "validation",
		Action:   "google、facebook、instagram、firmy のいずれかを指定してください。",
	}
}

// NewConnectionNotFoundError は接続未検出エラーを生成する。
func NewConnectionNotFoundError(platform Platform) *APIError {
	return &APIError{
		Code:     ErrCodeConnectionNotFound,
		Message:  fmt.Sprintf("%s への有効な接続が見つかりません。", platform),
		Category: "connection",
		Action:   "プラットフォーム接続画面から接続をやり直してください。",
	}
}

// NewBusinessNotFoundError はビジネスプロフィール未検出エラーを生成する。
func NewBusinessNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeBusinessNotFound,
		Message:  "ビジネスプロフィールが見つかりません。",
		Category: "sync",
		Action:   "先にビジネス情報を登録してください。",
	}
}

// NewSyncInProgressError は同一接続への同期が進行中の場合のエラーを生成する。
func NewSyncInProgressError(platform Platform) *APIError {
	return &APIError{
		Code:     ErrCodeSyncInProgress,
		Message:  fmt.Sprintf("%s の同期は既に実行中です。", platform),
		Category: "sync",
		Action:   "実行中の同期が完了してから再度お試しください。",
	}
}

// NewOAuthFailedError はOAuth連携失敗のエラーを生成する。
func NewOAuthFailedError(platform Platform) *APIError {
	return &APIError{
		Code:     ErrCodeOAuthFailed,
		Message:  fmt.Sprintf("%s との認証連携に失敗しました。", platform),
		Category: "auth",
		Action:   "時間をおいて再度接続をお試しください。",
	}
}

// NewInvalidWebsiteURLError は無効なウェブサイトURLのエラーを生成する。
func NewInvalidWebsiteURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidWebsiteURL,
		Message:  fmt.Sprintf("無効なウェブサイトURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まる公開URL）を入力してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
