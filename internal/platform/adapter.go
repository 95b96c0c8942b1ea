// Package platform はプラットフォーム固有のAPI呼び出し層を提供する。
// 各アダプターは共通のPush契約を実装し、失敗を必ずSyncResultに変換して返す。
// アダプター境界を越えてエラーやpanicが伝播することはない。
package platform

import (
	"context"

	"github.com/hitoshi/profileman/internal/mapper"
	"github.com/hitoshi/profileman/internal/model"
)

// CredentialSource はアダプターが有効なアクセストークンを取得するインターフェース。
// Credential Storeが実装する。
type CredentialSource interface {
	GetValidToken(ctx context.Context, conn *model.PlatformConnection) (string, error)
}

// Adapter は1プラットフォームへのプロフィール書き込みのインターフェース。
type Adapter interface {
	// Platform はこのアダプターが扱うプラットフォームを返す。
	Platform() model.Platform

	// Push はマッピング済みペイロードをプラットフォームへ書き込む。
	// 失敗してもエラーは返さず、必ずSyncResultとして結果を返す。
	Push(ctx context.Context, conn *model.PlatformConnection, payload *mapper.Payload) model.SyncResult
}

// Registry はプラットフォーム名をキーとするアダプターの登録簿。
// オーケストレーターはswitch分岐ではなくルックアップでアダプターを選択する。
// 新しいプラットフォームはアダプターを登録するだけで追加できる。
type Registry struct {
	adapters map[model.Platform]Adapter
}

// NewRegistry は指定アダプターを登録したRegistryを生成する。
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[model.Platform]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Platform()] = a
	}
	return &Registry{adapters: m}
}

// Lookup は指定プラットフォームのアダプターを返す。
// 未登録の場合は2番目の戻り値がfalseになる。
func (r *Registry) Lookup(platform model.Platform) (Adapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}

// Platforms は登録済みプラットフォームの一覧を返す。
func (r *Registry) Platforms() []model.Platform {
	platforms := make([]model.Platform, 0, len(r.adapters))
	for _, p := range model.KnownPlatforms {
		if _, ok := r.adapters[p]; ok {
			platforms = append(platforms, p)
		}
	}
	return platforms
}

// validatePayloadLimit はペイロードの文字数制限超過を検証する。
// 超過時はValidationErrorの失敗結果を返す（ネットワーク呼び出しは行わない）。
func validatePayloadLimit(payload *mapper.Payload) (model.SyncResult, bool) {
	if payload.OverLimit {
		err := model.NewValidationError(payload.Platform,
			"説明文が最大文字数を超えています")
		return model.FailureResult(payload.Platform, err), false
	}
	return model.SyncResult{}, true
}

// credentialFailure はCredential Storeのエラーを失敗結果に変換する。
func credentialFailure(platform model.Platform, err error) model.SyncResult {
	if syncErr, ok := err.(*model.SyncError); ok {
		return model.FailureResult(platform, syncErr)
	}
	return model.FailureResult(platform, model.NewCredentialError(platform, err.Error()))
}
