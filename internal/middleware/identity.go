// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// IdentityResolver はリクエストから認証済みユーザーIDを解決するインターフェース。
// 認証基盤は上流（APIゲートウェイや親アプリケーション）が所有しており、
// このサブシステムは解決済みのユーザーIDを受け取るだけにする。
type IdentityResolver interface {
	// ResolveUserID はリクエストからユーザーIDを解決する。
	// 未認証の場合はエラーを返す。
	ResolveUserID(r *http.Request) (string, error)
}

// HeaderIdentityResolver は信頼済みプロキシが付与するヘッダーから
// ユーザーIDを読み取るIdentityResolver実装。
type HeaderIdentityResolver struct {
	HeaderName string
}

// NewHeaderIdentityResolver はHeaderIdentityResolverを生成する。
// headerNameが空の場合はX-User-IDを使用する。
func NewHeaderIdentityResolver(headerName string) *HeaderIdentityResolver {
	if headerName == "" {
		headerName = "X-User-ID"
	}
	return &HeaderIdentityResolver{HeaderName: headerName}
}

// ResolveUserID はヘッダーからユーザーIDを読み取る。
func (h *HeaderIdentityResolver) ResolveUserID(r *http.Request) (string, error) {
	userID := r.Header.Get(h.HeaderName)
	if userID == "" {
		return "", fmt.Errorf("missing %s header", h.HeaderName)
	}
	return userID, nil
}

// NewIdentityMiddleware はIdentityResolverでユーザーIDを解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401 Unauthorizedを返す。
func NewIdentityMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := resolver.ResolveUserID(r)
			if err != nil || userID == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// アイデンティティミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
