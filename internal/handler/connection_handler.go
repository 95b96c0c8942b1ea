// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/profileman/internal/middleware"
	"github.com/hitoshi/profileman/internal/model"
	"github.com/hitoshi/profileman/internal/registry"
)

const oauthStateCookie = "oauth_state"

// ConnectServiceInterface は接続ハンドラーが必要とするOAuthサービスインターフェース。
type ConnectServiceInterface interface {
	// GetConnectURL は指定プラットフォームのOAuth認可URLを生成する。
	GetConnectURL(platform model.Platform, state string) (string, error)
	// HandleCallback はOAuthコールバックを処理し、接続を作成または再有効化する。
	HandleCallback(ctx context.Context, userID string, platform model.Platform, code string) (*model.PlatformConnection, error)
}

// RegistryServiceInterface は接続ハンドラーが必要とする登録簿サービスインターフェース。
type RegistryServiceInterface interface {
	// ListPlatformStatuses は全対応プラットフォームの接続状態を返す。
	ListPlatformStatuses(ctx context.Context, userID string) ([]registry.PlatformStatus, error)
	// Disconnect は接続を無効化する（ソフトデリート）。
	Disconnect(ctx context.Context, userID string, platform model.Platform) error
}

// ConnectionHandlerConfig は接続ハンドラーの設定。
type ConnectionHandlerConfig struct {
	// FrontendURL はOAuthフロー完了後のリダイレクト先。
	FrontendURL  string
	CookieSecure bool
}

// ConnectionHandler はプラットフォーム接続管理のHTTPハンドラー。
type ConnectionHandler struct {
	connectService  ConnectServiceInterface
	registryService RegistryServiceInterface
	config          ConnectionHandlerConfig
}

// NewConnectionHandler はConnectionHandlerを生成する。
func NewConnectionHandler(connectService ConnectServiceInterface, registryService RegistryServiceInterface, config ConnectionHandlerConfig) *ConnectionHandler {
	return &ConnectionHandler{
		connectService:  connectService,
		registryService: registryService,
		config:          config,
	}
}

// platformStatusResponse は1プラットフォームの接続状態のAPIレスポンス。
type platformStatusResponse struct {
	Platform      string     `json:"platform"`
	DisplayName   string     `json:"display_name"`
	Description   string     `json:"description"`
	Connected     bool       `json:"connected"`
	SyncStatus    string     `json:"sync_status,omitempty"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
	LastSyncError string     `json:"last_sync_error,omitempty"`
}

// ListPlatforms は全対応プラットフォームの接続状態を返す。
// GET /api/platforms
func (h *ConnectionHandler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	statuses, err := h.registryService.ListPlatformStatuses(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]platformStatusResponse, len(statuses))
	for i, s := range statuses {
		resp[i] = platformStatusResponse{
			Platform:      string(s.Platform),
			DisplayName:   s.DisplayName,
			Description:   s.Description,
			Connected:     s.Connected,
			SyncStatus:    string(s.SyncStatus),
			LastSyncedAt:  s.LastSyncedAt,
			LastSyncError: s.LastSyncError,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"platforms": resp,
	})
}

// Connect はプラットフォーム接続のOAuthフローを開始する。
// GET /auth/{platform}/connect
func (h *ConnectionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	platform, ok := platformFromURL(w, r)
	if !ok {
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	connectURL, err := h.connectService.GetConnectURL(platform, state)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewUnknownPlatformError(string(platform)))
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, connectURL, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/{platform}/callback?code=xxx&state=yyy
// 失敗時は生のエラーボディを返さず、connect_errorクエリ付きでリダイレクトする。
func (h *ConnectionHandler) Callback(w http.ResponseWriter, r *http.Request) {
	platform, ok := platformFromURL(w, r)
	if !ok {
		return
	}

	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("platform", string(platform)),
		)
		h.redirectWithError(w, r, platform)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectWithError(w, r, platform)
		return
	}

	// 3. コード交換と接続のUpsert
	if _, err := h.connectService.HandleCallback(r.Context(), userID, platform, code); err != nil {
		slog.Error("oauth callback failed",
			slog.String("platform", string(platform)),
			slog.String("error", err.Error()),
		)
		h.redirectWithError(w, r, platform)
		return
	}

	// 4. フロントエンドにリダイレクト
	http.Redirect(w, r,
		fmt.Sprintf("%s?connected=%s", h.config.FrontendURL, platform),
		http.StatusTemporaryRedirect)
}

// Disconnect はプラットフォーム接続を切断する（ソフトデリート）。
// DELETE /api/connections/{platform}
func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	platform, ok := platformFromURL(w, r)
	if !ok {
		return
	}

	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.registryService.Disconnect(r.Context(), userID, platform); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// redirectWithError はOAuth失敗時のエラーインジケーター付きリダイレクトを行う。
func (h *ConnectionHandler) redirectWithError(w http.ResponseWriter, r *http.Request, platform model.Platform) {
	http.Redirect(w, r,
		fmt.Sprintf("%s?connect_error=%s", h.config.FrontendURL, platform),
		http.StatusTemporaryRedirect)
}

// platformFromURL はURLパラメータからプラットフォームを解決する。
// 未対応のプラットフォームの場合はエラーレスポンスを書き込みfalseを返す。
func platformFromURL(w http.ResponseWriter, r *http.Request) (model.Platform, bool) {
	raw := chi.URLParam(r, "platform")
	platform := model.Platform(raw)
	if !model.IsKnownPlatform(platform) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewUnknownPlatformError(raw))
		return "", false
	}
	return platform, true
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// --- 共通ヘルパー ---

// writeUnauthorized は401の統一エラーレスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		middleware.WriteErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnknownPlatform, model.ErrCodeInvalidWebsiteURL:
		return http.StatusBadRequest
	case model.ErrCodeConnectionNotFound, model.ErrCodeBusinessNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeSyncInProgress:
		return http.StatusConflict
	case model.ErrCodeOAuthFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
