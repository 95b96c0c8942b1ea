package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/profileman/internal/middleware"
	"github.com/hitoshi/profileman/internal/model"
	"github.com/hitoshi/profileman/internal/syncer"
)

// SyncOrchestratorInterface は同期ハンドラーが必要とするオーケストレーターインターフェース。
type SyncOrchestratorInterface interface {
	// SyncOne は1接続の同期を実行する。
	SyncOne(ctx context.Context, profile *model.BusinessProfile, conn *model.PlatformConnection) (model.SyncResult, error)
	// SyncAll は全有効接続を並列に同期する。
	SyncAll(ctx context.Context, profile *model.BusinessProfile, conns []*model.PlatformConnection) map[model.Platform]model.SyncResult
}

// ProfileFinder はユーザーのビジネスプロフィール取得のインターフェース。
type ProfileFinder interface {
	FindByUserID(ctx context.Context, userID string) (*model.BusinessProfile, error)
}

// ConnectionSource は同期対象の接続を解決するインターフェース。
// registry.Serviceが実装する。
type ConnectionSource interface {
	// ActiveConnection はユーザーの指定プラットフォームの有効な接続を返す。
	ActiveConnection(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error)
	// ActiveConnections はユーザーの有効な接続一覧を返す。
	ActiveConnections(ctx context.Context, userID string) ([]*model.PlatformConnection, error)
}

// SyncLogSource は同期履歴取得のインターフェース。
// repository.SyncLogRepositoryが実装する。
type SyncLogSource interface {
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.SyncLog, error)
}

// SyncHandler は手動同期のHTTPハンドラー。
type SyncHandler struct {
	orchestrator SyncOrchestratorInterface
	profiles     ProfileFinder
	connections  ConnectionSource
	syncLogs     SyncLogSource
}

// NewSyncHandler はSyncHandlerを生成する。
func NewSyncHandler(orchestrator SyncOrchestratorInterface, profiles ProfileFinder, connections ConnectionSource, syncLogs SyncLogSource) *SyncHandler {
	return &SyncHandler{
		orchestrator: orchestrator,
		profiles:     profiles,
		connections:  connections,
		syncLogs:     syncLogs,
	}
}

// syncErrorResponse は同期エラーのAPIレスポンス。
type syncErrorResponse struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Action   string `json:"action,omitempty"`
}

// syncResultResponse は1プラットフォームの同期結果のAPIレスポンス。
type syncResultResponse struct {
	Platform string             `json:"platform"`
	Success  bool               `json:"success"`
	Message  string             `json:"message"`
	Error    *syncErrorResponse `json:"error,omitempty"`
}

// SyncNow は1プラットフォームの手動同期を実行する。
// POST /api/connections/{platform}/sync
// 同期試行が完了した場合は失敗結果でも200を返す。
// 同一接続の同期が既に実行中の場合は409を返す。
func (h *SyncHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	platform, ok := platformFromURL(w, r)
	if !ok {
		return
	}

	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	profile, err := h.loadProfile(w, r.Context(), userID)
	if err != nil {
		return
	}

	conn, err := h.connections.ActiveConnection(r.Context(), userID, platform)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.orchestrator.SyncOne(r.Context(), profile, conn)
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			middleware.WriteErrorResponse(w, http.StatusConflict, model.NewSyncInProgressError(platform))
			return
		}
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSyncResultResponse(result))
}

// SyncAll はユーザーの全有効接続を同期する。
// POST /api/sync
// 結果はプラットフォームの固定順序で返す。
func (h *SyncHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	profile, err := h.loadProfile(w, r.Context(), userID)
	if err != nil {
		return
	}

	conns, err := h.connections.ActiveConnections(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := h.orchestrator.SyncAll(r.Context(), profile, conns)

	resp := make([]syncResultResponse, 0, len(results))
	for _, p := range model.KnownPlatforms {
		if result, ok := results[p]; ok {
			resp = append(resp, toSyncResultResponse(result))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"results": resp,
	})
}

// syncLogEntry は同期履歴1件のAPIレスポンス。
type syncLogEntry struct {
	Platform   string    `json:"platform"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	defaultSyncLogLimit = 20
	maxSyncLogLimit     = 100
)

// ListSyncLogs はユーザーの直近の同期履歴を新しい順に返す。
// GET /api/sync/logs?limit=N
func (h *SyncHandler) ListSyncLogs(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	limit := defaultSyncLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_LIMIT",
				Message:  "limitは1以上の整数で指定してください。",
				Category: "validation",
				Action:   "limitパラメータを修正してください。",
			})
			return
		}
		limit = parsed
	}
	if limit > maxSyncLogLimit {
		limit = maxSyncLogLimit
	}

	logs, err := h.syncLogs.ListRecentByUser(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	entries := make([]syncLogEntry, len(logs))
	for i, log := range logs {
		entries[i] = syncLogEntry{
			Platform:   string(log.Platform),
			Success:    log.Success,
			Message:    log.Message,
			DurationMs: log.DurationMs,
			CreatedAt:  log.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"logs": entries,
	})
}

// loadProfile はユーザーのビジネスプロフィールを取得する。
// 未登録の場合はエラーレスポンスを書き込みエラーを返す。
func (h *SyncHandler) loadProfile(w http.ResponseWriter, ctx context.Context, userID string) (*model.BusinessProfile, error) {
	profile, err := h.profiles.FindByUserID(ctx, userID)
	if err != nil {
		handleServiceError(w, err)
		return nil, err
	}
	if profile == nil {
		apiErr := model.NewBusinessNotFoundError()
		middleware.WriteErrorResponse(w, http.StatusNotFound, apiErr)
		return nil, apiErr
	}
	return profile, nil
}

// toSyncResultResponse はmodel.SyncResultからAPIレスポンスに変換する。
// SyncErrorのDetail（プラットフォームの生エラーペイロード）は含めない。
func toSyncResultResponse(result model.SyncResult) syncResultResponse {
	resp := syncResultResponse{
		Platform: string(result.Platform),
		Success:  result.Success,
		Message:  result.Message,
	}
	if result.Err != nil {
		resp.Error = &syncErrorResponse{
			Category: string(result.Err.Category),
			Code:     result.Err.Code,
			Action:   result.Err.Action,
		}
	}
	return resp
}
