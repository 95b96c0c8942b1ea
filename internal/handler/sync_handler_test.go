package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/profileman/internal/middleware"
	"github.com/hitoshi/profileman/internal/model"
	"github.com/hitoshi/profileman/internal/syncer"
)

type mockOrchestrator struct {
	syncOneFunc func(ctx context.Context, profile *model.BusinessProfile, conn *model.PlatformConnection) (model.SyncResult, error)
	syncAllFunc func(ctx context.Context, profile *model.BusinessProfile, conns []*model.PlatformConnection) map[model.Platform]model.SyncResult
}

func (m *mockOrchestrator) SyncOne(ctx context.Context, profile *model.BusinessProfile, conn *model.PlatformConnection) (model.SyncResult, error) {
	if m.syncOneFunc != nil {
		return m.syncOneFunc(ctx, profile, conn)
	}
	return model.SuccessResult(conn.Platform, "更新しました"), nil
}

func (m *mockOrchestrator) SyncAll(ctx context.Context, profile *model.BusinessProfile, conns []*model.PlatformConnection) map[model.Platform]model.SyncResult {
	if m.syncAllFunc != nil {
		return m.syncAllFunc(ctx, profile, conns)
	}
	return nil
}

type mockProfileFinder struct {
	findByUserIDFunc func(ctx context.Context, userID string) (*model.BusinessProfile, error)
}

func (m *mockProfileFinder) FindByUserID(ctx context.Context, userID string) (*model.BusinessProfile, error) {
	if m.findByUserIDFunc != nil {
		return m.findByUserIDFunc(ctx, userID)
	}
	return &model.BusinessProfile{UserID: userID, Name: "テスト店舗"}, nil
}

type mockConnectionSource struct {
	activeConnectionFunc  func(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error)
	activeConnectionsFunc func(ctx context.Context, userID string) ([]*model.PlatformConnection, error)
}

func (m *mockConnectionSource) ActiveConnection(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
	if m.activeConnectionFunc != nil {
		return m.activeConnectionFunc(ctx, userID, platform)
	}
	return &model.PlatformConnection{ID: "conn-1", UserID: userID, Platform: platform, IsActive: true}, nil
}

func (m *mockConnectionSource) ActiveConnections(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	if m.activeConnectionsFunc != nil {
		return m.activeConnectionsFunc(ctx, userID)
	}
	return nil, nil
}

type mockSyncLogSource struct {
	listRecentByUserFunc func(ctx context.Context, userID string, limit int) ([]*model.SyncLog, error)
}

func (m *mockSyncLogSource) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.SyncLog, error) {
	if m.listRecentByUserFunc != nil {
		return m.listRecentByUserFunc(ctx, userID, limit)
	}
	return nil, nil
}

func syncRouter(h *SyncHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/api/sync", h.SyncAll)
	r.Get("/api/sync/logs", h.ListSyncLogs)
	r.Post("/api/connections/{platform}/sync", h.SyncNow)
	return r
}

func newTestSyncHandler(o *mockOrchestrator, p *mockProfileFinder, c *mockConnectionSource) *SyncHandler {
	return newTestSyncHandlerWithLogs(o, p, c, nil)
}

func newTestSyncHandlerWithLogs(o *mockOrchestrator, p *mockProfileFinder, c *mockConnectionSource, l *mockSyncLogSource) *SyncHandler {
	if o == nil {
		o = &mockOrchestrator{}
	}
	if p == nil {
		p = &mockProfileFinder{}
	}
	if c == nil {
		c = &mockConnectionSource{}
	}
	if l == nil {
		l = &mockSyncLogSource{}
	}
	return NewSyncHandler(o, p, c, l)
}

func TestSyncNow_Success(t *testing.T) {
	router := syncRouter(newTestSyncHandler(nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newAuthedRequest(http.MethodPost, "/api/connections/google/sync", "user-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body syncResultResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Platform != "google" || !body.Success {
		t.Errorf("unexpected result: %+v", body)
	}
}

// 同期試行が完了した場合は失敗結果でも200を返すこと
func TestSyncNow_FailedSyncStillReturns200(t *testing.T) {
	o := &mockOrchestrator{
		syncOneFunc: func(ctx context.Context, profile *model.BusinessProfile, conn *model.PlatformConnection) (model.SyncResult, error) {
			return model.FailureResult(conn.Platform,
				model.NewPlatformAPIError(conn.Platform, 500, `{"error": "raw platform payload"}`)), nil
		},
	}
	router := syncRouter(newTestSyncHandler(o, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newAuthedRequest(http.MethodPost, "/api/connections/google/sync", "user-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	raw := rec.Body.String()
	var body syncResultResponse
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Success {
		t.Error("result should report failure")
	}
	if body.Error == nil || body.Error.Category != "platform_api" {
		t.Errorf("unexpected error payload: %+v", body.Error)
	}
	// プラットフォームの生エラーペイロード（Detail）はレスポンスに含めないこと
	if strings.Contains(raw, "raw platform payload") {
		t.Error("raw platform error payload should not be exposed")
	}
}

// 実行中の接続への手動同期は409になること
func TestSyncNow_InProgressConflict(t *testing.T) {
	o := &mockOrchestrator{
		syncOneFunc: func(ctx context.Context, profile *model.BusinessProfile, conn *model.PlatformConnection) (model.SyncResult, error) {
			return model.SyncResult{}, syncer.ErrSyncInProgress
		},
	}
	router := syncRouter(newTestSyncHandler(o, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newAuthedRequest(http.MethodPost, "/api/connections/google/sync", "user-1"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeSyncInProgress {
		t.Errorf("Code = %q, want SYNC_IN_PROGRESS", body.Code)
	}
}

func TestSyncNow_NoProfile(t *testing.T) {
	p := &mockProfileFinder{
		findByUserIDFunc: func(ctx context.Context, userID string) (*model.BusinessProfile, error) {
			return nil, nil
		},
	}
	router := syncRouter(newTestSyncHandler(nil, p, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newAuthedRequest(http.MethodPost, "/api/connections/google/sync", "user-1"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeBusinessNotFound {
		t.Errorf("Code = %q, want BUSINESS_NOT_FOUND", body.Code)
	}
}

func TestSyncNow_NoConnection(t *testing.T) {
	c := &mockConnectionSource{
		activeConnectionFunc: func(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
			return nil, model.NewConnectionNotFoundError(platform)
		},
	}
	router := syncRouter(newTestSyncHandler(nil, nil, c))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newAuthedRequest(http.MethodPost, "/api/connections/google/sync", "user-1"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSyncNow_UnknownPlatform(t *testing.T) {
	router := syncRouter(newTestSyncHandler(nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newAuthedRequest(http.MethodPost, "/api/connections/myspace/sync", "user-1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// 全体同期の結果はプラットフォームの固定順序で返ること
func TestSyncAll_ResultsInFixedOrder(t *testing.T) {
	o := &mockOrchestrator{
		syncAllFunc: func(ctx context.Context, profile *model.BusinessProfile, conns []*model.PlatformConnection) map[model.Platform]model.SyncResult {
			return map[model.Platform]model.SyncResult{
				model.PlatformFirmy:  {Platform: model.PlatformFirmy, Success: false, Message: "未実装"},
				model.PlatformGoogle: model.SuccessResult(model.PlatformGoogle, "更新しました"),
			}
		},
	}
	router := syncRouter(newTestSyncHandler(o, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newAuthedRequest(http.MethodPost, "/api/sync", "user-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Results []syncResultResponse `json:"results"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(body.Results))
	}
	// mapのイテレーション順ではなくKnownPlatformsの順で返ること
	if body.Results[0].Platform != "google" || body.Results[1].Platform != "firmy" {
		t.Errorf("results order = [%s, %s], want [google, firmy]",
			body.Results[0].Platform, body.Results[1].Platform)
	}
}

func TestSyncAll_Unauthenticated(t *testing.T) {
	router := syncRouter(newTestSyncHandler(nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// 同期履歴が新しい順のJSONで返ること
func TestListSyncLogs_Success(t *testing.T) {
	now := time.Now()
	l := &mockSyncLogSource{
		listRecentByUserFunc: func(ctx context.Context, userID string, limit int) ([]*model.SyncLog, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			if limit != 20 {
				t.Errorf("limit = %d, want default 20", limit)
			}
			return []*model.SyncLog{
				{ID: "log-2", UserID: userID, Platform: model.PlatformGoogle, Success: true, Message: "更新しました", DurationMs: 120, CreatedAt: now},
				{ID: "log-1", UserID: userID, Platform: model.PlatformFacebook, Success: false, Message: "失敗しました", DurationMs: 340, CreatedAt: now.Add(-time.Hour)},
			}, nil
		},
	}
	router := syncRouter(newTestSyncHandlerWithLogs(nil, nil, nil, l))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newAuthedRequest(http.MethodGet, "/api/sync/logs", "user-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Logs []syncLogEntry `json:"logs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(body.Logs))
	}
	if body.Logs[0].Platform != "google" || !body.Logs[0].Success {
		t.Errorf("unexpected first entry: %+v", body.Logs[0])
	}
	if body.Logs[1].DurationMs != 340 {
		t.Errorf("DurationMs = %d, want 340", body.Logs[1].DurationMs)
	}
}

// limitパラメータが取得件数に反映され、上限を超えないこと
func TestListSyncLogs_LimitParameter(t *testing.T) {
	var gotLimit int
	l := &mockSyncLogSource{
		listRecentByUserFunc: func(ctx context.Context, userID string, limit int) ([]*model.SyncLog, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	router := syncRouter(newTestSyncHandlerWithLogs(nil, nil, nil, l))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newAuthedRequest(http.MethodGet, "/api/sync/logs?limit=5", "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotLimit != 5 {
		t.Errorf("limit = %d, want 5", gotLimit)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, newAuthedRequest(http.MethodGet, "/api/sync/logs?limit=500", "user-1"))
	if gotLimit != 100 {
		t.Errorf("limit = %d, want capped at 100", gotLimit)
	}
}

func TestListSyncLogs_InvalidLimit(t *testing.T) {
	router := syncRouter(newTestSyncHandlerWithLogs(nil, nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newAuthedRequest(http.MethodGet, "/api/sync/logs?limit=abc", "user-1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListSyncLogs_RepositoryError(t *testing.T) {
	l := &mockSyncLogSource{
		listRecentByUserFunc: func(ctx context.Context, userID string, limit int) ([]*model.SyncLog, error) {
			return nil, errors.New("db down")
		},
	}
	router := syncRouter(newTestSyncHandlerWithLogs(nil, nil, nil, l))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newAuthedRequest(http.MethodGet, "/api/sync/logs", "user-1"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestListSyncLogs_Unauthenticated(t *testing.T) {
	router := syncRouter(newTestSyncHandlerWithLogs(nil, nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sync/logs", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
