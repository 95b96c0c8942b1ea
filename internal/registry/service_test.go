package registry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/profileman/internal/model"
)

type mockConnectionRepo struct {
	findByUserAndPlatformFunc func(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error)
	listActiveByUserIDFunc    func(ctx context.Context, userID string) ([]*model.PlatformConnection, error)
	listDueForSyncFunc        func(ctx context.Context, olderThan time.Time) ([]*model.PlatformConnection, error)
	upsertFunc                func(ctx context.Context, conn *model.PlatformConnection) error
	deactivateFunc            func(ctx context.Context, userID string, platform model.Platform) error
	updateTokenFunc           func(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error
	updateSyncStateFunc       func(ctx context.Context, id string, syncedAt time.Time, status model.SyncStatus, errMsg string) error
}

func (m *mockConnectionRepo) FindByUserAndPlatform(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
	if m.findByUserAndPlatformFunc != nil {
		return m.findByUserAndPlatformFunc(ctx, userID, platform)
	}
	return nil, nil
}

func (m *mockConnectionRepo) ListActiveByUserID(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	if m.listActiveByUserIDFunc != nil {
		return m.listActiveByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockConnectionRepo) ListDueForSync(ctx context.Context, olderThan time.Time) ([]*model.PlatformConnection, error) {
	if m.listDueForSyncFunc != nil {
		return m.listDueForSyncFunc(ctx, olderThan)
	}
	return nil, nil
}

func (m *mockConnectionRepo) Upsert(ctx context.Context, conn *model.PlatformConnection) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, conn)
	}
	return nil
}

func (m *mockConnectionRepo) Deactivate(ctx context.Context, userID string, platform model.Platform) error {
	if m.deactivateFunc != nil {
		return m.deactivateFunc(ctx, userID, platform)
	}
	return nil
}

func (m *mockConnectionRepo) UpdateToken(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	if m.updateTokenFunc != nil {
		return m.updateTokenFunc(ctx, id, accessToken, refreshToken, expiresAt)
	}
	return nil
}

func (m *mockConnectionRepo) UpdateSyncState(ctx context.Context, id string, syncedAt time.Time, status model.SyncStatus, errMsg string) error {
	if m.updateSyncStateFunc != nil {
		return m.updateSyncStateFunc(ctx, id, syncedAt, status, errMsg)
	}
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// 未接続のプラットフォームも固定順序で一覧に含まれること
func TestListPlatformStatuses_IncludesUnconnected(t *testing.T) {
	syncedAt := time.Now().Add(-1 * time.Hour)
	repo := &mockConnectionRepo{
		listActiveByUserIDFunc: func(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
			return []*model.PlatformConnection{
				{
					ID:           "conn-1",
					UserID:       userID,
					Platform:     model.PlatformGoogle,
					IsActive:     true,
					SyncStatus:   model.SyncStatusOK,
					LastSyncedAt: &syncedAt,
				},
			}, nil
		},
	}
	svc := NewService(repo, newTestLogger())

	statuses, err := svc.ListPlatformStatuses(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(statuses) != len(model.KnownPlatforms) {
		t.Fatalf("expected %d statuses, got %d", len(model.KnownPlatforms), len(statuses))
	}
	for i, p := range model.KnownPlatforms {
		if statuses[i].Platform != p {
			t.Errorf("statuses[%d].Platform = %q, want %q", i, statuses[i].Platform, p)
		}
		if statuses[i].DisplayName == "" {
			t.Errorf("statuses[%d].DisplayName should not be empty", i)
		}
	}

	google := statuses[0]
	if !google.Connected {
		t.Error("google should be connected")
	}
	if google.SyncStatus != model.SyncStatusOK {
		t.Errorf("google.SyncStatus = %q, want ok", google.SyncStatus)
	}
	if google.LastSyncedAt == nil {
		t.Error("google.LastSyncedAt should be set")
	}

	for _, s := range statuses[1:] {
		if s.Connected {
			t.Errorf("%s should not be connected", s.Platform)
		}
	}
}

func TestListPlatformStatuses_RepoError(t *testing.T) {
	repo := &mockConnectionRepo{
		listActiveByUserIDFunc: func(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
			return nil, errors.New("db down")
		},
	}
	svc := NewService(repo, newTestLogger())

	if _, err := svc.ListPlatformStatuses(context.Background(), "user-1"); err == nil {
		t.Error("expected error when repository fails, got nil")
	}
}

func TestActiveConnection_NotFound(t *testing.T) {
	svc := NewService(&mockConnectionRepo{}, newTestLogger())

	_, err := svc.ActiveConnection(context.Background(), "user-1", model.PlatformGoogle)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeConnectionNotFound {
		t.Errorf("Code = %q, want CONNECTION_NOT_FOUND", apiErr.Code)
	}
}

// 無効化済みの接続は未接続として扱われること
func TestActiveConnection_InactiveTreatedAsNotFound(t *testing.T) {
	repo := &mockConnectionRepo{
		findByUserAndPlatformFunc: func(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
			return &model.PlatformConnection{ID: "conn-1", Platform: platform, IsActive: false}, nil
		},
	}
	svc := NewService(repo, newTestLogger())

	_, err := svc.ActiveConnection(context.Background(), "user-1", model.PlatformGoogle)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeConnectionNotFound {
		t.Errorf("expected CONNECTION_NOT_FOUND, got %v", err)
	}
}

func TestActiveConnection_Found(t *testing.T) {
	repo := &mockConnectionRepo{
		findByUserAndPlatformFunc: func(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
			return &model.PlatformConnection{ID: "conn-1", Platform: platform, IsActive: true}, nil
		},
	}
	svc := NewService(repo, newTestLogger())

	conn, err := svc.ActiveConnection(context.Background(), "user-1", model.PlatformGoogle)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if conn.ID != "conn-1" {
		t.Errorf("conn.ID = %q, want conn-1", conn.ID)
	}
}

// 切断はソフトデリート（Deactivate）で行われること
func TestDisconnect_DeactivatesConnection(t *testing.T) {
	deactivated := false
	repo := &mockConnectionRepo{
		findByUserAndPlatformFunc: func(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
			return &model.PlatformConnection{ID: "conn-1", Platform: platform, IsActive: true}, nil
		},
		deactivateFunc: func(ctx context.Context, userID string, platform model.Platform) error {
			deactivated = true
			return nil
		},
	}
	svc := NewService(repo, newTestLogger())

	if err := svc.Disconnect(context.Background(), "user-1", model.PlatformGoogle); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !deactivated {
		t.Error("Deactivate should be called")
	}
}

func TestDisconnect_NotConnected(t *testing.T) {
	svc := NewService(&mockConnectionRepo{}, newTestLogger())

	err := svc.Disconnect(context.Background(), "user-1", model.PlatformFacebook)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeConnectionNotFound {
		t.Errorf("expected CONNECTION_NOT_FOUND, got %v", err)
	}
}
