package syncjob

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
	listDueForSyncFunc func(ctx context.Context, olderThan time.Time) ([]*model.PlatformConnection, error)
}

func (m *mockConnectionRepo) FindByUserAndPlatform(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
	return nil, nil
}

func (m *mockConnectionRepo) ListActiveByUserID(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	return nil, nil
}

func (m *mockConnectionRepo) ListDueForSync(ctx context.Context, olderThan time.Time) ([]*model.PlatformConnection, error) {
	if m.listDueForSyncFunc != nil {
		return m.listDueForSyncFunc(ctx, olderThan)
	}
	return nil, nil
}

func (m *mockConnectionRepo) Upsert(ctx context.Context, conn *model.PlatformConnection) error {
	return nil
}

func (m *mockConnectionRepo) Deactivate(ctx context.Context, userID string, platform model.Platform) error {
	return nil
}

func (m *mockConnectionRepo) UpdateToken(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	return nil
}

func (m *mockConnectionRepo) UpdateSyncState(ctx context.Context, id string, syncedAt time.Time, status model.SyncStatus, errMsg string) error {
	return nil
}

type mockBusinessRepo struct {
	findByUserIDFunc func(ctx context.Context, userID string) (*model.BusinessProfile, error)
}

func (m *mockBusinessRepo) FindByUserID(ctx context.Context, userID string) (*model.BusinessProfile, error) {
	if m.findByUserIDFunc != nil {
		return m.findByUserIDFunc(ctx, userID)
	}
	return &model.BusinessProfile{UserID: userID, Name: "テスト店舗"}, nil
}

type mockExecutor struct {
	syncAllFunc func(ctx context.Context, profile *model.BusinessProfile, conns []*model.PlatformConnection) map[model.Platform]model.SyncResult
	calls       []syncAllCall
}

type syncAllCall struct {
	userID string
	conns  []*model.PlatformConnection
}

func (m *mockExecutor) SyncAll(ctx context.Context, profile *model.BusinessProfile, conns []*model.PlatformConnection) map[model.Platform]model.SyncResult {
	m.calls = append(m.calls, syncAllCall{userID: profile.UserID, conns: conns})
	if m.syncAllFunc != nil {
		return m.syncAllFunc(ctx, profile, conns)
	}
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func dueConn(id, userID string, platform model.Platform) *model.PlatformConnection {
	return &model.PlatformConnection{
		ID:       id,
		UserID:   userID,
		Platform: platform,
		IsActive: true,
	}
}

// 同期対象の接続がユーザー単位にまとめて同期されること
func TestRunOnce_GroupsConnectionsByUser(t *testing.T) {
	connRepo := &mockConnectionRepo{
		listDueForSyncFunc: func(ctx context.Context, olderThan time.Time) ([]*model.PlatformConnection, error) {
			return []*model.PlatformConnection{
				dueConn("c1", "user-1", model.PlatformGoogle),
				dueConn("c2", "user-2", model.PlatformGoogle),
				dueConn("c3", "user-1", model.PlatformFacebook),
			}, nil
		},
	}
	executor := &mockExecutor{}
	s := NewScheduler(connRepo, &mockBusinessRepo{}, executor, newTestLogger(), 15*time.Minute)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(executor.calls) != 2 {
		t.Fatalf("SyncAll call count = %d, want 2 (one per user)", len(executor.calls))
	}
	// 最初に出現したユーザーの順で処理されること
	if executor.calls[0].userID != "user-1" || executor.calls[1].userID != "user-2" {
		t.Errorf("call order = [%s, %s], want [user-1, user-2]",
			executor.calls[0].userID, executor.calls[1].userID)
	}
	if len(executor.calls[0].conns) != 2 {
		t.Errorf("user-1 conns = %d, want 2", len(executor.calls[0].conns))
	}
	if len(executor.calls[1].conns) != 1 {
		t.Errorf("user-2 conns = %d, want 1", len(executor.calls[1].conns))
	}
}

// ListDueForSyncの基準時刻が同期間隔ぶん過去になっていること
func TestRunOnce_OlderThanCutoff(t *testing.T) {
	var gotOlderThan time.Time
	connRepo := &mockConnectionRepo{
		listDueForSyncFunc: func(ctx context.Context, olderThan time.Time) ([]*model.PlatformConnection, error) {
			gotOlderThan = olderThan
			return nil, nil
		},
	}
	s := NewScheduler(connRepo, &mockBusinessRepo{}, &mockExecutor{}, newTestLogger(), 30*time.Minute)

	before := time.Now().Add(-30 * time.Minute)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	after := time.Now().Add(-30 * time.Minute)

	if gotOlderThan.Before(before) || gotOlderThan.After(after) {
		t.Errorf("olderThan = %v, want ~%v", gotOlderThan, before)
	}
}

// プロフィール未登録のユーザーはスキップされ、他のユーザーは処理されること
func TestRunOnce_SkipsUsersWithoutProfile(t *testing.T) {
	connRepo := &mockConnectionRepo{
		listDueForSyncFunc: func(ctx context.Context, olderThan time.Time) ([]*model.PlatformConnection, error) {
			return []*model.PlatformConnection{
				dueConn("c1", "user-no-profile", model.PlatformGoogle),
				dueConn("c2", "user-2", model.PlatformGoogle),
			}, nil
		},
	}
	businessRepo := &mockBusinessRepo{
		findByUserIDFunc: func(ctx context.Context, userID string) (*model.BusinessProfile, error) {
			if userID == "user-no-profile" {
				return nil, nil
			}
			return &model.BusinessProfile{UserID: userID}, nil
		},
	}
	executor := &mockExecutor{}
	s := NewScheduler(connRepo, businessRepo, executor, newTestLogger(), 15*time.Minute)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(executor.calls) != 1 {
		t.Fatalf("SyncAll call count = %d, want 1", len(executor.calls))
	}
	if executor.calls[0].userID != "user-2" {
		t.Errorf("synced user = %q, want user-2", executor.calls[0].userID)
	}
}

// プロフィール取得の失敗はそのユーザーのみスキップして継続すること
func TestRunOnce_ProfileErrorContinues(t *testing.T) {
	connRepo := &mockConnectionRepo{
		listDueForSyncFunc: func(ctx context.Context, olderThan time.Time) ([]*model.PlatformConnection, error) {
			return []*model.PlatformConnection{
				dueConn("c1", "user-1", model.PlatformGoogle),
				dueConn("c2", "user-2", model.PlatformGoogle),
			}, nil
		},
	}
	businessRepo := &mockBusinessRepo{
		findByUserIDFunc: func(ctx context.Context, userID string) (*model.BusinessProfile, error) {
			if userID == "user-1" {
				return nil, errors.New("db timeout")
			}
			return &model.BusinessProfile{UserID: userID}, nil
		},
	}
	executor := &mockExecutor{}
	s := NewScheduler(connRepo, businessRepo, executor, newTestLogger(), 15*time.Minute)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(executor.calls) != 1 || executor.calls[0].userID != "user-2" {
		t.Errorf("only user-2 should be synced, calls = %+v", executor.calls)
	}
}

func TestRunOnce_ListError(t *testing.T) {
	connRepo := &mockConnectionRepo{
		listDueForSyncFunc: func(ctx context.Context, olderThan time.Time) ([]*model.PlatformConnection, error) {
			return nil, errors.New("db down")
		},
	}
	s := NewScheduler(connRepo, &mockBusinessRepo{}, &mockExecutor{}, newTestLogger(), 15*time.Minute)

	if err := s.RunOnce(context.Background()); err == nil {
		t.Error("expected error when ListDueForSync fails, got nil")
	}
}

func TestNewScheduler_DefaultInterval(t *testing.T) {
	s := NewScheduler(&mockConnectionRepo{}, &mockBusinessRepo{}, &mockExecutor{}, newTestLogger(), 0)
	if s.syncInterval != 15*time.Minute {
		t.Errorf("syncInterval = %v, want default 15m", s.syncInterval)
	}
}
