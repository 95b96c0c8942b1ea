package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/profileman/internal/model"
)

// PostgresSyncLogRepoはSyncLogRepositoryインターフェースを満たすことを検証
func TestPostgresSyncLogRepo_ImplementsInterface(t *testing.T) {
	var _ SyncLogRepository = (*PostgresSyncLogRepo)(nil)
}

// NewPostgresSyncLogRepoが正しく初期化されることを検証
func TestNewPostgresSyncLogRepo_Initializes(t *testing.T) {
	repo := NewPostgresSyncLogRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// SyncLogモデルのフィールドが正しく構築されることを検証
func TestPostgresSyncLogRepo_LogModel_Fields(t *testing.T) {
	now := time.Now()
	log := &model.SyncLog{
		ID:         "log-id-1",
		UserID:     "user-1",
		Platform:   model.PlatformGoogle,
		Success:    true,
		Message:    "プロフィールを更新しました。",
		DurationMs: 230,
		CreatedAt:  now,
	}

	if log.ID != "log-id-1" {
		t.Errorf("log.ID = %q, want %q", log.ID, "log-id-1")
	}
	if log.Platform != model.PlatformGoogle {
		t.Errorf("log.Platform = %q, want %q", log.Platform, model.PlatformGoogle)
	}
	if !log.Success {
		t.Error("log.Success should be true")
	}
	if log.DurationMs != 230 {
		t.Errorf("log.DurationMs = %d, want 230", log.DurationMs)
	}
}
