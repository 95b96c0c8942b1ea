// Package syncer はビジネスプロフィールの全プラットフォーム同期を統括する。
// プラットフォームごとのマッピング・書き込み・状態永続化を1サイクルとして実行し、
// 1プラットフォームの失敗が他プラットフォームの同期に影響しないことを保証する。
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/profileman/internal/mapper"
	"github.com/hitoshi/profileman/internal/metrics"
	"github.com/hitoshi/profileman/internal/model"
	"github.com/hitoshi/profileman/internal/platform"
)

// ErrSyncInProgress は同一接続の同期が既に実行中の場合に返される。
var ErrSyncInProgress = errors.New("この接続の同期は既に実行中です")

// ProfileMapper はプロフィールをプラットフォーム別ペイロードへ変換するインターフェース。
type ProfileMapper interface {
	MapForPlatform(platform model.Platform, profile *model.BusinessProfile) (*mapper.Payload, error)
}

// SyncStateUpdater は同期完了後の接続状態の永続化インターフェース。
type SyncStateUpdater interface {
	UpdateSyncState(ctx context.Context, id string, syncedAt time.Time, status model.SyncStatus, errMsg string) error
}

// SyncLogWriter は同期試行の監査ログの書き込みインターフェース。
type SyncLogWriter interface {
	Create(ctx context.Context, log *model.SyncLog) error
}

// Orchestrator は複数プラットフォームへの同期を統括する。
// 接続IDごとのin-flightガードにより同一接続の同期を直列化し、
// semaphoreパターンで全体の並列数を制御する。
type Orchestrator struct {
	mapper         ProfileMapper
	registry       *platform.Registry
	connRepo       SyncStateUpdater
	logRepo        SyncLogWriter
	collector      metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
	timeout        time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{} // 実行中の接続ID
}

// NewOrchestrator はOrchestratorを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4、
// timeoutが0以下の場合はデフォルト値10秒を使用する。
func NewOrchestrator(
	profileMapper ProfileMapper,
	registry *platform.Registry,
	connRepo SyncStateUpdater,
	logRepo SyncLogWriter,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
	timeout time.Duration,
) *Orchestrator {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Orchestrator{
		mapper:         profileMapper,
		registry:       registry,
		connRepo:       connRepo,
		logRepo:        logRepo,
		collector:      collector,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		timeout:        timeout,
		inFlight:       make(map[string]struct{}),
	}
}

// SyncOne は1接続の同期を実行する。
// 同一接続の同期が既に実行中の場合はErrSyncInProgressを返す。
// 同期の成否はSyncResultで表現され、完了後に接続の同期状態と監査ログを永続化する。
func (o *Orchestrator) SyncOne(ctx context.Context, profile *model.BusinessProfile, conn *model.PlatformConnection) (model.SyncResult, error) {
	if !o.acquire(conn.ID) {
		return model.SyncResult{}, ErrSyncInProgress
	}
	defer o.release(conn.ID)

	result := o.syncConnection(ctx, profile, conn)
	return result, nil
}

// SyncAll はユーザーの全有効接続を並列に同期し、プラットフォーム別の結果を返す。
// semaphoreパターンで並列数を制御する。
// 既に実行中の接続はスキップされ、実行中であることを示す失敗結果が含まれる。
func (o *Orchestrator) SyncAll(ctx context.Context, profile *model.BusinessProfile, conns []*model.PlatformConnection) map[model.Platform]model.SyncResult {
	results := make(map[model.Platform]model.SyncResult, len(conns))
	var resultsMu sync.Mutex

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, o.maxConcurrency)
	var wg sync.WaitGroup

	for _, conn := range conns {
		if !o.acquire(conn.ID) {
			resultsMu.Lock()
			results[conn.Platform] = model.FailureResult(conn.Platform,
				model.NewInternalSyncError(conn.Platform, "同期が既に実行中です"))
			resultsMu.Unlock()
			continue
		}

		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(c *model.PlatformConnection) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放
			defer o.release(c.ID)

			result := o.syncConnection(ctx, profile, c)

			resultsMu.Lock()
			results[c.Platform] = result
			resultsMu.Unlock()
		}(conn)
	}

	wg.Wait()
	return results
}

// syncConnection は1接続の同期サイクルを実行する。
// マッピング→アダプターPush→状態永続化→監査ログの順に処理し、
// アダプター内のpanicはinternalエラーの失敗結果として捕捉する。
func (o *Orchestrator) syncConnection(ctx context.Context, profile *model.BusinessProfile, conn *model.PlatformConnection) model.SyncResult {
	start := time.Now()

	result := o.push(ctx, profile, conn)

	duration := time.Since(start)
	o.recordMetrics(conn.Platform, result, duration)
	o.persist(ctx, conn, result, duration)

	if result.Success {
		o.logger.Info("プラットフォーム同期が完了しました",
			slog.String("connection_id", conn.ID),
			slog.String("platform", string(conn.Platform)),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
	} else {
		o.logger.Warn("プラットフォーム同期が失敗しました",
			slog.String("connection_id", conn.ID),
			slog.String("platform", string(conn.Platform)),
			slog.String("error", result.Message),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
	}

	return result
}

// push はペイロードの生成とアダプターの呼び出しを行う。
// panicを捕捉して失敗結果に変換する。
func (o *Orchestrator) push(ctx context.Context, profile *model.BusinessProfile, conn *model.PlatformConnection) (result model.SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("同期処理でpanicが発生しました",
				slog.String("connection_id", conn.ID),
				slog.String("platform", string(conn.Platform)),
				slog.Any("panic", r),
			)
			result = model.FailureResult(conn.Platform,
				model.NewInternalSyncError(conn.Platform, "panic during sync"))
		}
	}()

	adapter, ok := o.registry.Lookup(conn.Platform)
	if !ok {
		return model.FailureResult(conn.Platform,
			model.NewConfigurationError(conn.Platform, "adapter"))
	}

	payload, err := o.mapper.MapForPlatform(conn.Platform, profile)
	if err != nil {
		return model.FailureResult(conn.Platform,
			model.NewInternalSyncError(conn.Platform, err.Error()))
	}

	pushCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	return adapter.Push(pushCtx, conn, payload)
}

// persist は同期結果を接続レコードと監査ログへ永続化する。
// 永続化の失敗はログに記録して継続する（同期結果自体は変更しない）。
func (o *Orchestrator) persist(ctx context.Context, conn *model.PlatformConnection, result model.SyncResult, duration time.Duration) {
	status := model.SyncStatusOK
	errMsg := ""
	if !result.Success {
		status = model.SyncStatusError
		errMsg = result.Message
	}

	syncedAt := time.Now()
	if err := o.connRepo.UpdateSyncState(ctx, conn.ID, syncedAt, status, errMsg); err != nil {
		o.logger.Error("同期状態の更新に失敗しました",
			slog.String("connection_id", conn.ID),
			slog.String("error", err.Error()),
		)
	} else {
		conn.LastSyncedAt = &syncedAt
		conn.SyncStatus = status
		conn.LastSyncError = errMsg
	}

	syncLog := &model.SyncLog{
		ID:         uuid.New().String(),
		UserID:     conn.UserID,
		Platform:   conn.Platform,
		Success:    result.Success,
		Message:    result.Message,
		DurationMs: duration.Milliseconds(),
	}
	if err := o.logRepo.Create(ctx, syncLog); err != nil {
		o.logger.Error("同期ログの作成に失敗しました",
			slog.String("connection_id", conn.ID),
			slog.String("error", err.Error()),
		)
	}
}

// recordMetrics は同期結果をメトリクスに記録する。
func (o *Orchestrator) recordMetrics(p model.Platform, result model.SyncResult, duration time.Duration) {
	if o.collector == nil {
		return
	}
	o.collector.RecordSyncLatency(p, duration)
	if result.Success {
		o.collector.RecordSyncSuccess(p)
		return
	}
	category := model.SyncErrorInternal
	if result.Err != nil {
		category = result.Err.Category
	}
	o.collector.RecordSyncFailure(p, category)
}

// acquire は接続IDのin-flightガードを取得する。
// 既に実行中の場合はfalseを返す。
func (o *Orchestrator) acquire(connID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[connID]; busy {
		return false
	}
	o.inFlight[connID] = struct{}{}
	return true
}

// release は接続IDのin-flightガードを解放する。
func (o *Orchestrator) release(connID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, connID)
}
