package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/profileman/internal/middleware"
)

// Pinger はヘルスチェックで使用するDB疎通確認のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           middleware.HTTPStatusRecorder
	IdentityResolver  middleware.IdentityResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 接続管理
	ConnectService   ConnectServiceInterface
	RegistryService  RegistryServiceInterface
	ConnectionConfig ConnectionHandlerConfig

	// 同期
	Orchestrator SyncOrchestratorInterface
	Profiles     ProfileFinder
	Connections  ConnectionSource
	SyncLogs     SyncLogSource

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CORS → Identity → RateLimit(General)
//
// Loggingを最外周に置くことで、panicを起こしたリクエストにもログと
// ステータスコードのメトリクスが記録される。
// ヘルスチェック（/health）は認証の外に配置する。
// OAuthフロー（/auth/*）はプラットフォームからのリダイレクトを受けるため、
// レート制限の外・アイデンティティ解決の内に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	connHandler := NewConnectionHandler(deps.ConnectService, deps.RegistryService, deps.ConnectionConfig)
	syncHandler := NewSyncHandler(deps.Orchestrator, deps.Profiles, deps.Connections, deps.SyncLogs)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.DB))

	// --- 認証が必要なルート ---

	// OAuthフロー: Identityのみ（レート制限なし）
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.IdentityResolver))

		r.Route("/auth/{platform}", func(r chi.Router) {
			r.Get("/connect", connHandler.Connect)
			r.Get("/callback", connHandler.Callback)
		})
	})

	// APIルート: Identity → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.IdentityResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// プラットフォーム一覧と接続状態
		r.Get("/api/platforms", connHandler.ListPlatforms)

		// 全プラットフォーム同期
		r.Post("/api/sync", syncHandler.SyncAll)

		// 同期履歴
		r.Get("/api/sync/logs", syncHandler.ListSyncLogs)

		r.Route("/api/connections/{platform}", func(r chi.Router) {
			// 手動同期（専用レート制限を追加）
			r.With(deps.RateLimiter.SyncNowMiddleware()).Post("/sync", syncHandler.SyncNow)

			// 切断
			r.Delete("/", connHandler.Disconnect)
		})
	})

	return r
}

// NewHealthHandler はヘルスチェックのHTTPハンドラーを返す。
// DBの疎通確認に失敗した場合は503を返す。
func NewHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "unhealthy",
				})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	}
}
