package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/profileman/internal/auth"
	"github.com/hitoshi/profileman/internal/config"
	"github.com/hitoshi/profileman/internal/credential"
	"github.com/hitoshi/profileman/internal/database"
	"github.com/hitoshi/profileman/internal/handler"
	"github.com/hitoshi/profileman/internal/logger"
	"github.com/hitoshi/profileman/internal/mapper"
	"github.com/hitoshi/profileman/internal/metrics"
	"github.com/hitoshi/profileman/internal/middleware"
	"github.com/hitoshi/profileman/internal/model"
	"github.com/hitoshi/profileman/internal/platform"
	"github.com/hitoshi/profileman/internal/registry"
	"github.com/hitoshi/profileman/internal/repository"
	"github.com/hitoshi/profileman/internal/security"
	"github.com/hitoshi/profileman/internal/syncer"
	"github.com/hitoshi/profileman/internal/worker/cleanup"
	"github.com/hitoshi/profileman/internal/worker/syncjob"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// syncComponents は同期パイプラインの共有コンポーネント一式。
// serveモードとworkerモードの両方で同じワイヤリングを使用する。
type syncComponents struct {
	connRepo     *repository.PostgresConnectionRepo
	businessRepo *repository.PostgresBusinessRepo
	syncLogRepo  *repository.PostgresSyncLogRepo
	orchestrator *syncer.Orchestrator
	collector    *metrics.Collector
	promRegistry *prometheus.Registry
}

// buildSyncComponents はリポジトリから同期オーケストレーターまでをワイヤリングする。
func buildSyncComponents(cfg *config.Config, db *sql.DB) *syncComponents {
	// 1. リポジトリの初期化
	connRepo := repository.NewPostgresConnectionRepo(db)
	businessRepo := repository.NewPostgresBusinessRepo(db)
	syncLogRepo := repository.NewPostgresSyncLogRepo(db)

	// 2. セキュリティサービスとField Mapperの初期化
	websiteGuard := security.NewWebsiteGuard()
	sanitizer := security.NewDescriptionSanitizer()
	fieldMapper := mapper.New(sanitizer, websiteGuard)

	// 3. メトリクスの初期化
	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	// 4. Credential Storeの初期化
	googleProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	credStore := credential.NewStore(connRepo, cfg.TokenRefreshMargin, slog.Default(), collector)
	// Facebook/InstagramのGraph APIはリフレッシュトークンを発行しないため登録しない
	credStore.RegisterRefresher(model.PlatformGoogle, googleProvider)

	// 5. プラットフォームアダプターの初期化
	// 外向きHTTPはSSRF防止機能付きクライアントで行う。ペイロードに
	// ユーザー入力由来の値を含むため、内部ネットワークへの到達を遮断する。
	safeClient := websiteGuard.NewSafeClient(cfg.SyncTimeout)
	adapterRegistry := platform.NewRegistry(
		platform.NewGoogleAdapter(safeClient, credStore, slog.Default()),
		platform.NewFacebookAdapter(safeClient, credStore, slog.Default()),
		platform.NewInstagramAdapter(safeClient, credStore, slog.Default()),
		platform.NewFirmyAdapter(),
	)

	// 6. オーケストレーターの初期化
	orchestrator := syncer.NewOrchestrator(
		fieldMapper, adapterRegistry, connRepo, syncLogRepo,
		collector, slog.Default(), cfg.SyncMaxConcurrent, cfg.SyncTimeout,
	)

	return &syncComponents{
		connRepo:     connRepo,
		businessRepo: businessRepo,
		syncLogRepo:  syncLogRepo,
		orchestrator: orchestrator,
		collector:    collector,
		promRegistry: promRegistry,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. 同期パイプラインのワイヤリング
	components := buildSyncComponents(cfg, db)

	// 3. OAuth接続サービスの初期化
	googleProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	facebookProvider := auth.NewFacebookOAuthProvider(auth.FacebookOAuthConfig{
		AppID:       cfg.FacebookAppID,
		AppSecret:   cfg.FacebookAppSecret,
		RedirectURL: cfg.FacebookRedirectURL,
	})
	instagramProvider := auth.NewInstagramOAuthProvider(auth.FacebookOAuthConfig{
		AppID:       cfg.FacebookAppID,
		AppSecret:   cfg.FacebookAppSecret,
		RedirectURL: cfg.FacebookRedirectURL,
	})
	connectService := auth.NewConnectService(components.connRepo,
		googleProvider, facebookProvider, instagramProvider)

	// 4. 接続登録簿サービスの初期化
	registryService := registry.NewService(components.connRepo, slog.Default())

	// 5. レート制限の初期化（req/min -> req/sec に変換）
	rateLimiterCfg := middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		SyncNowRate:     rate.Limit(float64(cfg.RateLimitSyncNow) / 60.0),
		SyncNowBurst:    cfg.RateLimitSyncNow,
		CleanupInterval: 5 * time.Minute,
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           components.collector,
		IdentityResolver:  middleware.NewHeaderIdentityResolver(cfg.IdentityHeader),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		ConnectService:  connectService,
		RegistryService: registryService,
		ConnectionConfig: handler.ConnectionHandlerConfig{
			FrontendURL:  cfg.FrontendURL,
			CookieSecure: cfg.CookieSecure,
		},

		Orchestrator: components.orchestrator,
		Profiles:     components.businessRepo,
		Connections:  registryService,
		SyncLogs:     components.syncLogRepo,

		DB: db,
	}

	router := handler.NewRouter(deps)

	// 7. /metricsを含むルートの合成
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(components.promRegistry))
	mux.Handle("/", router)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、同期スケジューラとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. 同期パイプラインのワイヤリング
	components := buildSyncComponents(cfg, db)

	// 3. スケジューラの初期化
	scheduler := syncjob.NewScheduler(
		components.connRepo, components.businessRepo, components.orchestrator,
		slog.Default(), cfg.SyncInterval,
	)

	// 4. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(components.syncLogRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.SyncLogRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sync_interval", cfg.SyncInterval),
		slog.Int("max_concurrent", cfg.SyncMaxConcurrent),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 同期スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.SyncInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
