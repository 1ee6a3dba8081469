package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/feedpress/internal/cache"
	"github.com/hitoshi/feedpress/internal/config"
	"github.com/hitoshi/feedpress/internal/database"
	"github.com/hitoshi/feedpress/internal/feed"
	"github.com/hitoshi/feedpress/internal/handler"
	"github.com/hitoshi/feedpress/internal/logger"
	"github.com/hitoshi/feedpress/internal/metrics"
	"github.com/hitoshi/feedpress/internal/middleware"
	"github.com/hitoshi/feedpress/internal/post"
	"github.com/hitoshi/feedpress/internal/repository"
	"github.com/hitoshi/feedpress/internal/security"
	"github.com/hitoshi/feedpress/internal/settings"
	"github.com/hitoshi/feedpress/internal/worker/cleanup"
	"github.com/hitoshi/feedpress/internal/worker/scan"
)

const (
	// dbPingTimeout は起動時のDB疎通確認のタイムアウト。
	dbPingTimeout = 5 * time.Second
	// shutdownTimeout はグレースフルシャットダウンの待機上限。
	shutdownTimeout = 30 * time.Second
	// cleanupInterval は却下済み記事のクリーンアップ間隔。
	cleanupInterval = 24 * time.Hour
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

	// 3. ログレベルの反映
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to set log level: %w", err)
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
		slog.Int("feeds", len(cfg.FeedURLs())),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg, args[1:])
	default:
		return runServe(ctx, cfg)
	}
}

// components はserveとworkerで共有する依存関係。
type components struct {
	db       *sql.DB
	cache    cache.Cache
	registry *prometheus.Registry
	posts    *post.Service
	ingester *post.Ingester
	scanner  *scan.Scanner
}

// close は保持しているリソースを解放する。
func (c *components) close() {
	if err := c.cache.Close(); err != nil {
		slog.Warn("failed to close cache", slog.String("error", err.Error()))
	}
	if err := c.db.Close(); err != nil {
		slog.Warn("failed to close database", slog.String("error", err.Error()))
	}
}

// buildComponents はDB接続を開き、記事の取り込みとモデレーションに必要な依存関係をワイヤリングする。
func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	log := slog.Default()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	// 2. 一覧キャッシュ（REDIS_ADDR未設定時は無効）
	var listingCache cache.Cache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr)
		if err != nil {
			db.Close()
			return nil, err
		}
		listingCache = rc
		slog.Info("listing cache enabled", slog.String("redis_addr", cfg.RedisAddr), slog.Duration("ttl", cfg.CacheTTL))
	}

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	// 4. ストア
	postRepo := repository.NewPostgresPostRepo(db)
	postService := post.NewService(postRepo, listingCache, recorder, log, post.ServiceConfig{
		CacheTTL:  cfg.CacheTTL,
		PageSize:  cfg.PageSize,
		ListLimit: cfg.PostsListLimit,
	})

	// 5. 取得・取り込み
	guard := security.NewSSRFGuard(cfg.AllowPrivateFeeds)
	if cfg.AllowPrivateFeeds {
		slog.Warn("private network feeds are allowed; SSRF protection is relaxed")
	}
	fetcher := feed.NewFetcher(guard, cfg.FetchTimeout, cfg.FetchMaxSize, log)
	ingester := post.NewIngester(fetcher, post.NewNormalizer(), security.NewContentSanitizer(), postService, recorder, log)

	// 6. 定期スキャナー
	scanner := scan.NewScanner(cfg.Feeds, fetcher, ingester, recorder, log, scan.Options{
		Interval:       cfg.ScanInterval,
		FetchTimeout:   cfg.FetchTimeout,
		BackoffMax:     cfg.BackoffMax,
		MaxConcurrency: cfg.FetchMaxConcurrent,
	})

	return &components{
		db:       db,
		cache:    listingCache,
		registry: registry,
		posts:    postService,
		ingester: ingester,
		scanner:  scanner,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// SCAN_AUTOSTARTが有効な場合は定期スキャナーも同じプロセスで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	// サイト設定
	settingsService, err := settings.NewService(settings.NewFileStore(cfg.SettingsPath), slog.Default())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if cfg.AdminToken == "" {
		slog.Warn("ADMIN_TOKEN is not set; admin API is open to anyone who can reach this server")
	}

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitImport))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		AdminToken:        cfg.AdminToken,
		RateLimiter:       rateLimiter,
		PostService:       c.posts,
		ModerationService: c.posts,
		Importer:          c.ingester,
		Scanner:           c.scanner,
		SettingsService:   settingsService,
		HealthChecks:      healthChecks(c),
		MetricsHandler:    metrics.Handler(c.registry),
	})

	if cfg.ScanAutostart {
		c.scanner.Start()
		startCleanup(ctx, c.db, cfg)
	}

	return serveUntilDone(ctx, newServer(cfg.ServerPort, router), c.scanner)
}

// runWorker はワーカーモードで起動する。
// 定期スキャナーのみを動かし、/health と /metrics だけを公開する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	healthHandler := handler.NewHealthHandler(healthChecks(c))
	r := chi.NewRouter()
	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(c.registry))

	slog.Info("worker starting",
		slog.Duration("scan_interval", cfg.ScanInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
	)
	c.scanner.Start()
	startCleanup(ctx, c.db, cfg)

	return serveUntilDone(ctx, newServer(cfg.ServerPort, r), c.scanner)
}

// startCleanup は却下済み記事のクリーンアップジョブをバックグラウンドで日次実行する。
// REJECTED_RETENTION_DAYSが0以下の場合は起動しない。
func startCleanup(ctx context.Context, db *sql.DB, cfg *config.Config) {
	if cfg.RejectedRetentionDays <= 0 {
		slog.Info("rejected post cleanup is disabled")
		return
	}
	job := cleanup.NewCleanupJob(db, slog.Default(), cfg.RejectedRetentionDays)
	go job.Start(ctx, cleanupInterval)
}

func healthChecks(c *components) map[string]handler.Pinger {
	return map[string]handler.Pinger{
		"database": c.db,
		"cache":    handler.PingerFunc(c.cache.Ping),
	}
}

func newServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// serveUntilDone はHTTPサーバーを起動し、ctxがキャンセルされるまでブロックする。
// 終了時はサーバーを停止し、スキャナーの実行中サイクルの完了を待つ。
func serveUntilDone(ctx context.Context, server *http.Server, scanner *scan.Scanner) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("server listen error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	scanner.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := scanner.Wait(shutdownCtx); err != nil {
		slog.Warn("scan cycle did not finish before shutdown", slog.String("error", err.Error()))
	}

	if serveErr == nil {
		slog.Info("stopped gracefully")
	}
	return serveErr
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしは未適用分をすべて適用し、"down [N]" は直近N件（既定1件）を戻す。
func runMigrate(cfg *config.Config, args []string) error {
	direction, steps, err := parseMigrateArgs(args)
	if err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("direction", direction),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if direction == "down" {
		err = database.RollbackMigrations(cfg.DatabaseURL, steps)
	} else {
		err = database.RunMigrations(cfg.DatabaseURL)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	state, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(state.Version)),
		slog.Bool("dirty", state.Dirty),
		slog.Bool("empty", state.Empty),
	)
	return nil
}

// parseMigrateArgs はmigrateサブコマンドの引数を解釈する。
func parseMigrateArgs(args []string) (direction string, steps int, err error) {
	if len(args) == 0 || args[0] == "up" {
		return "up", 0, nil
	}
	if args[0] != "down" {
		return "", 0, fmt.Errorf("unknown migrate direction: %q", args[0])
	}
	steps = 1
	if len(args) > 1 {
		steps, err = strconv.Atoi(args[1])
		if err != nil || steps <= 0 {
			return "", 0, fmt.Errorf("invalid rollback steps: %q", args[1])
		}
	}
	return "down", steps, nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// URLとして解釈できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
