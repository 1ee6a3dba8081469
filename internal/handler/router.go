package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/feedpress/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	AdminToken        string
	RateLimiter       *middleware.RateLimiter

	// 記事
	PostService       PublicPostServiceInterface
	ModerationService ModerationServiceInterface
	Importer          ImporterInterface

	// スキャナー
	Scanner ScannerControllerInterface

	// サイト設定
	SettingsService SettingsServiceInterface

	// 運用
	HealthChecks   map[string]Pinger
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → SecurityHeaders → CORS
//
// 管理ルート（/api/admin/*）にはさらに AdminAuth → RateLimit(General) を適用し、
// 手動取り込みには取り込み専用のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	postHandler := NewPostHandler(deps.PostService)
	adminHandler := NewAdminPostHandler(deps.ModerationService)
	importHandler := NewImportHandler(deps.Importer)
	scannerHandler := NewScannerHandler(deps.Scanner)
	settingsHandler := NewSettingsHandler(deps.SettingsService)
	healthHandler := NewHealthHandler(deps.HealthChecks)

	// --- 運用 ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 公開ルート ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Get("/api/posts", postHandler.ListPosts)
		r.Get("/api/posts/{slug}", postHandler.GetPost)
		r.Get("/api/settings", settingsHandler.GetSettings)
	})

	// --- 管理ルート ---
	// ミドルウェアスタック: AdminAuth → RateLimit(General)
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.NewAdminAuthMiddleware(deps.AdminToken))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", adminHandler.ListPosts)
			r.Post("/bulk-approve", adminHandler.BulkApprove)
			r.Post("/bulk-reject", adminHandler.BulkReject)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", adminHandler.GetPost)
				r.Delete("/", adminHandler.DeletePost)
				r.Post("/approve", adminHandler.ApprovePost)
				r.Post("/reject", adminHandler.RejectPost)
				r.Post("/publish", adminHandler.PublishPost)
			})
		})

		// POST /api/admin/import - 手動取り込み（取り込み専用レート制限を追加）
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.ImportMiddleware()).Post("/import", importHandler.Import)
		} else {
			r.Post("/import", importHandler.Import)
		}

		r.Route("/scanner", func(r chi.Router) {
			r.Get("/", scannerHandler.GetStatus)
			r.Post("/start", scannerHandler.Start)
			r.Post("/stop", scannerHandler.Stop)
			r.Post("/run", scannerHandler.Run)
		})

		r.Post("/settings", settingsHandler.UpdateSettings)
	})

	return r
}
