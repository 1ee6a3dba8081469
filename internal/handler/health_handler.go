package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout は依存先ごとのヘルスチェックのタイムアウト。
const healthCheckTimeout = 3 * time.Second

// Pinger は疎通確認ができる依存先。*sql.DBとcache.Cacheが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingerFunc は関数をPingerとして扱うアダプタ。
type PingerFunc func(ctx context.Context) error

// PingContext はf(ctx)を呼ぶ。
func (f PingerFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler はHealthHandlerを生成する。checksのキーはレスポンスに表示する依存先名。
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health は全依存先の疎通を確認する。1つでも失敗した場合は503を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}

	for name, p := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := p.PingContext(ctx)
		cancel()

		if err != nil {
			slog.Warn("health check failed", slog.String("dependency", name), slog.String("error", err.Error()))
			resp.Status = "unavailable"
			resp.Checks[name] = "error"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
