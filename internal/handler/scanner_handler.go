package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/feedpress/internal/worker/scan"
)

// ScannerControllerInterface は定期スキャナーの操作インターフェース。
type ScannerControllerInterface interface {
	Start()
	Stop()
	RunOnce(ctx context.Context) scan.CycleResult
	Status() scan.Status
}

// ScannerHandler は定期スキャナーの管理HTTPハンドラー。
type ScannerHandler struct {
	scanner ScannerControllerInterface
}

// NewScannerHandler はScannerHandlerを生成する。
func NewScannerHandler(scanner ScannerControllerInterface) *ScannerHandler {
	return &ScannerHandler{scanner: scanner}
}

// GetStatus はスキャナーの状態を返す。
// GET /api/admin/scanner
func (h *ScannerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toScannerStatusResponse(h.scanner.Status()))
}

// Start はスキャナーを起動する。起動済みの場合も200を返す。
// POST /api/admin/scanner/start
func (h *ScannerHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.scanner.Start()
	writeJSON(w, http.StatusOK, toScannerStatusResponse(h.scanner.Status()))
}

// Stop はスキャナーを停止する。実行中のサイクルは完了まで継続する。
// POST /api/admin/scanner/stop
func (h *ScannerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.scanner.Stop()
	writeJSON(w, http.StatusOK, toScannerStatusResponse(h.scanner.Status()))
}

// Run は1回のスキャンサイクルを同期的に実行し、集計を返す。
// POST /api/admin/scanner/run
func (h *ScannerHandler) Run(w http.ResponseWriter, r *http.Request) {
	result := h.scanner.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, toCycleResponse(result))
}
