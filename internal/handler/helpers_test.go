package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/feedpress/internal/model"
	"github.com/hitoshi/feedpress/internal/post"
	"github.com/hitoshi/feedpress/internal/worker/scan"
)

// --- モック定義 ---

// mockPublicPostService はPublicPostServiceInterfaceのモック実装。
type mockPublicPostService struct {
	listPageFn  func(ctx context.Context, page int) (post.Page, error)
	getBySlugFn func(ctx context.Context, slug string) (*model.Post, error)
}

func (m *mockPublicPostService) ListPage(ctx context.Context, page int) (post.Page, error) {
	if m.listPageFn != nil {
		return m.listPageFn(ctx, page)
	}
	return post.Page{Page: 1}, nil
}

func (m *mockPublicPostService) GetBySlug(ctx context.Context, slug string) (*model.Post, error) {
	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}
	return nil, model.NewPostNotFoundError(slug)
}

// mockModerationService はModerationServiceInterfaceのモック実装。
type mockModerationService struct {
	getFn          func(ctx context.Context, id string) (*model.Post, error)
	listByStatusFn func(ctx context.Context, status model.PostStatus, limit int) ([]*model.Post, error)
	listAllFn      func(ctx context.Context, limit int) ([]*model.Post, error)
	approveFn      func(ctx context.Context, id string) (*model.Post, error)
	rejectFn       func(ctx context.Context, id, reason string) (*model.Post, error)
	publishFn      func(ctx context.Context, id string) (*model.Post, error)
	bulkApproveFn  func(ctx context.Context, ids []string) (*model.BulkResult, error)
	bulkRejectFn   func(ctx context.Context, ids []string, reason string) (*model.BulkResult, error)
	deleteFn       func(ctx context.Context, id string) error
}

func (m *mockModerationService) Get(ctx context.Context, id string) (*model.Post, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewPostNotFoundError(id)
}

func (m *mockModerationService) ListByStatus(ctx context.Context, status model.PostStatus, limit int) ([]*model.Post, error) {
	if m.listByStatusFn != nil {
		return m.listByStatusFn(ctx, status, limit)
	}
	return nil, nil
}

func (m *mockModerationService) ListAll(ctx context.Context, limit int) ([]*model.Post, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockModerationService) Approve(ctx context.Context, id string) (*model.Post, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, id)
	}
	return nil, model.NewPostNotFoundError(id)
}

func (m *mockModerationService) Reject(ctx context.Context, id, reason string) (*model.Post, error) {
	if m.rejectFn != nil {
		return m.rejectFn(ctx, id, reason)
	}
	return nil, model.NewPostNotFoundError(id)
}

func (m *mockModerationService) Publish(ctx context.Context, id string) (*model.Post, error) {
	if m.publishFn != nil {
		return m.publishFn(ctx, id)
	}
	return nil, model.NewPostNotFoundError(id)
}

func (m *mockModerationService) BulkApprove(ctx context.Context, ids []string) (*model.BulkResult, error) {
	if m.bulkApproveFn != nil {
		return m.bulkApproveFn(ctx, ids)
	}
	return &model.BulkResult{}, nil
}

func (m *mockModerationService) BulkReject(ctx context.Context, ids []string, reason string) (*model.BulkResult, error) {
	if m.bulkRejectFn != nil {
		return m.bulkRejectFn(ctx, ids, reason)
	}
	return &model.BulkResult{}, nil
}

func (m *mockModerationService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockImporter はImporterInterfaceのモック実装。
type mockImporter struct {
	importFn func(ctx context.Context, feedURL string) (*post.IngestResult, error)
}

func (m *mockImporter) Import(ctx context.Context, feedURL string) (*post.IngestResult, error) {
	if m.importFn != nil {
		return m.importFn(ctx, feedURL)
	}
	return &post.IngestResult{FeedURL: feedURL}, nil
}

// mockScanner はScannerControllerInterfaceのモック実装。
type mockScanner struct {
	running   bool
	starts    int
	stops     int
	runOnceFn func(ctx context.Context) scan.CycleResult
}

func (m *mockScanner) Start() {
	m.starts++
	m.running = true
}

func (m *mockScanner) Stop() {
	m.stops++
	m.running = false
}

func (m *mockScanner) RunOnce(ctx context.Context) scan.CycleResult {
	if m.runOnceFn != nil {
		return m.runOnceFn(ctx)
	}
	return scan.CycleResult{}
}

func (m *mockScanner) Status() scan.Status {
	return scan.Status{Running: m.running, Interval: 10 * time.Minute}
}

// mockSettingsService はSettingsServiceInterfaceのモック実装。
type mockSettingsService struct {
	current  model.Settings
	updateFn func(patch []byte) (model.Settings, error)
}

func (m *mockSettingsService) Get() model.Settings {
	return m.current
}

func (m *mockSettingsService) Update(patch []byte) (model.Settings, error) {
	if m.updateFn != nil {
		return m.updateFn(patch)
	}
	return m.current, nil
}

// --- ヘルパー ---

// withChiURLParam はリクエストにchiのURLパラメータを設定するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// assertErrorResponse はステータスコードとエラーコードを検証するヘルパー。
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d (body=%s)", w.Code, wantStatus, w.Body.String())
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != wantCode {
		t.Errorf("code = %q, want %q", body["code"], wantCode)
	}
}

func testPost(id string, status model.PostStatus) *model.Post {
	date := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return &model.Post{
		ID:        id,
		Title:     "記事 " + id,
		Content:   "<p>本文</p>",
		Excerpt:   "本文",
		Date:      date,
		Author:    "Hiro",
		Slug:      id,
		Source:    "https://example.com/feed.xml",
		Status:    status,
		CreatedAt: date,
		UpdatedAt: date,
	}
}
