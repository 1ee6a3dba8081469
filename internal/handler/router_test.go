package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/feedpress/internal/metrics"
	"github.com/hitoshi/feedpress/internal/middleware"
	"github.com/hitoshi/feedpress/internal/model"
	"github.com/hitoshi/feedpress/internal/post"
)

const testAdminToken = "s3cret"

// newTestRouter は全依存をモックで構成したルーターを返す。
func newTestRouter(t *testing.T, mutate func(d *RouterDeps)) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(1000, 2))
	t.Cleanup(rl.Stop)

	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg)

	deps := &RouterDeps{
		CORSAllowedOrigin: "https://admin.example.com",
		AdminToken:        testAdminToken,
		RateLimiter:       rl,
		PostService:       &mockPublicPostService{},
		ModerationService: &mockModerationService{},
		Importer:          &mockImporter{},
		Scanner:           &mockScanner{},
		SettingsService:   &mockSettingsService{current: model.DefaultSettings()},
		HealthChecks:      map[string]Pinger{"database": PingerFunc(func(ctx context.Context) error { return nil })},
		MetricsHandler:    metrics.Handler(reg),
	}
	if mutate != nil {
		mutate(deps)
	}
	return NewRouter(deps)
}

func doRequest(h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicRoutes(t *testing.T) {
	r := newTestRouter(t, nil)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/posts", http.StatusOK},
		{http.MethodGet, "/api/posts?page=2", http.StatusOK},
		{http.MethodGet, "/api/posts/unknown", http.StatusNotFound},
		{http.MethodGet, "/api/settings", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := doRequest(r, tt.method, tt.path, "", "")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRouter_AdminRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t, nil)

	routes := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/admin/posts", ""},
		{http.MethodGet, "/api/admin/posts/p1", ""},
		{http.MethodDelete, "/api/admin/posts/p1", ""},
		{http.MethodPost, "/api/admin/posts/p1/approve", ""},
		{http.MethodPost, "/api/admin/posts/p1/reject", `{"reason":"x"}`},
		{http.MethodPost, "/api/admin/posts/p1/publish", ""},
		{http.MethodPost, "/api/admin/posts/bulk-approve", `{"postIds":["a"]}`},
		{http.MethodPost, "/api/admin/posts/bulk-reject", `{"postIds":["a"],"reason":"x"}`},
		{http.MethodPost, "/api/admin/import", `{"feedUrl":"https://example.com/feed"}`},
		{http.MethodGet, "/api/admin/scanner", ""},
		{http.MethodPost, "/api/admin/scanner/start", ""},
		{http.MethodPost, "/api/admin/scanner/stop", ""},
		{http.MethodPost, "/api/admin/scanner/run", ""},
		{http.MethodPost, "/api/admin/settings", `{"siteName":"x"}`},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := doRequest(r, rt.method, rt.path, rt.body, "")
			assertErrorResponse(t, w, http.StatusUnauthorized, "UNAUTHORIZED")

			w = doRequest(r, rt.method, rt.path, rt.body, "wrong")
			if w.Code != http.StatusUnauthorized {
				t.Errorf("wrong token: status = %d, want %d", w.Code, http.StatusUnauthorized)
			}

			w = doRequest(r, rt.method, rt.path, rt.body, testAdminToken)
			if w.Code == http.StatusUnauthorized || w.Code == http.StatusMethodNotAllowed {
				t.Errorf("valid token: status = %d", w.Code)
			}
		})
	}
}

func TestRouter_EncodedSlugReachesHandler(t *testing.T) {
	var got string
	r := newTestRouter(t, func(d *RouterDeps) {
		d.PostService = &mockPublicPostService{
			getBySlugFn: func(ctx context.Context, slug string) (*model.Post, error) {
				got = slug
				return testPost("p1", model.PostStatusApproved), nil
			},
		}
	})

	w := doRequest(r, http.MethodGet, "/api/posts/https:%2F%2Fexample.com%2F2024%2Fhello", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got != "https://example.com/2024/hello" {
		t.Errorf("slug = %q, want decoded guid", got)
	}
}

func TestRouter_SlugWithLiteralPercent(t *testing.T) {
	var got string
	r := newTestRouter(t, func(d *RouterDeps) {
		d.PostService = &mockPublicPostService{
			getBySlugFn: func(ctx context.Context, slug string) (*model.Post, error) {
				got = slug
				return testPost("p1", model.PostStatusApproved), nil
			},
		}
	})

	w := doRequest(r, http.MethodGet, "/api/posts/100%25-growth", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}
	if got != "100%-growth" {
		t.Errorf("slug = %q, want 100%%-growth", got)
	}
}

func TestRouter_ImportRateLimit(t *testing.T) {
	calls := 0
	r := newTestRouter(t, func(d *RouterDeps) {
		d.Importer = &mockImporter{
			importFn: func(ctx context.Context, feedURL string) (*post.IngestResult, error) {
				calls++
				return &post.IngestResult{FeedURL: feedURL}, nil
			},
		}
	})

	body := `{"feedUrl":"https://example.com/feed"}`
	for i := 0; i < 2; i++ {
		if w := doRequest(r, http.MethodPost, "/api/admin/import", body, testAdminToken); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := doRequest(r, http.MethodPost, "/api/admin/import", body, testAdminToken)
	assertErrorResponse(t, w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED")
	if calls != 2 {
		t.Errorf("importer calls = %d, want 2", calls)
	}

	// 取り込み以外の管理APIは取り込み用の制限を受けない
	if w := doRequest(r, http.MethodGet, "/api/admin/scanner", "", testAdminToken); w.Code != http.StatusOK {
		t.Errorf("scanner status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_NoAdminTokenDisablesAuth(t *testing.T) {
	r := newTestRouter(t, func(d *RouterDeps) { d.AdminToken = "" })

	w := doRequest(r, http.MethodGet, "/api/admin/scanner", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_CommonHeaders(t *testing.T) {
	r := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	r := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/admin/posts/p1/approve", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestRouter_ListPostsContract(t *testing.T) {
	r := newTestRouter(t, func(d *RouterDeps) {
		d.PostService = &mockPublicPostService{
			listPageFn: func(ctx context.Context, page int) (post.Page, error) {
				return post.Page{Posts: []*model.Post{testPost("a", model.PostStatusApproved)}, Page: 1, PageSize: 7, TotalPages: 1, TotalCount: 1}, nil
			},
		}
	})

	w := doRequest(r, http.MethodGet, "/api/posts", "", "")

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, key := range []string{"posts", "page", "pageSize", "totalPages", "totalCount"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("response missing %q", key)
		}
	}
}
