package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/feedpress/internal/model"
	"github.com/hitoshi/feedpress/internal/post"
)

func TestImportHandler_Import_Success(t *testing.T) {
	imp := &mockImporter{
		importFn: func(ctx context.Context, feedURL string) (*post.IngestResult, error) {
			if feedURL != "https://example.com/feed.xml" {
				t.Errorf("feedURL = %q, want trimmed url", feedURL)
			}
			return &post.IngestResult{
				FeedURL:  feedURL,
				Posts:    []*model.Post{testPost("a", model.PostStatusPending), testPost("b", model.PostStatusApproved)},
				Inserted: 1,
				Updated:  1,
			}, nil
		},
	}
	h := NewImportHandler(imp)

	body := `{"feedUrl":"  https://example.com/feed.xml  "}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/import", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.Import(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp importResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Posts) != 2 || resp.Inserted != 1 || resp.Updated != 1 || resp.Failed != 0 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Posts[1].Status != "approved" {
		t.Errorf("posts[1].status = %q, want approved (status preserved on re-import)", resp.Posts[1].Status)
	}
}

func TestImportHandler_Import_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "empty body", body: "", wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeInvalidRequest},
		{name: "empty url", body: `{"feedUrl":" "}`, wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeInvalidURL},
		{name: "invalid url", body: `{"feedUrl":"ftp://x"}`, err: model.NewInvalidURLError("http/httpsのみ対応しています"), wantStatus: http.StatusBadRequest, wantCode: model.ErrCodeInvalidURL},
		{name: "ssrf", body: `{"feedUrl":"http://127.0.0.1/"}`, err: model.NewSSRFBlockedError(), wantStatus: http.StatusForbidden, wantCode: model.ErrCodeSSRFBlocked},
		{name: "fetch failed", body: `{"feedUrl":"https://down.example.com/"}`, err: model.NewFetchFailedError("HTTP 500", errors.New("status 500")), wantStatus: http.StatusBadGateway, wantCode: model.ErrCodeFetchFailed},
		{name: "parse failed", body: `{"feedUrl":"https://example.com/"}`, err: model.NewParseFailedError(errors.New("not xml")), wantStatus: http.StatusUnprocessableEntity, wantCode: model.ErrCodeParseFailed},
		{name: "store failed", body: `{"feedUrl":"https://example.com/feed"}`, err: model.NewStoreFailedError(errors.New("db down")), wantStatus: http.StatusInternalServerError, wantCode: model.ErrCodeStoreFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := &mockImporter{
				importFn: func(ctx context.Context, feedURL string) (*post.IngestResult, error) {
					if tt.err == nil {
						t.Fatal("Import should not be called")
					}
					return nil, tt.err
				},
			}
			h := NewImportHandler(imp)

			req := httptest.NewRequest(http.MethodPost, "/api/admin/import", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.Import(w, req)

			assertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}
