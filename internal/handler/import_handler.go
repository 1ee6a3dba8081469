package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/feedpress/internal/model"
	"github.com/hitoshi/feedpress/internal/post"
)

// ImporterInterface はフィードの手動取り込みを行うインターフェース。
type ImporterInterface interface {
	Import(ctx context.Context, feedURL string) (*post.IngestResult, error)
}

// ImportHandler はフィードの手動取り込みのHTTPハンドラー。
type ImportHandler struct {
	importer ImporterInterface
}

// NewImportHandler はImportHandlerを生成する。
func NewImportHandler(importer ImporterInterface) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// Import は1件のフィードを同期的に取得・正規化・保存し、保存した記事を返す。
// POST /api/admin/import {"feedUrl": "https://..."}
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	feedURL := strings.TrimSpace(req.FeedURL)
	if feedURL == "" {
		handleServiceError(w, model.NewInvalidURLError("URLが空です"))
		return
	}

	result, err := h.importer.Import(r.Context(), feedURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, importResponse{
		FeedURL:  result.FeedURL,
		Posts:    toPostResponses(result.Posts),
		Inserted: result.Inserted,
		Updated:  result.Updated,
		Failed:   result.Failed,
	})
}
