package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hitoshi/feedpress/internal/model"
)

// ModerationServiceInterface は管理APIが必要とするモデレーションサービスのインターフェース。
type ModerationServiceInterface interface {
	Get(ctx context.Context, id string) (*model.Post, error)
	ListByStatus(ctx context.Context, status model.PostStatus, limit int) ([]*model.Post, error)
	ListAll(ctx context.Context, limit int) ([]*model.Post, error)
	Approve(ctx context.Context, id string) (*model.Post, error)
	Reject(ctx context.Context, id, reason string) (*model.Post, error)
	Publish(ctx context.Context, id string) (*model.Post, error)
	BulkApprove(ctx context.Context, ids []string) (*model.BulkResult, error)
	BulkReject(ctx context.Context, ids []string, reason string) (*model.BulkResult, error)
	Delete(ctx context.Context, id string) error
}

// AdminPostHandler は記事モデレーションのHTTPハンドラー。
type AdminPostHandler struct {
	service ModerationServiceInterface
}

// NewAdminPostHandler はAdminPostHandlerを生成する。
func NewAdminPostHandler(service ModerationServiceInterface) *AdminPostHandler {
	return &AdminPostHandler{service: service}
}

// ListPosts は記事を日付の新しい順に返す。各記事には品質スコアを含める。
// GET /api/admin/posts?status=pending&limit=50
func (h *AdminPostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			handleServiceError(w, model.NewInvalidRequestError("limitは0以上の整数で指定してください"))
			return
		}
		limit = n
	}

	var (
		posts []*model.Post
		err   error
	)
	if status := q.Get("status"); status != "" {
		posts, err = h.service.ListByStatus(r.Context(), model.PostStatus(status), limit)
	} else {
		posts, err = h.service.ListAll(r.Context(), limit)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := postListResponse{Posts: make([]postDetailResponse, len(posts)), Count: len(posts)}
	for i, p := range posts {
		resp.Posts[i] = toPostDetailResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPost は品質スコア付きで記事を返す。
// GET /api/admin/posts/{id}
func (h *AdminPostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostDetailResponse(p))
}

// DeletePost は記事を削除する。存在しない記事の削除も204を返す。
// DELETE /api/admin/posts/{id}
func (h *AdminPostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApprovePost はpendingの記事を承認する。
// POST /api/admin/posts/{id}/approve
func (h *AdminPostHandler) ApprovePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}

	p, err := h.service.Approve(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// RejectPost はpendingの記事を理由付きで却下する。
// POST /api/admin/posts/{id}/reject {"reason": "..."}
func (h *AdminPostHandler) RejectPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}

	var req rejectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	p, err := h.service.Reject(r.Context(), id, req.Reason)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// PublishPost はapprovedの記事を公開する。
// POST /api/admin/posts/{id}/publish
func (h *AdminPostHandler) PublishPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}

	p, err := h.service.Publish(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// BulkApprove は複数の記事を承認し、id単位の結果を返す。
// POST /api/admin/posts/bulk-approve {"postIds": [...]}
func (h *AdminPostHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.BulkApprove(r.Context(), req.PostIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkResponse(result))
}

// BulkReject は複数の記事を同じ理由で却下し、id単位の結果を返す。
// POST /api/admin/posts/bulk-reject {"postIds": [...], "reason": "..."}
func (h *AdminPostHandler) BulkReject(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.BulkReject(r.Context(), req.PostIDs, req.Reason)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkResponse(result))
}

// postIDParam はパスパラメータから記事IDを取り出す。
// IDはguidやURLのため、パーセントエンコードされた値をデコードする。
func postIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := pathParam(r, "id")
	if err != nil || id == "" {
		handleServiceError(w, model.NewInvalidRequestError("記事IDが不正です"))
		return "", false
	}
	return id, true
}
