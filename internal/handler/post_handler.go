package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hitoshi/feedpress/internal/model"
	"github.com/hitoshi/feedpress/internal/post"
)

// PublicPostServiceInterface は公開APIが必要とする記事サービスのインターフェース。
type PublicPostServiceInterface interface {
	// ListPage は表示可能な記事の指定ページを返す。
	ListPage(ctx context.Context, page int) (post.Page, error)
	// GetBySlug は表示可能な記事をslugで取得する。
	GetBySlug(ctx context.Context, slug string) (*model.Post, error)
}

// PostHandler は公開記事のHTTPハンドラー。
type PostHandler struct {
	service PublicPostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PublicPostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// ListPosts は公開一覧の指定ページを返す。
// GET /api/posts?page=N
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			handleServiceError(w, model.NewInvalidRequestError("pageは整数で指定してください"))
			return
		}
		page = n
	}

	result, err := h.service.ListPage(r.Context(), page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPageResponse(result))
}

// GetPost はslugで公開記事を取得する。
// GET /api/posts/{slug}
//
// slugはフィードのguidをそのまま使うため、スラッシュなどを含む場合はパーセントエンコードして指定する。
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug, err := pathParam(r, "slug")
	if err != nil || slug == "" {
		handleServiceError(w, model.NewInvalidRequestError("slugが不正です"))
		return
	}

	p, err := h.service.GetBySlug(r.Context(), slug)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(p))
}
