package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/feedpress/internal/model"
	"github.com/hitoshi/feedpress/internal/post"
)

func TestPostHandler_ListPosts(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantPage int
	}{
		{name: "default page", query: "", wantPage: 1},
		{name: "explicit page", query: "?page=3", wantPage: 3},
		{name: "out of range is passed through", query: "?page=-2", wantPage: -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPage int
			svc := &mockPublicPostService{
				listPageFn: func(ctx context.Context, page int) (post.Page, error) {
					gotPage = page
					return post.Page{
						Posts:      []*model.Post{testPost("a", model.PostStatusApproved)},
						Page:       1,
						PageSize:   7,
						TotalPages: 1,
						TotalCount: 1,
					}, nil
				},
			}
			h := NewPostHandler(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/posts"+tt.query, nil)
			w := httptest.NewRecorder()
			h.ListPosts(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if gotPage != tt.wantPage {
				t.Errorf("page = %d, want %d", gotPage, tt.wantPage)
			}

			var resp pageResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if len(resp.Posts) != 1 || resp.Posts[0].ID != "a" {
				t.Errorf("posts = %+v, want [a]", resp.Posts)
			}
			if resp.PageSize != 7 || resp.TotalPages != 1 || resp.TotalCount != 1 {
				t.Errorf("pagination = %+v", resp)
			}
		})
	}
}

func TestPostHandler_ListPosts_InvalidPage(t *testing.T) {
	h := NewPostHandler(&mockPublicPostService{
		listPageFn: func(ctx context.Context, page int) (post.Page, error) {
			t.Fatal("ListPage should not be called")
			return post.Page{}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/posts?page=abc", nil)
	w := httptest.NewRecorder()
	h.ListPosts(w, req)

	assertErrorResponse(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
}

func TestPostHandler_ListPosts_EmptyListIsArray(t *testing.T) {
	h := NewPostHandler(&mockPublicPostService{})

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	w := httptest.NewRecorder()
	h.ListPosts(w, req)

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if string(raw["posts"]) != "[]" {
		t.Errorf("posts = %s, want []", raw["posts"])
	}
}

func TestPostHandler_GetPost(t *testing.T) {
	// paramはchiがpathから取り出す値。RawPathがある場合はエンコード済みのまま渡される。
	tests := []struct {
		name     string
		path     string
		param    string
		wantSlug string
	}{
		{name: "plain slug", path: "/api/posts/hello-world", param: "hello-world", wantSlug: "hello-world"},
		{name: "encoded guid", path: "/api/posts/https:%2F%2Fexample.com%2Fp%2F1", param: "https:%2F%2Fexample.com%2Fp%2F1", wantSlug: "https://example.com/p/1"},
		{name: "literal percent", path: "/api/posts/100%25-growth", param: "100%-growth", wantSlug: "100%-growth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPublicPostService{
				getBySlugFn: func(ctx context.Context, slug string) (*model.Post, error) {
					if slug != tt.wantSlug {
						t.Errorf("slug = %q, want %q", slug, tt.wantSlug)
					}
					p := testPost("p1", model.PostStatusPublished)
					p.Slug = slug
					return p, nil
				},
			}
			h := NewPostHandler(svc)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req = withChiURLParam(req, "slug", tt.param)
			w := httptest.NewRecorder()
			h.GetPost(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			var resp postResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Slug != tt.wantSlug {
				t.Errorf("resp.Slug = %q, want %q", resp.Slug, tt.wantSlug)
			}
			if resp.Status != "published" {
				t.Errorf("resp.Status = %q, want published", resp.Status)
			}
		})
	}
}

func TestPostHandler_GetPost_NotFound(t *testing.T) {
	h := NewPostHandler(&mockPublicPostService{})

	req := httptest.NewRequest(http.MethodGet, "/api/posts/missing", nil)
	req = withChiURLParam(req, "slug", "missing")
	w := httptest.NewRecorder()
	h.GetPost(w, req)

	assertErrorResponse(t, w, http.StatusNotFound, model.ErrCodePostNotFound)
}

func TestPostHandler_GetPost_InvalidEncoding(t *testing.T) {
	h := NewPostHandler(&mockPublicPostService{})

	req := httptest.NewRequest(http.MethodGet, "/api/posts/a%2Fb", nil)
	req = withChiURLParam(req, "slug", "bad%zz")
	w := httptest.NewRecorder()
	h.GetPost(w, req)

	assertErrorResponse(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
}
