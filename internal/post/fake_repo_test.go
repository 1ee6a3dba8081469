package post

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/feedpress/internal/model"
	"github.com/hitoshi/feedpress/internal/repository"
)

// fakeRepo はPostgresPostRepoと同じ意味論を持つインメモリのPostRepository。
type fakeRepo struct {
	mu    sync.Mutex
	posts map[string]*model.Post
	// failIDs に含まれるIDへの書き込みはエラーになる
	failIDs map[string]bool
	listErr error
	lists   int
}

var _ repository.PostRepository = (*fakeRepo)(nil)

var errFakeStore = errors.New("fake store failure")

func newFakeRepo() *fakeRepo {
	return &fakeRepo{posts: map[string]*model.Post{}, failIDs: map[string]bool{}}
}

func clonePost(p *model.Post) *model.Post {
	c := *p
	return &c
}

func (r *fakeRepo) Upsert(_ context.Context, p *model.Post) (*model.Post, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIDs[p.ID] {
		return nil, false, errFakeStore
	}

	now := time.Now()
	existing, ok := r.posts[p.ID]
	stored := clonePost(p)
	if ok {
		stored.Status = existing.Status
		stored.RejectionReason = existing.RejectionReason
		stored.PublishedAt = existing.PublishedAt
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.Status = model.PostStatusPending
		stored.RejectionReason = ""
		stored.PublishedAt = nil
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.posts[p.ID] = stored
	return clonePost(stored), !ok, nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return clonePost(p), nil
}

func (r *fakeRepo) FindDisplayableBySlug(_ context.Context, slug string) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.Post
	for _, p := range r.posts {
		if p.Slug == slug && p.Status.Displayable() && (best == nil || p.Date.After(best.Date)) {
			best = p
		}
	}
	if best == nil {
		return nil, nil
	}
	return clonePost(best), nil
}

func (r *fakeRepo) Transition(_ context.Context, id string, from, to model.PostStatus, reason string, publishedAt *time.Time) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIDs[id] {
		return nil, errFakeStore
	}
	p, ok := r.posts[id]
	if !ok || p.Status != from {
		return nil, nil
	}
	p.Status = to
	p.RejectionReason = ""
	if to == model.PostStatusRejected {
		p.RejectionReason = reason
	}
	if publishedAt != nil {
		t := *publishedAt
		p.PublishedAt = &t
	}
	p.UpdatedAt = time.Now()
	return clonePost(p), nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIDs[id] {
		return false, errFakeStore
	}
	_, ok := r.posts[id]
	delete(r.posts, id)
	return ok, nil
}

func (r *fakeRepo) List(_ context.Context, statuses []model.PostStatus, limit int) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	if r.listErr != nil {
		return nil, r.listErr
	}

	var out []*model.Post
	for _, p := range r.posts {
		if len(statuses) > 0 && !containsStatus(statuses, p.Status) {
			continue
		}
		out = append(out, clonePost(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func containsStatus(statuses []model.PostStatus, s model.PostStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// fakeCache はメモリ上でJSONを経由せずに値を保持するCache。
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]*model.Post
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]*model.Post{}}
}

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	*(dst.(*[]*model.Post)) = v
	return true, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value.([]*model.Post)
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.deletes++
	return nil
}

func (c *fakeCache) Ping(context.Context) error { return nil }
func (c *fakeCache) Close() error { return nil }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
