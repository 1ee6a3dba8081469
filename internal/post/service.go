package post

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/hitoshi/feedpress/internal/cache"
	"github.com/hitoshi/feedpress/internal/metrics"
	"github.com/hitoshi/feedpress/internal/model"
	"github.com/hitoshi/feedpress/internal/repository"
)

// displayableCacheKey は公開一覧（表示可能な全記事）のキャッシュキー。
const displayableCacheKey = "posts:displayable"

// DefaultListLimit は管理用一覧の既定の最大件数。
const DefaultListLimit = 50

var displayableStatuses = []model.PostStatus{model.PostStatusApproved, model.PostStatusPublished}

// ServiceConfig はServiceの動作設定。
type ServiceConfig struct {
	CacheTTL  time.Duration
	PageSize  int
	ListLimit int
}

// Service は記事のモデレーションストア。
//
// 状態遷移:
//
//	pending  --approve--> approved --publish--> published
//	pending  --reject---> rejected
//
// 上記以外の遷移はINVALID_TRANSITIONで失敗し、ストアは変更されない。
// 遷移はストアの条件付き更新で行うため、複数プロセスから同時に操作しても後勝ちにはならない。
type Service struct {
	repo    repository.PostRepository
	cache   cache.Cache
	metrics metrics.Recorder
	logger  *slog.Logger
	cfg     ServiceConfig
	now     func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.PostRepository, c cache.Cache, rec metrics.Recorder, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = DefaultListLimit
	}
	return &Service{
		repo:    repo,
		cache:   c,
		metrics: rec,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Upsert は記事をidで挿入または更新する。
// 既存記事の場合はコンテンツを上書きし、モデレーション状態は維持する。
func (s *Service) Upsert(ctx context.Context, p *model.Post) (*model.Post, bool, error) {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return nil, false, model.NewInvalidRequestError("記事IDが空です")
	}

	stored, inserted, err := s.repo.Upsert(ctx, p)
	if err != nil {
		return nil, false, model.NewStoreFailedError(err)
	}
	if stored.Status.Displayable() {
		s.invalidateListing(ctx)
	}
	return stored, inserted, nil
}

// Get は指定IDの記事を取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Post, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStoreFailedError(err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	return p, nil
}

// GetBySlug は公開中の記事をslugで取得する。
// 同じslugの記事が複数ある場合は日付の新しいものを返す。
func (s *Service) GetBySlug(ctx context.Context, slug string) (*model.Post, error) {
	p, err := s.repo.FindDisplayableBySlug(ctx, slug)
	if err != nil {
		return nil, model.NewStoreFailedError(err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(slug)
	}
	return p, nil
}

// Approve はpendingの記事をapprovedに遷移させる。
func (s *Service) Approve(ctx context.Context, id string) (*model.Post, error) {
	p, err := s.transition(ctx, id, model.PostStatusPending, model.PostStatusApproved, "", nil)
	s.metrics.RecordModeration("approve", err == nil)
	return p, err
}

// Reject はpendingの記事を理由付きでrejectedに遷移させる。理由は空にできない。
func (s *Service) Reject(ctx context.Context, id, reason string) (*model.Post, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		s.metrics.RecordModeration("reject", false)
		return nil, model.NewRejectionReasonRequiredError()
	}
	p, err := s.transition(ctx, id, model.PostStatusPending, model.PostStatusRejected, reason, nil)
	s.metrics.RecordModeration("reject", err == nil)
	return p, err
}

// Publish はapprovedの記事をpublishedに遷移させ、公開日時を記録する。
func (s *Service) Publish(ctx context.Context, id string) (*model.Post, error) {
	now := s.now().UTC()
	p, err := s.transition(ctx, id, model.PostStatusApproved, model.PostStatusPublished, "", &now)
	s.metrics.RecordModeration("publish", err == nil)
	return p, err
}

// transition は条件付き更新で状態を遷移させる。
// 更新対象がない場合は、記事の有無を確認してPOST_NOT_FOUNDとINVALID_TRANSITIONを区別する。
func (s *Service) transition(ctx context.Context, id string, from, to model.PostStatus, reason string, publishedAt *time.Time) (*model.Post, error) {
	p, err := s.repo.Transition(ctx, id, from, to, reason, publishedAt)
	if err != nil {
		return nil, model.NewStoreFailedError(err)
	}
	if p == nil {
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, model.NewStoreFailedError(err)
		}
		if current == nil {
			return nil, model.NewPostNotFoundError(id)
		}
		return nil, model.NewInvalidTransitionError(id, current.Status, to)
	}

	if to.Displayable() {
		s.invalidateListing(ctx)
	}
	s.logger.Info("記事のステータスを更新しました",
		slog.String("post_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	return p, nil
}

// BulkApprove は複数の記事を承認する。
// 1件の失敗で残りの処理は中断せず、id単位の結果を返す。成功した更新はロールバックしない。
func (s *Service) BulkApprove(ctx context.Context, ids []string) (*model.BulkResult, error) {
	ids, err := normalizeIDs(ids)
	if err != nil {
		return nil, err
	}
	return s.bulk(ids, func(id string) (*model.Post, error) {
		return s.Approve(ctx, id)
	}), nil
}

// BulkReject は複数の記事を同じ理由で却下する。
// 理由が空の場合は1件も処理せずにエラーを返す。
func (s *Service) BulkReject(ctx context.Context, ids []string, reason string) (*model.BulkResult, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, model.NewRejectionReasonRequiredError()
	}
	ids, err := normalizeIDs(ids)
	if err != nil {
		return nil, err
	}
	return s.bulk(ids, func(id string) (*model.Post, error) {
		return s.Reject(ctx, id, reason)
	}), nil
}

func (s *Service) bulk(ids []string, op func(id string) (*model.Post, error)) *model.BulkResult {
	result := &model.BulkResult{Results: make([]model.BulkItemResult, 0, len(ids))}
	for _, id := range ids {
		p, err := op(id)
		result.Results = append(result.Results, model.BulkItemResult{ID: id, Post: p, Err: err})
	}
	if failed := result.Failed(); failed > 0 {
		s.logger.Warn("一括操作の一部が失敗しました",
			slog.Int("succeeded", result.Succeeded()),
			slog.Int("failed", failed),
		)
	}
	return result
}

// normalizeIDs は空のIDを除き、出現順を保ったまま重複を取り除く。
func normalizeIDs(ids []string) ([]string, error) {
	cleaned := lo.Uniq(lo.FilterMap(ids, func(id string, _ int) (string, bool) {
		id = strings.TrimSpace(id)
		return id, id != ""
	}))
	if len(cleaned) == 0 {
		return nil, model.NewInvalidRequestError("postIdsが指定されていません")
	}
	return cleaned, nil
}

// Delete は記事を完全に削除する。存在しないIDの削除もエラーにしない。
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	s.metrics.RecordModeration("delete", err == nil)
	if err != nil {
		return model.NewStoreFailedError(err)
	}
	if deleted {
		s.invalidateListing(ctx)
		s.logger.Info("記事を削除しました", slog.String("post_id", id))
	}
	return nil
}

// ListByStatus は指定ステータスの記事を日付の新しい順に返す。
// limitが0以下の場合は既定の最大件数を適用する。
func (s *Service) ListByStatus(ctx context.Context, status model.PostStatus, limit int) ([]*model.Post, error) {
	if !status.Valid() {
		return nil, model.NewInvalidRequestError("不明なステータスです: " + string(status))
	}
	return s.list(ctx, []model.PostStatus{status}, limit)
}

// ListAll は全ステータスの記事を日付の新しい順に返す。
func (s *Service) ListAll(ctx context.Context, limit int) ([]*model.Post, error) {
	return s.list(ctx, nil, limit)
}

func (s *Service) list(ctx context.Context, statuses []model.PostStatus, limit int) ([]*model.Post, error) {
	if limit <= 0 {
		limit = s.cfg.ListLimit
	}
	posts, err := s.repo.List(ctx, statuses, limit)
	if err != nil {
		return nil, model.NewStoreFailedError(err)
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	return posts, nil
}

// ListPage は公開一覧の指定ページを返す。
// 表示可能な記事の一覧はキャッシュし、モデレーション操作で無効化する。
func (s *Service) ListPage(ctx context.Context, page int) (Page, error) {
	posts, err := s.displayable(ctx)
	if err != nil {
		return Page{}, err
	}
	return Paginate(posts, page, s.cfg.PageSize), nil
}

func (s *Service) displayable(ctx context.Context) ([]*model.Post, error) {
	var cached []*model.Post
	hit, err := s.cache.Get(ctx, displayableCacheKey, &cached)
	if err != nil {
		s.logger.Warn("公開一覧キャッシュの取得に失敗しました", slog.String("error", err.Error()))
	}
	s.metrics.RecordCacheLookup(hit)
	if hit {
		return cached, nil
	}

	posts, err := s.repo.List(ctx, displayableStatuses, 0)
	if err != nil {
		return nil, model.NewStoreFailedError(err)
	}
	if err := s.cache.Set(ctx, displayableCacheKey, posts, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("公開一覧キャッシュの保存に失敗しました", slog.String("error", err.Error()))
	}
	return posts, nil
}

// invalidateListing は公開一覧キャッシュを無効化する。失敗してもTTL経過で解消するため処理は継続する。
func (s *Service) invalidateListing(ctx context.Context) {
	if err := s.cache.Delete(ctx, displayableCacheKey); err != nil {
		s.logger.Warn("公開一覧キャッシュの無効化に失敗しました", slog.String("error", err.Error()))
	}
}
