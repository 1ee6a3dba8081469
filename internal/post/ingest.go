package post

import (
	"context"
	"log/slog"

	"github.com/hitoshi/feedpress/internal/metrics"
	"github.com/hitoshi/feedpress/internal/model"
	"github.com/hitoshi/feedpress/internal/security"
)

// FeedFetcher はフィードURLから記事を取得するインターフェース。
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]model.RawItem, error)
}

// PostUpserter は正規化済み記事の保存先。
type PostUpserter interface {
	Upsert(ctx context.Context, p *model.Post) (*model.Post, bool, error)
}

// IngestResult は取り込み結果。
type IngestResult struct {
	FeedURL  string
	Posts    []*model.Post // 保存後の記事。フィード内の順序を保つ
	Inserted int
	Updated  int
	Failed   int
}

// Ingester はフィード記事の正規化・サニタイズ・保存を行う。
// 同じ記事を何度取り込んでもid単位のupsertで1件に収束する。
type Ingester struct {
	fetcher    FeedFetcher
	normalizer *Normalizer
	sanitizer  security.Sanitizer
	store      PostUpserter
	metrics    metrics.Recorder
	logger     *slog.Logger
}

// NewIngester はIngesterを生成する。
func NewIngester(fetcher FeedFetcher, normalizer *Normalizer, sanitizer security.Sanitizer, store PostUpserter, rec metrics.Recorder, logger *slog.Logger) *Ingester {
	return &Ingester{
		fetcher:    fetcher,
		normalizer: normalizer,
		sanitizer:  sanitizer,
		store:      store,
		metrics:    rec,
		logger:     logger,
	}
}

// Import は1件のフィードを取得して取り込む。管理画面からの手動取り込みで使用する。
func (i *Ingester) Import(ctx context.Context, feedURL string) (*IngestResult, error) {
	items, err := i.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return i.Ingest(ctx, feedURL, items)
}

// Ingest は取得済みの記事を正規化して保存する。
// 1件の保存失敗で残りの記事の処理は中断しない。全件が失敗した場合のみエラーを返す。
func (i *Ingester) Ingest(ctx context.Context, feedURL string, items []model.RawItem) (*IngestResult, error) {
	result := &IngestResult{FeedURL: feedURL, Posts: make([]*model.Post, 0, len(items))}
	var lastErr error

	for _, raw := range items {
		// 本文から抜粋を作る場合があるため、正規化の前に無害化する。
		raw.Content = i.sanitizer.Sanitize(raw.Content)
		p, randomID := i.normalizer.Normalize(raw, feedURL)
		if randomID {
			i.metrics.RecordRandomID()
			i.logger.Warn("guidとlinkがない記事にランダムIDを割り当てました。再取り込み時に重複排除されません",
				slog.String("feed_url", feedURL),
				slog.String("post_id", p.ID),
				slog.String("title", p.Title),
			)
		}
		p.Content = i.sanitizer.Sanitize(p.Content)

		stored, inserted, err := i.store.Upsert(ctx, p)
		if err != nil {
			result.Failed++
			lastErr = err
			i.logger.Error("記事の保存に失敗しました",
				slog.String("feed_url", feedURL),
				slog.String("post_id", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
		result.Posts = append(result.Posts, stored)
	}

	i.metrics.RecordPostsIngested(result.Inserted, result.Updated)

	if len(items) > 0 && result.Failed == len(items) {
		return result, lastErr
	}

	i.logger.Info("フィードを取り込みました",
		slog.String("feed_url", feedURL),
		slog.Int("items_total", len(items)),
		slog.Int("items_inserted", result.Inserted),
		slog.Int("items_updated", result.Updated),
		slog.Int("items_failed", result.Failed),
	)
	return result, nil
}
