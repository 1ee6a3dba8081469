// Package feed はRSS/Atomフィードの取得とパースを行う。
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/feedpress/internal/model"
	"github.com/hitoshi/feedpress/internal/security"
)

const userAgent = "Feedpress/1.0 (+https://github.com/hitoshi/feedpress)"

// Conditional は条件付きGETに使用するバリデータ。
type Conditional struct {
	ETag         string
	LastModified string
}

// Result はフィード取得結果。
// NotModifiedがtrueの場合、Itemsは空で前回の取得内容から変化がないことを表す。
type Result struct {
	FeedURL      string // 自動検出でリダイレクトした場合は実際に取得したフィードのURL
	Title        string
	Items        []model.RawItem
	ETag         string
	LastModified string
	NotModified  bool
}

// StatusError は200/304以外のHTTPステータスを表す。FETCH_FAILEDエラーの原因として保持される。
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
}

// Fetcher は1件のフィードURLに対してHTTP GETとパースを行う。
// リトライは行わず、再試行の判断は呼び出し側に委ねる。
type Fetcher struct {
	guard       security.URLGuard
	client      *http.Client
	maxBodySize int64
	logger      *slog.Logger
}

// NewFetcher はFetcherを生成する。
func NewFetcher(guard security.URLGuard, timeout time.Duration, maxBodySize int64, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		guard:       guard,
		client:      guard.NewClient(timeout),
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// Fetch はフィードを取得し、記事をフィード内の順序で返す。
//
// エラー:
//   - URLが空または不正: INVALID_URL
//   - 接続禁止先: SSRF_BLOCKED
//   - 通信失敗・200以外のステータス: FETCH_FAILED
//   - フィードとして解釈できない: PARSE_FAILED
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]model.RawItem, error) {
	res, err := f.FetchConditional(ctx, feedURL, Conditional{})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// FetchConditional はETag/Last-Modifiedによる条件付きGETでフィードを取得する。
// URLがHTMLページを指している場合は、head内のalternateリンクから検出したフィードを1段だけ辿る。
func (f *Fetcher) FetchConditional(ctx context.Context, feedURL string, cond Conditional) (*Result, error) {
	return f.fetch(ctx, feedURL, cond, true)
}

func (f *Fetcher) fetch(ctx context.Context, feedURL string, cond Conditional, discover bool) (*Result, error) {
	if err := f.guard.ValidateURL(feedURL); err != nil {
		if errors.Is(err, security.ErrBlockedDestination) {
			return nil, model.NewSSRFBlockedError()
		}
		return nil, model.NewInvalidURLError(err.Error())
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.5, */*;q=0.1")
	if cond.ETag != "" {
		req.Header.Set("If-None-Match", cond.ETag)
	}
	if cond.LastModified != "" {
		req.Header.Set("If-Modified-Since", cond.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError("HTTPリクエストに失敗しました", err)
	}
	defer resp.Body.Close()

	res := &Result{
		FeedURL:      feedURL,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		res.NotModified = true
		res.ETag, res.LastModified = firstNonEmpty(res.ETag, cond.ETag), firstNonEmpty(res.LastModified, cond.LastModified)
		f.logger.Debug("フィードは未変更です（304）",
			slog.String("feed_url", feedURL),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return res, nil
	default:
		return nil, model.NewFetchFailedError(
			fmt.Sprintf("HTTPステータス %d が返されました", resp.StatusCode),
			&StatusError{StatusCode: resp.StatusCode},
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, model.NewFetchFailedError("レスポンスの読み取りに失敗しました", err)
	}

	if gofeed.DetectFeedType(bytes.NewReader(body)) == gofeed.FeedTypeUnknown &&
		discover && isHTML(resp.Header.Get("Content-Type"), body) {
		best := selectBestLink(discoverFeedLinks(body, feedURL), feedURL)
		if best != nil {
			f.logger.Info("HTMLページからフィードを検出しました",
				slog.String("page_url", feedURL),
				slog.String("feed_url", best.URL),
			)
			return f.fetch(ctx, best.URL, Conditional{}, false)
		}
	}

	// gofeed.Parserは内部状態を持つため呼び出しごとに生成する
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, model.NewParseFailedError(err)
	}

	res.Title = parsed.Title
	res.Items = convertItems(parsed.Items)

	f.logger.Debug("フィードを取得しました",
		slog.String("feed_url", feedURL),
		slog.Int("items", len(res.Items)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
