// Package scan はフィードの定期スキャンを提供する。
// 一定間隔でフィードを取得し、記事を正規化してモデレーションストアへ取り込む。
package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/feedpress/internal/config"
	"github.com/hitoshi/feedpress/internal/feed"
	"github.com/hitoshi/feedpress/internal/metrics"
	"github.com/hitoshi/feedpress/internal/model"
	"github.com/hitoshi/feedpress/internal/post"
)

// FeedFetcher は条件付きGETでフィードを取得するインターフェース。
type FeedFetcher interface {
	FetchConditional(ctx context.Context, feedURL string, cond feed.Conditional) (*feed.Result, error)
}

// Ingester は取得済みの記事をストアへ取り込むインターフェース。
type Ingester interface {
	Ingest(ctx context.Context, feedURL string, items []model.RawItem) (*post.IngestResult, error)
}

// Options はScannerの動作設定。
type Options struct {
	Interval       time.Duration
	FetchTimeout   time.Duration
	BackoffMax     time.Duration
	MaxConcurrency int
}

// feedState はフィードごとの取得状態。
type feedState struct {
	consecutiveErrors int
	lastError         string
	lastErrorCode     string
	lastSuccessAt     time.Time
	nextAttemptAt     time.Time
	etag              string
	lastModified      string
}

// Scanner はフィードの定期スキャンを行う。
//
// Start/Stopで明示的に起動・停止する。Startの直後に1回スキャンし、以降はIntervalごとに実行する。
// Stopはタイマーのみを止め、実行中のサイクルはスキャナーのライフサイクルから切り離されたコンテキストで
// 最後まで実行される。
type Scanner struct {
	sources  []config.FeedSource
	fetcher  FeedFetcher
	ingester Ingester
	metrics  metrics.Recorder
	logger   *slog.Logger
	opts     Options
	now      func() time.Time

	// cycleMu はサイクルの同時実行を防ぐ
	cycleMu sync.Mutex

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	lastRunAt  time.Time
	lastResult *CycleResult
	states     map[string]*feedState
}

// NewScanner はScannerを生成する。無効化されたソースはスキャン対象から除外する。
func NewScanner(sources []config.FeedSource, fetcher FeedFetcher, ingester Ingester, rec metrics.Recorder, logger *slog.Logger, opts Options) *Scanner {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}

	enabled := make([]config.FeedSource, 0, len(sources))
	for _, src := range sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	return &Scanner{
		sources:  enabled,
		fetcher:  fetcher,
		ingester: ingester,
		metrics:  rec,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		states:   make(map[string]*feedState, len(enabled)),
	}
}

// Start はスキャンループを起動する。起動済みの場合は何もしない。
func (s *Scanner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("フィードスキャナーを開始しました",
		slog.Duration("interval", s.opts.Interval),
		slog.Int("feed_count", len(s.sources)),
		slog.Int("max_concurrency", s.opts.MaxConcurrency),
	)
	go s.loop(ctx, s.done)
}

// Stop はスキャンループを停止する。停止済みの場合は何もしない。
// 実行中のサイクルの完了は待たない。完了を待つ場合はWaitを使う。
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.running = false
	s.cancel = nil
	s.logger.Info("フィードスキャナーを停止しました")
}

// Wait は直近に起動したスキャンループが終了するまで待つ。
// ctxが先に終了した場合はctxのエラーを返す。
func (s *Scanner) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running はスキャンループが動作中かどうかを返す。
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scanner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は全フィードを1回スキャンする。
// サイクルはctxのキャンセルから切り離して実行し、各フェッチはFetchTimeoutで打ち切る。
// 同時に呼ばれた場合は先行のサイクルの完了を待ってから実行する。
func (s *Scanner) RunOnce(ctx context.Context) CycleResult {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	ctx = context.WithoutCancel(ctx)
	start := s.now()

	s.logger.Info("スキャンサイクルを開始します", slog.Int("feed_count", len(s.sources)))

	result := CycleResult{StartedAt: start, Feeds: len(s.sources)}
	var resultMu sync.Mutex

	sem := make(chan struct{}, s.opts.MaxConcurrency)
	var wg sync.WaitGroup

	for _, src := range s.sources {
		wg.Add(1)
		sem <- struct{}{}

		go func(src config.FeedSource) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := s.scanFeed(ctx, src, start)

			resultMu.Lock()
			defer resultMu.Unlock()
			switch {
			case outcome.skipped:
				result.Skipped++
			case outcome.err != nil:
				result.Failed++
			default:
				result.Succeeded++
				result.Inserted += outcome.inserted
				result.Updated += outcome.updated
			}
		}(src)
	}
	wg.Wait()

	result.Duration = s.now().Sub(start)
	s.metrics.RecordScanCycle(result.Duration)

	s.mu.Lock()
	s.lastRunAt = start
	r := result
	s.lastResult = &r
	s.mu.Unlock()

	s.logger.Info("スキャンサイクルが完了しました",
		slog.Int("feed_count", result.Feeds),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped),
		slog.Int("items_inserted", result.Inserted),
		slog.Int("items_updated", result.Updated),
		slog.Float64("duration_ms", float64(result.Duration.Milliseconds())),
	)
	return result
}

type feedOutcome struct {
	skipped  bool
	err      error
	inserted int
	updated  int
}

// scanFeed は1件のフィードを取得して取り込む。失敗はログとフィード状態に記録し、サイクルは継続する。
func (s *Scanner) scanFeed(ctx context.Context, src config.FeedSource, cycleStart time.Time) feedOutcome {
	st := s.state(src.URL)
	if !s.due(st, cycleStart) {
		s.logger.Debug("バックオフ中のためフィードをスキップしました",
			slog.String("feed_url", src.URL),
			slog.Time("next_attempt_at", st.nextAttemptAt),
		)
		return feedOutcome{skipped: true}
	}

	fetchStart := s.now()
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	res, err := s.fetcher.FetchConditional(fetchCtx, src.URL, feed.Conditional{
		ETag:         st.etag,
		LastModified: st.lastModified,
	})
	cancel()
	s.metrics.RecordFetchLatency(s.now().Sub(fetchStart))

	if err != nil {
		var statusErr *feed.StatusError
		if errors.As(err, &statusErr) {
			s.metrics.RecordHTTPStatus(statusErr.StatusCode)
		}
		s.recordFailure(src, err, cycleStart)
		return feedOutcome{err: err}
	}

	if res.NotModified {
		s.metrics.RecordHTTPStatus(304)
		s.recordSuccess(src, res)
		s.logger.Debug("フィードは更新されていません", slog.String("feed_url", src.URL))
		return feedOutcome{}
	}
	s.metrics.RecordHTTPStatus(200)

	ingested, err := s.ingester.Ingest(ctx, src.URL, res.Items)
	if err != nil {
		s.recordFailure(src, model.NewStoreFailedError(err), cycleStart)
		return feedOutcome{err: err}
	}

	if ingested.Failed > 0 {
		// 条件付きGETの検証子を保存すると次回は304になり、失敗した記事が再取得されない。
		res.ETag, res.LastModified = "", ""
		s.logger.Warn("保存に失敗した記事があるため次回は全件を再取得します",
			slog.String("feed_url", src.URL),
			slog.Int("items_failed", ingested.Failed),
		)
	}
	s.recordSuccess(src, res)
	return feedOutcome{inserted: ingested.Inserted, updated: ingested.Updated}
}

// due はフィードが試行可能かどうかを返す。
// 次回試行時刻の判定には、ティッカーの揺らぎとして半周期の猶予を含める。
func (s *Scanner) due(st feedState, cycleStart time.Time) bool {
	if st.nextAttemptAt.IsZero() {
		return true
	}
	return cycleStart.Add(s.opts.Interval / 2).After(st.nextAttemptAt)
}

func (s *Scanner) state(feedURL string) feedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[feedURL]; ok {
		return *st
	}
	return feedState{}
}

func (s *Scanner) recordSuccess(src config.FeedSource, res *feed.Result) {
	s.metrics.RecordFetchSuccess(src.URL)

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(src.URL)
	st.consecutiveErrors = 0
	st.lastError = ""
	st.lastErrorCode = ""
	st.nextAttemptAt = time.Time{}
	st.lastSuccessAt = s.now()
	if !res.NotModified {
		st.etag = res.ETag
		st.lastModified = res.LastModified
	}
}

func (s *Scanner) recordFailure(src config.FeedSource, err error, cycleStart time.Time) {
	code := errorCode(err)
	s.metrics.RecordFetchFailure(src.URL, code)

	s.mu.Lock()
	st := s.stateLocked(src.URL)
	st.consecutiveErrors++
	st.lastError = err.Error()
	st.lastErrorCode = code

	delay := CalculateBackoff(s.opts.Interval, st.consecutiveErrors, s.opts.BackoffMax)
	if ClassifyError(err) == FailurePermanent && s.opts.BackoffMax > 0 {
		delay = s.opts.BackoffMax
	}
	st.nextAttemptAt = cycleStart.Add(delay)
	consecutive := st.consecutiveErrors
	next := st.nextAttemptAt
	s.mu.Unlock()

	s.logger.Error("フィードのスキャンに失敗しました",
		slog.String("feed_name", src.Name),
		slog.String("feed_url", src.URL),
		slog.String("code", code),
		slog.Int("consecutive_errors", consecutive),
		slog.Time("next_attempt_at", next),
		slog.String("error", err.Error()),
	)
}

func (s *Scanner) stateLocked(feedURL string) *feedState {
	st, ok := s.states[feedURL]
	if !ok {
		st = &feedState{}
		s.states[feedURL] = st
	}
	return st
}
