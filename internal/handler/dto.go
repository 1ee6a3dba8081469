package handler

import (
	"errors"
	"time"

	"github.com/hitoshi/feedpress/internal/middleware"
	"github.com/hitoshi/feedpress/internal/model"
	"github.com/hitoshi/feedpress/internal/post"
	"github.com/hitoshi/feedpress/internal/worker/scan"
)

// --- レスポンス型 ---

// postResponse は記事のレスポンス。
type postResponse struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	Excerpt         string     `json:"excerpt"`
	Date            time.Time  `json:"date"`
	Author          string     `json:"author"`
	Slug            string     `json:"slug"`
	ImageURL        string     `json:"imageUrl,omitempty"`
	Source          string     `json:"source"`
	Status          string     `json:"status"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// validationCriteriaResponse は品質スコアの判定内訳。
type validationCriteriaResponse struct {
	HasImage    bool `json:"hasImage"`
	HasExcerpt  bool `json:"hasExcerpt"`
	HasAuthor   bool `json:"hasAuthor"`
	WordCount   int  `json:"wordCount"`
	HasKeywords bool `json:"hasKeywords"`
}

// postDetailResponse は品質スコア付きの記事レスポンス。管理画面のプレビューで使用する。
type postDetailResponse struct {
	postResponse
	ValidationScore    int                        `json:"validationScore"`
	ValidationCriteria validationCriteriaResponse `json:"validationCriteria"`
}

// pageResponse は公開一覧の1ページ分のレスポンス。
type pageResponse struct {
	Posts      []postResponse `json:"posts"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
	TotalCount int            `json:"totalCount"`
}

// postListResponse は管理用一覧のレスポンス。
type postListResponse struct {
	Posts []postDetailResponse `json:"posts"`
	Count int                  `json:"count"`
}

// bulkItemResponse は一括操作の1件ごとの結果。
type bulkItemResponse struct {
	ID    string                        `json:"id"`
	OK    bool                          `json:"ok"`
	Post  *postResponse                 `json:"post,omitempty"`
	Error *middleware.ErrorResponseBody `json:"error,omitempty"`
}

// bulkResponse は一括操作のレスポンス。
type bulkResponse struct {
	Results   []bulkItemResponse `json:"results"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// importResponse は手動取り込みのレスポンス。
type importResponse struct {
	FeedURL  string         `json:"feedUrl"`
	Posts    []postResponse `json:"posts"`
	Inserted int            `json:"inserted"`
	Updated  int            `json:"updated"`
	Failed   int            `json:"failed"`
}

// cycleResponse はスキャンサイクルの集計。
type cycleResponse struct {
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
	Feeds      int       `json:"feeds"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
}

// feedStatusResponse はフィードごとの取得状態。
type feedStatusResponse struct {
	Name              string     `json:"name"`
	URL               string     `json:"url"`
	ConsecutiveErrors int        `json:"consecutiveErrors"`
	LastError         string     `json:"lastError,omitempty"`
	LastErrorCode     string     `json:"lastErrorCode,omitempty"`
	LastSuccessAt     *time.Time `json:"lastSuccessAt,omitempty"`
	NextAttemptAt     *time.Time `json:"nextAttemptAt,omitempty"`
}

// scannerStatusResponse はスキャナーの状態。
type scannerStatusResponse struct {
	Running         bool                 `json:"running"`
	IntervalSeconds int64                `json:"intervalSeconds"`
	LastRunAt       *time.Time           `json:"lastRunAt,omitempty"`
	LastResult      *cycleResponse       `json:"lastResult,omitempty"`
	Feeds           []feedStatusResponse `json:"feeds"`
}

// --- リクエスト型 ---

// rejectRequest は却下リクエストのボディ。
type rejectRequest struct {
	Reason string `json:"reason"`
}

// bulkRequest は一括操作リクエストのボディ。reasonは一括却下でのみ使用する。
type bulkRequest struct {
	PostIDs []string `json:"postIds"`
	Reason  string   `json:"reason"`
}

// importRequest は手動取り込みリクエストのボディ。
type importRequest struct {
	FeedURL string `json:"feedUrl"`
}

// --- 変換 ---

func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:              p.ID,
		Title:           p.Title,
		Content:         p.Content,
		Excerpt:         p.Excerpt,
		Date:            p.Date,
		Author:          p.Author,
		Slug:            p.Slug,
		ImageURL:        p.ImageURL,
		Source:          p.Source,
		Status:          string(p.Status),
		RejectionReason: p.RejectionReason,
		PublishedAt:     p.PublishedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toPostResponses(posts []*model.Post) []postResponse {
	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = toPostResponse(p)
	}
	return out
}

func toPostDetailResponse(p *model.Post) postDetailResponse {
	result := post.CalculateValidationScore(p)
	return postDetailResponse{
		postResponse:    toPostResponse(p),
		ValidationScore: result.Score,
		ValidationCriteria: validationCriteriaResponse{
			HasImage:    result.Criteria.HasImage,
			HasExcerpt:  result.Criteria.HasExcerpt,
			HasAuthor:   result.Criteria.HasAuthor,
			WordCount:   result.Criteria.WordCount,
			HasKeywords: result.Criteria.HasKeywords,
		},
	}
}

func toPageResponse(p post.Page) pageResponse {
	return pageResponse{
		Posts:      toPostResponses(p.Posts),
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
		TotalCount: p.TotalCount,
	}
}

func toScannerStatusResponse(s scan.Status) scannerStatusResponse {
	resp := scannerStatusResponse{
		Running:         s.Running,
		IntervalSeconds: int64(s.Interval.Seconds()),
		LastRunAt:       s.LastRunAt,
		Feeds:           make([]feedStatusResponse, len(s.Feeds)),
	}
	if s.LastResult != nil {
		c := toCycleResponse(*s.LastResult)
		resp.LastResult = &c
	}
	for i, f := range s.Feeds {
		resp.Feeds[i] = feedStatusResponse{
			Name:              f.Name,
			URL:               f.URL,
			ConsecutiveErrors: f.ConsecutiveErrors,
			LastError:         f.LastError,
			LastErrorCode:     f.LastErrorCode,
			LastSuccessAt:     f.LastSuccessAt,
			NextAttemptAt:     f.NextAttemptAt,
		}
	}
	return resp
}

func toCycleResponse(c scan.CycleResult) cycleResponse {
	return cycleResponse{
		StartedAt:  c.StartedAt,
		DurationMs: c.Duration.Milliseconds(),
		Feeds:      c.Feeds,
		Succeeded:  c.Succeeded,
		Failed:     c.Failed,
		Skipped:    c.Skipped,
		Inserted:   c.Inserted,
		Updated:    c.Updated,
	}
}

func toBulkResponse(result *model.BulkResult) bulkResponse {
	resp := bulkResponse{
		Results:   make([]bulkItemResponse, len(result.Results)),
		Succeeded: result.Succeeded(),
		Failed:    result.Failed(),
	}
	for i, r := range result.Results {
		item := bulkItemResponse{ID: r.ID, OK: r.OK()}
		if r.Post != nil {
			p := toPostResponse(r.Post)
			item.Post = &p
		}
		if r.Err != nil {
			item.Error = toErrorBody(r.Err)
		}
		resp.Results[i] = item
	}
	return resp
}

// toErrorBody はエラーを統一エラーフォーマットに変換する。APIError以外は内部エラーとして扱う。
func toErrorBody(err error) *middleware.ErrorResponseBody {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return &middleware.ErrorResponseBody{
			Code:     "INTERNAL_ERROR",
			Message:  "内部エラーが発生しました。",
			Category: "system",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}
	return &middleware.ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
}
