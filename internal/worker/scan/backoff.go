package scan

import (
	"errors"
	"time"

	"github.com/hitoshi/feedpress/internal/feed"
	"github.com/hitoshi/feedpress/internal/model"
)

// FailureKind はフェッチ失敗の分類。
type FailureKind int

const (
	// FailureTransient は一時的な失敗（ネットワークエラー、429、5xx、パース失敗など）。
	FailureTransient FailureKind = iota
	// FailurePermanent は設定を見直すまで回復しない失敗（404/410/401/403、SSRFブロック、不正なURL）。
	FailurePermanent
)

// ClassifyHTTPStatus はHTTPステータスコードを失敗の分類に変換する。
func ClassifyHTTPStatus(statusCode int) FailureKind {
	switch statusCode {
	case 401, 403, 404, 410:
		return FailurePermanent
	default:
		return FailureTransient
	}
}

// ClassifyError はスキャン中のエラーを分類する。
func ClassifyError(err error) FailureKind {
	var statusErr *feed.StatusError
	if errors.As(err, &statusErr) {
		return ClassifyHTTPStatus(statusErr.StatusCode)
	}
	if model.HasCode(err, model.ErrCodeSSRFBlocked) || model.HasCode(err, model.ErrCodeInvalidURL) {
		return FailurePermanent
	}
	return FailureTransient
}

// CalculateBackoff は連続失敗回数に応じた次回試行までの待機時間を返す。
// interval * 2^(consecutiveErrors-1) で増加し、maxBackoffを上限とする。
// consecutiveErrorsが0以下の場合は0を返す。
func CalculateBackoff(interval time.Duration, consecutiveErrors int, maxBackoff time.Duration) time.Duration {
	if consecutiveErrors <= 0 {
		return 0
	}
	delay := interval
	for i := 1; i < consecutiveErrors; i++ {
		delay *= 2
		if maxBackoff > 0 && delay >= maxBackoff {
			return maxBackoff
		}
	}
	if maxBackoff > 0 && delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

// errorCode はメトリクスとステータス表示に使うエラーコードを返す。
func errorCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "UNKNOWN"
}
