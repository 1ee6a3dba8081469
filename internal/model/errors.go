// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, feed, post, system
	Action   string // ユーザー向け対処方法
	Err      error  // 原因となったエラー（ログ用、レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL              = "INVALID_URL"
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeRejectionReasonRequired = "REJECTION_REASON_REQUIRED"
	ErrCodeSSRFBlocked             = "SSRF_BLOCKED"
	ErrCodeFetchFailed             = "FETCH_FAILED"
	ErrCodeParseFailed             = "PARSE_FAILED"
	ErrCodePostNotFound            = "POST_NOT_FOUND"
	ErrCodeInvalidTransition       = "INVALID_TRANSITION"
	ErrCodeStoreFailed             = "STORE_FAILED"
	ErrCodeSettingsSaveFailed      = "SETTINGS_SAVE_FAILED"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewInvalidRequestError はリクエスト内容の不備を表すエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewRejectionReasonRequiredError は却下理由が空の場合のエラーを生成する。
func NewRejectionReasonRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeRejectionReasonRequired,
		Message:  "却下理由が指定されていません。",
		Category: "validation",
		Action:   "却下理由を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("フィードの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
		Err:      cause,
	}
}

// NewParseFailedError はパース失敗エラーを生成する。
func NewParseFailedError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "フィードの解析に失敗しました。",
		Category: "feed",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
		Err:      cause,
	}
}

// NewPostNotFoundError は記事未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", postID),
		Category: "post",
		Action:   "記事IDを確認してください。",
	}
}

// NewInvalidTransitionError は許可されていない状態遷移のエラーを生成する。
func NewInvalidTransitionError(postID string, from, to PostStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("記事 %s は %s から %s に変更できません。", postID, from, to),
		Category: "post",
		Action:   "記事の現在のステータスを確認してください。",
	}
}

// NewStoreFailedError は永続化失敗エラーを生成する。
func NewStoreFailedError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeStoreFailed,
		Message:  "データの保存または取得に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      cause,
	}
}

// NewSettingsSaveFailedError は設定の保存失敗エラーを生成する。
func NewSettingsSaveFailedError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeSettingsSaveFailed,
		Message:  "設定の保存に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      cause,
	}
}

// HasCode はerrのチェーンに指定コードのAPIErrorが含まれるかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// IsNotFound は記事未検出エラーかどうかを返す。
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodePostNotFound)
}

// IsValidation はバリデーションカテゴリのエラーかどうかを返す。
func IsValidation(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category == "validation"
	}
	return false
}
