// Package model はドメインモデルを定義する。
package model

import "time"

// PostStatus は記事のモデレーション状態を表す。
//
// 遷移表:
//
//	pending  → approved | rejected
//	approved → published
//
// rejected と published は削除以外で遷移しない。
type PostStatus string

const (
	// PostStatusPending は取り込み直後のレビュー待ち状態。
	PostStatusPending PostStatus = "pending"
	// PostStatusApproved はモデレーターが承認した状態。公開一覧に表示される。
	PostStatusApproved PostStatus = "approved"
	// PostStatusRejected は却下された状態。rejectionReason を持つ。
	PostStatusRejected PostStatus = "rejected"
	// PostStatusPublished は明示的に公開された状態。
	PostStatusPublished PostStatus = "published"
)

// Valid は既知のステータス値かどうかを返す。
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusPending, PostStatusApproved, PostStatusRejected, PostStatusPublished:
		return true
	}
	return false
}

// Displayable は公開一覧に表示できるステータスかどうかを返す。
func (s PostStatus) Displayable() bool {
	return s == PostStatusApproved || s == PostStatusPublished
}

// Post はフィードから取り込まれ、モデレーション対象となる正規化済み記事。
// IDはguid/linkから導出され、全記事で一意となる。
type Post struct {
	ID              string
	Title           string
	Content         string // サニタイズ済みHTML
	Excerpt         string
	Date            time.Time
	Author          string
	Slug            string
	ImageURL        string
	Source          string // 取り込み元フィードURL
	Status          PostStatus
	RejectionReason string // Status=rejected の場合のみ意味を持つ
	PublishedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidationCriteria は品質スコアの判定内訳。
// WordCount は情報提供用の値で、300語超で20点が加算される。
type ValidationCriteria struct {
	HasImage    bool
	HasExcerpt  bool
	HasAuthor   bool
	WordCount   int
	HasKeywords bool
}

// ValidationResult は記事の品質スコア（0〜100）と内訳。
// 承認可否を決めるものではなく、レビュー担当者への参考値として提示する。
type ValidationResult struct {
	Score    int
	Criteria ValidationCriteria
}

// RawItem はフィードパーサーから取得した未正規化の記事データ。
// すべてのフィールドは任意で、欠損時の扱いは正規化処理で決まる。
type RawItem struct {
	GUID           string
	Link           string
	Title          string
	Content        string // 未サニタイズのHTML
	ContentSnippet string // HTMLを除去したプレーンテキスト
	PubDate        *time.Time
	Creator        string // dc:creator
	Author         string
	EnclosureURL   string
	MediaContent   string // media:content の url
	MediaThumbnail string // media:thumbnail の url
}

// BulkItemResult は一括操作における1件ごとの結果。
type BulkItemResult struct {
	ID   string
	Post *Post
	Err  error
}

// OK は操作が成功したかどうかを返す。
func (r BulkItemResult) OK() bool {
	return r.Err == nil
}

// BulkResult は一括操作の結果。1件の失敗で残りの処理は中断しない。
type BulkResult struct {
	Results []BulkItemResult
}

// Succeeded は成功件数を返す。
func (b *BulkResult) Succeeded() int {
	n := 0
	for _, r := range b.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// Failed は失敗件数を返す。
func (b *BulkResult) Failed() int {
	return len(b.Results) - b.Succeeded()
}
