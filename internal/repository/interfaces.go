// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/feedpress/internal/model"
)

// PostRepository は記事データの永続化インターフェース。
// 複数プロセスから同時に操作されても、upsertとステータス遷移はid単位で原子的に適用される。
type PostRepository interface {
	// Upsert は記事をidで挿入または更新する。
	// 既存レコードのコンテンツ系フィールドは上書きし、status・rejection_reason・published_atは維持する。
	// 保存後のレコードと、新規挿入だったかどうかを返す。
	Upsert(ctx context.Context, post *model.Post) (*model.Post, bool, error)

	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// FindDisplayableBySlug はslugに一致する表示可能な記事のうち最新のものを取得する。
	// 見つからない場合はnilを返す。
	FindDisplayableBySlug(ctx context.Context, slug string) (*model.Post, error)

	// Transition は現在のステータスがfromの場合に限りtoへ遷移させる。
	// reasonはto=rejectedの場合のみ保存され、それ以外の遷移ではクリアされる。
	// publishedAtがnilでなければpublished_atに記録する。
	// 条件に一致するレコードがない場合はnilを返す。
	Transition(ctx context.Context, id string, from, to model.PostStatus, reason string, publishedAt *time.Time) (*model.Post, error)

	// Delete は指定IDの記事を削除する。存在しないIDでもエラーにしない。
	// 削除されたかどうかを返す。
	Delete(ctx context.Context, id string) (bool, error)

	// List はstatusesに含まれる記事を日付の新しい順に返す。
	// statusesが空の場合は全件を対象とし、limitが0以下の場合は件数を制限しない。
	List(ctx context.Context, statuses []model.PostStatus, limit int) ([]*model.Post, error)
}
