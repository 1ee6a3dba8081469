package post

import (
	"github.com/samber/lo"

	"github.com/hitoshi/feedpress/internal/model"
)

// DefaultPageSize は公開一覧の1ページあたりの記事数。
const DefaultPageSize = 7

// Page は公開一覧の1ページ分。
type Page struct {
	Posts      []*model.Post
	Page       int
	PageSize   int
	TotalPages int
	TotalCount int
}

// Paginate は表示可能な記事(approved/published)だけを対象に、指定ページの記事を返す。
//
// 範囲外のページ番号は[1, TotalPages]に丸める。表示可能な記事が0件の場合は
// TotalPages=0のページ1を空のスライスで返す。pageSizeが0以下の場合はDefaultPageSizeを使う。
// postsの順序はそのまま維持される。
func Paginate(posts []*model.Post, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	displayable := lo.Filter(posts, func(p *model.Post, _ int) bool {
		return p != nil && p.Status.Displayable()
	})

	total := len(displayable)
	totalPages := (total + pageSize - 1) / pageSize

	page = max(page, 1)
	if totalPages > 0 {
		page = min(page, totalPages)
	} else {
		page = 1
	}

	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	return Page{
		Posts:      displayable[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		TotalCount: total,
	}
}
