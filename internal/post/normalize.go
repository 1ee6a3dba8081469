// Package post は記事の正規化・品質スコア算出・モデレーション・公開一覧を提供する。
package post

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/feedpress/internal/model"
)

const (
	untitled        = "Untitled"
	unknownAuthor   = "Unknown"
	excerptMaxRunes = 150
)

// Normalizer はフィード記事(RawItem)を正規化済みのPostに変換する。
// 現在時刻とランダムIDの生成元を差し替えられる点を除き、純粋な変換である。
type Normalizer struct {
	now   func() time.Time
	newID func() string
}

// NewNormalizer はNormalizerを生成する。
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now, newID: uuid.NewString}
}

// Normalize はRawItemをstatus=pendingのPostに変換する。
// guidとlinkの両方がない記事にはランダムIDを割り当て、randomIDにtrueを返す。
// そのような記事は再取り込みのたびに別記事として扱われ、重複排除されない。
func (n *Normalizer) Normalize(raw model.RawItem, source string) (p *model.Post, randomID bool) {
	id := firstNonEmpty(raw.GUID, raw.Link)
	if id == "" {
		id = n.newID()
		randomID = true
	}

	content := firstNonEmpty(raw.Content, raw.ContentSnippet)

	excerpt := raw.ContentSnippet
	if excerpt == "" {
		excerpt = truncateRunes(content, excerptMaxRunes)
	}

	date := n.now()
	if raw.PubDate != nil {
		date = *raw.PubDate
	}

	slug := raw.GUID
	if slug == "" {
		slug = lastPathSegment(raw.Link)
	}
	if slug == "" {
		slug = id
	}

	return &model.Post{
		ID:       id,
		Title:    firstNonEmpty(raw.Title, untitled),
		Content:  content,
		Excerpt:  excerpt,
		Date:     date,
		Author:   firstNonEmpty(raw.Creator, raw.Author, unknownAuthor),
		Slug:     slug,
		ImageURL: firstNonEmpty(raw.EnclosureURL, raw.MediaContent, raw.MediaThumbnail),
		Source:   source,
		Status:   model.PostStatusPending,
	}, randomID
}

// lastPathSegment はURLのパスの最後のセグメントを返す。クエリとフラグメントは含めない。
// 末尾がスラッシュの場合やパスがない場合は空文字列を返す。
func lastPathSegment(link string) string {
	if link == "" {
		return ""
	}
	path := link
	if u, err := url.Parse(link); err == nil {
		path = u.Path
	}
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	return path
}

// truncateRunes はsの先頭max文字（rune単位）を返す。
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
