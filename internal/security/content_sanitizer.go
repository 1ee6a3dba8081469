package security

import "github.com/microcosm-cc/bluemonday"

// Sanitizer は取り込んだ記事本文のHTMLを保存前に無害化する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// ContentSanitizer はbluemondayの許可リストポリシーによるSanitizerの実装。
// ポリシーは生成後に変更しないため、複数goroutineから同時に使用できる。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はブログ記事表示向けのポリシーでContentSanitizerを生成する。
//
// ポリシーの内容:
//   - 段落・見出し(h2〜h6)・リスト・引用・コード・強調・図版(figure, figcaption)を許可
//   - script, iframe, style, form等は許可リストに含めないため除去
//   - on*イベント属性は除去
//   - a, img: URLはhttpまたはhttpsの絶対URLのみ（javascript:, data: 等は除去）
//   - a: target="_blank"とrel="noopener noreferrer"を付与
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr", "ul", "ol", "li",
		"h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i",
		"figure", "figcaption",
	)

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("http", "https")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt", "title").OnElements("img")

	return &ContentSanitizer{policy: p}
}

// Sanitize はHTMLを無害化して返す。同一入力に対して常に同一出力を返す。
func (s *ContentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
