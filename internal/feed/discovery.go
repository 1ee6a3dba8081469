package feed

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// linkCandidate はHTMLのheadから検出されたフィードリンク。
type linkCandidate struct {
	URL  string
	Atom bool
}

// isHTML はレスポンスがHTMLページかどうかを判定する。
// Content-Typeが未設定の場合はボディ先頭から推定する。
func isHTML(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType == "text/html" || mediaType == "application/xhtml+xml"
	}
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

// discoverFeedLinks はHTMLのhead内にある <link rel="alternate"> からRSS/Atomリンクを列挙する。
// 相対URLはbaseURLを基準に解決する。
func discoverFeedLinks(body []byte, baseURL string) []linkCandidate {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var candidates []linkCandidate
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return candidates

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return candidates
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) == "body" {
				return candidates
			}
			if string(name) != "link" || !hasAttr {
				continue
			}

			attrs := make(map[string]string, 4)
			for more := true; more; {
				var k, v []byte
				k, v, more = z.TagAttr()
				attrs[strings.ToLower(string(k))] = string(v)
			}

			if !hasToken(attrs["rel"], "alternate") || attrs["href"] == "" {
				continue
			}
			typ := strings.ToLower(attrs["type"])
			if typ != "application/rss+xml" && typ != "application/atom+xml" {
				continue
			}

			ref, err := url.Parse(attrs["href"])
			if err != nil {
				continue
			}
			candidates = append(candidates, linkCandidate{
				URL:  base.ResolveReference(ref).String(),
				Atom: typ == "application/atom+xml",
			})
		}
	}
}

// hasToken はスペース区切りの属性値にtokenが含まれるかを返す。
func hasToken(value, token string) bool {
	for _, f := range strings.Fields(strings.ToLower(value)) {
		if f == token {
			return true
		}
	}
	return false
}

// selectBestLink は候補から取り込むフィードを1件選ぶ。
// 優先順位: 同一ホスト > Atom > 文書内の出現順
func selectBestLink(candidates []linkCandidate, pageURL string) *linkCandidate {
	if len(candidates) == 0 {
		return nil
	}

	pageHost := hostOf(pageURL)
	best, bestScore := 0, -1
	for i, c := range candidates {
		score := 0
		if hostOf(c.URL) == pageHost {
			score += 100
		}
		if c.Atom {
			score += 10
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return &candidates[best]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
