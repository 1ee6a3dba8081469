package feed

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/hitoshi/feedpress/internal/model"
)

// convertItems はgofeedの記事をフィード内の順序を保ったままmodel.RawItemに変換する。
func convertItems(items []*gofeed.Item) []model.RawItem {
	raws := make([]model.RawItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		raws = append(raws, convertItem(item))
	}
	return raws
}

func convertItem(item *gofeed.Item) model.RawItem {
	raw := model.RawItem{
		GUID:  strings.TrimSpace(item.GUID),
		Link:  strings.TrimSpace(item.Link),
		Title: strings.TrimSpace(item.Title),
	}

	// content:encoded があれば本文、なければdescriptionを本文とする。
	// スニペットは要約(description)を優先してプレーンテキスト化する。
	raw.Content = item.Content
	if raw.Content == "" {
		raw.Content = item.Description
	}
	if item.Description != "" {
		raw.ContentSnippet = plainText(item.Description)
	} else {
		raw.ContentSnippet = plainText(item.Content)
	}

	switch {
	case item.PublishedParsed != nil:
		t := *item.PublishedParsed
		raw.PubDate = &t
	case item.UpdatedParsed != nil:
		t := *item.UpdatedParsed
		raw.PubDate = &t
	}

	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		raw.Creator = strings.TrimSpace(item.DublinCoreExt.Creator[0])
	}
	if item.Author != nil {
		raw.Author = strings.TrimSpace(item.Author.Name)
	}
	if raw.Author == "" {
		for _, a := range item.Authors {
			if a != nil && a.Name != "" {
				raw.Author = strings.TrimSpace(a.Name)
				break
			}
		}
	}

	raw.EnclosureURL = imageEnclosure(item.Enclosures)
	raw.MediaContent = mediaURL(item.Extensions, "content")
	raw.MediaThumbnail = mediaURL(item.Extensions, "thumbnail")
	if raw.MediaThumbnail == "" && item.Image != nil {
		raw.MediaThumbnail = item.Image.URL
	}

	return raw
}

// imageEnclosure は画像として扱えるenclosureのURLを返す。
// 音声・動画のenclosure（ポッドキャスト等）は対象外とし、typeが未指定のものは画像とみなす。
func imageEnclosure(enclosures []*gofeed.Enclosure) string {
	for _, e := range enclosures {
		if e == nil || e.URL == "" {
			continue
		}
		typ := strings.ToLower(e.Type)
		if typ == "" || strings.HasPrefix(typ, "image/") {
			return e.URL
		}
	}
	return ""
}

// mediaURL はMedia RSS拡張（media:content / media:thumbnail）のurl属性を返す。
// media:group 配下の要素も探索する。
func mediaURL(exts ext.Extensions, name string) string {
	media, ok := exts["media"]
	if !ok {
		return ""
	}
	if u := firstURLAttr(media[name], name); u != "" {
		return u
	}
	for _, group := range media["group"] {
		if u := firstURLAttr(group.Children[name], name); u != "" {
			return u
		}
	}
	return ""
}

func firstURLAttr(elems []ext.Extension, name string) string {
	for _, e := range elems {
		// media:content は画像以外（動画等）も取り得るため medium/type で絞り込む
		if name == "content" {
			medium := strings.ToLower(e.Attrs["medium"])
			typ := strings.ToLower(e.Attrs["type"])
			if medium != "" && medium != "image" {
				continue
			}
			if typ != "" && !strings.HasPrefix(typ, "image/") {
				continue
			}
		}
		if u := strings.TrimSpace(e.Attrs["url"]); u != "" {
			return u
		}
	}
	return ""
}

// plainText はHTML断片からタグを除去し、空白を1つにまとめたテキストを返す。
func plainText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
