package post

import (
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/feedpress/internal/model"
)

const (
	pointsPerCriterion = 20
	minExcerptRunes    = 50
	minWordCount       = 300
)

var qualityKeywords = []string{"blog", "article", "post"}

// CalculateValidationScore は記事の品質スコア(0〜100)と判定内訳を算出する。
// 各基準を満たすごとに20点が加算される。部分点はない。
// スコアはレビュー担当者への参考値で、モデレーション操作の可否には影響しない。
func CalculateValidationScore(p *model.Post) model.ValidationResult {
	lower := strings.ToLower(p.Content)

	criteria := model.ValidationCriteria{
		HasImage:   strings.TrimSpace(p.ImageURL) != "",
		HasExcerpt: utf8.RuneCountInString(p.Excerpt) > minExcerptRunes,
		HasAuthor:  strings.TrimSpace(p.Author) != "",
		WordCount:  len(strings.Fields(p.Content)),
	}
	for _, kw := range qualityKeywords {
		if strings.Contains(lower, kw) {
			criteria.HasKeywords = true
			break
		}
	}

	score := 0
	for _, ok := range []bool{
		criteria.HasImage,
		criteria.HasExcerpt,
		criteria.HasAuthor,
		criteria.WordCount > minWordCount,
		criteria.HasKeywords,
	} {
		if ok {
			score += pointsPerCriterion
		}
	}

	return model.ValidationResult{Score: score, Criteria: criteria}
}
