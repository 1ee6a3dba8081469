package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FeedSource はスキャン対象のフィードを表す。
type FeedSource struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// feedsFile はFEEDS_FILEのYAML構造。
//
//	feeds:
//	  - name: Go Blog
//	    url: https://go.dev/blog/feed.atom
//	    enabled: true
type feedsFile struct {
	Feeds []struct {
		Name    string `yaml:"name"`
		URL     string `yaml:"url"`
		Enabled *bool  `yaml:"enabled"`
	} `yaml:"feeds"`
}

// LoadFeedSources はYAMLファイルからフィードソース一覧を読み込む。
// enabled が省略されたエントリは有効として扱う。url が空のエントリはエラーとする。
func LoadFeedSources(path string) ([]FeedSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds file %s: %w", path, err)
	}

	var f feedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse feeds file %s: %w", path, err)
	}

	sources := make([]FeedSource, 0, len(f.Feeds))
	for i, entry := range f.Feeds {
		if entry.URL == "" {
			return nil, fmt.Errorf("feeds file %s: entry %d has no url", path, i)
		}
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}
		sources = append(sources, FeedSource{
			Name:    entry.Name,
			URL:     entry.URL,
			Enabled: enabled,
		})
	}
	return sources, nil
}

// MergeFeedSources はファイル由来のソースと環境変数由来のURLを結合する。
// 同一URLは最初の出現のみを残す。
func MergeFeedSources(fromFile []FeedSource, urls []string) []FeedSource {
	seen := make(map[string]bool, len(fromFile)+len(urls))
	merged := make([]FeedSource, 0, len(fromFile)+len(urls))

	for _, s := range fromFile {
		if seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		merged = append(merged, s)
	}
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		merged = append(merged, FeedSource{Name: u, URL: u, Enabled: true})
	}
	return merged
}
