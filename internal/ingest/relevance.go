package ingest

import "strings"

// RelevanceFilter admits articles whose title, description or content
// mentions at least one keyword. Matching is a case-insensitive substring
// test. A filter without keywords admits everything.
type RelevanceFilter struct {
	keywords []string
}

func NewRelevanceFilter(keywords []string) *RelevanceFilter {
	normalized := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		if key := strings.ToLower(strings.TrimSpace(keyword)); key != "" {
			normalized = append(normalized, key)
		}
	}
	return &RelevanceFilter{keywords: normalized}
}

// Match returns the first keyword found in texts.
func (f *RelevanceFilter) Match(texts ...string) (string, bool) {
	if f == nil || len(f.keywords) == 0 {
		return "", true
	}
	haystack := strings.ToLower(strings.Join(texts, " "))
	for _, keyword := range f.keywords {
		if strings.Contains(haystack, keyword) {
			return keyword, true
		}
	}
	return "", false
}
