// Package textnorm cleans raw article text before it is stored.
package textnorm

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NewsAPI style "[+1234 chars]" suffix on clipped content.
var truncationMarker = regexp.MustCompile(`\s*\[\+\d+\s+chars\]\s*$`)

// StripHTML returns the visible text of an HTML fragment. Input without
// markup is returned trimmed.
func StripHTML(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !strings.ContainsAny(trimmed, "<&") {
		return trimmed
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return trimmed
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("br, p, div, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return strings.TrimSpace(doc.Text())
}

// CollapseWhitespace joins all runs of whitespace into single spaces.
func CollapseWhitespace(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

func StripTruncationMarker(raw string) string {
	return strings.TrimSpace(truncationMarker.ReplaceAllString(raw, ""))
}

// Clean is the full pipeline applied to titles, descriptions and content.
func Clean(raw string) string {
	return CollapseWhitespace(StripTruncationMarker(StripHTML(raw)))
}

// CleanParagraphs normalizes line endings and whitespace but keeps
// paragraph breaks as blank lines.
func CleanParagraphs(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := CollapseWhitespace(line)
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}
	return strings.Join(paragraphs, "\n\n")
}

// Truncate clips text to maxChars runes, ending with an ellipsis rune when
// clipped.
func Truncate(raw string, maxChars int) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || maxChars <= 0 {
		return trimmed, false
	}

	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed, false
	}
	if maxChars == 1 {
		return "…", true
	}

	clipped := strings.TrimSpace(string(runes[:maxChars-1]))
	return clipped + "…", true
}
