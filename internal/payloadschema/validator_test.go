package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateRawArticlePayload_Valid(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`{
		"api_source":"newsapi",
		"source_name":"Reuters",
		"title":"Solar output hits record",
		"description":null,
		"content":"Grid operators reported ... [+1200 chars]",
		"url":"https://example.com/solar",
		"published_at":"2026-10-01T08:30:00Z",
		"extra":{"kept":true}
	}`)

	article, err := ValidateRawArticlePayload(payload)
	if err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}
	if article.APISource != "newsapi" || article.Title != "Solar output hits record" {
		t.Fatalf("unexpected article: %+v", article)
	}
	if published := article.PublishedTime(); published == nil || published.Year() != 2026 {
		t.Fatalf("unexpected published time: %v", published)
	}
	if article.Description != nil {
		t.Fatalf("expected null description to decode as nil")
	}
}

func TestValidateRawArticlePayload_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "empty", payload: ``, want: "payload is empty"},
		{name: "trailing", payload: `{"api_source":"a","title":"t"} {}`, want: "trailing content"},
		{name: "missing title", payload: `{"api_source":"a"}`, want: "schema validation failed"},
		{name: "whitespace title", payload: `{"api_source":"a","title":"   "}`, want: "title must not be empty"},
		{name: "bad url", payload: `{"api_source":"a","title":"t","url":"not a url"}`, want: "url"},
		{name: "ftp url", payload: `{"api_source":"a","title":"t","url":"ftp://example.com/x"}`, want: "http or https"},
		{name: "bad date", payload: `{"api_source":"a","title":"t","published_at":"yesterday"}`, want: "published_at"},
	}
	for _, tc := range tests {
		_, err := ValidateRawArticlePayload(json.RawMessage(tc.payload))
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: unexpected error: got %q want substring %q", tc.name, err.Error(), tc.want)
		}
	}
}
