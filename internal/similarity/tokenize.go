package similarity

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// englishStopwords is the classic English analyzer stop set.
var englishStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "such": {}, "that": {}, "the": {}, "their": {}, "then": {}, "there": {},
	"these": {}, "they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

var possessiveSuffix = regexp.MustCompile(`(\pL)['’]s\b`)

// Tokenize lowercases text, drops possessives and punctuation, removes
// stopwords and stems what is left with the English Snowball stemmer.
func Tokenize(text string) []string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return nil
	}

	lowered = possessiveSuffix.ReplaceAllString(lowered, "$1")
	lowered = strings.NewReplacer("'", "", "’", "").Replace(lowered)

	parts := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if _, stop := englishStopwords[part]; stop {
			continue
		}
		stem := english.Stem(part, false)
		if stem == "" {
			continue
		}
		tokens = append(tokens, stem)
	}
	return tokens
}

// IsStopword reports whether token is removed by Tokenize before stemming.
func IsStopword(token string) bool {
	_, ok := englishStopwords[strings.ToLower(strings.TrimSpace(token))]
	return ok
}
