package tokenizer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"textdedup/internal/domain"
)

// DefaultMinLength is the shortest token that survives normalization.
const DefaultMinLength = 3

// Tokenizer lower-cases text, extracts letter/digit runs and drops stop
// words and short tokens.
type Tokenizer struct {
	minLength    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// New creates a tokenizer. A nil stopWords slice selects DefaultStopWords;
// an empty non-nil slice disables stop-word filtering.
func New(minLength int, stopWords []string) *Tokenizer {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if stopWords == nil {
		stopWords = DefaultStopWords()
	}
	sw := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		sw[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Tokenizer{
		minLength:    minLength,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+`),
		stopwords:    sw,
	}
}

// Tokenize returns the unique surviving tokens in first-seen order.
// Empty or whitespace-only text yields an empty TokenSet.
func (t *Tokenizer) Tokenize(text string) domain.TokenSet {
	raw := t.tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(raw) == 0 {
		return domain.TokenSet{}
	}
	seen := make(map[string]struct{}, len(raw))
	var set domain.TokenSet
	for _, tok := range raw {
		if utf8.RuneCountInString(tok) < t.minLength {
			continue
		}
		if _, isStop := t.stopwords[tok]; isStop {
			continue
		}
		set.Count++
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		set.Tokens = append(set.Tokens, tok)
	}
	return set
}

// DefaultStopWords returns the built-in English stop list.
func DefaultStopWords() []string {
	return []string{
		"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
		"of", "with", "by", "is", "are", "was", "were", "be", "been", "being",
		"have", "has", "had", "do", "does", "did", "will", "would", "could",
		"should", "may", "might", "can", "this", "that", "these", "those",
	}
}
