// Package lexical provides the word-level text handling shared by the TF-IDF
// embedder, the extractive generator and the keyword fallback search.
package lexical

import (
	"math"
	"regexp"
	"strings"
)

var (
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
	stopwords  = buildStopwords()
)

// Words returns the lower-cased words and numbers of text, stopwords included.
func Words(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// Tokens returns the lower-cased words and numbers of text with stopwords removed.
func Tokens(text string) []string {
	raw := Words(text)
	out := raw[:0]
	for _, t := range raw {
		if IsStopword(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TokenSet returns the distinct Tokens of text.
func TokenSet(text string) map[string]struct{} {
	toks := Tokens(text)
	m := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		m[t] = struct{}{}
	}
	return m
}

func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

// Sentences splits text at ., ! and ?. Trailing text without terminal punctuation is
// returned as a final sentence; blank text yields nil.
func Sentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		out = append(out, text[loc[0]:loc[1]])
		last = loc[1]
	}
	if tail := text[last:]; strings.TrimSpace(tail) != "" {
		out = append(out, tail)
	}
	return out
}

// Ochiai is |A∩B| / sqrt(|A||B|) over the token sets of query and text.
func Ochiai(query map[string]struct{}, text string) float64 {
	doc := TokenSet(text)
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	inter := 0
	for t := range doc {
		if _, ok := query[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(query))*float64(len(doc)))
}

func buildStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "how", "why", "when", "where", "do", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
