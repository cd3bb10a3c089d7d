package knowledge

import (
	"strings"
	"unicode"
)

// matchThreshold is the overlap ratio a candidate must exceed to count as a
// lookup hit.
const matchThreshold = 0.5

// DefaultStopWords is the fixed set of English filler words removed before
// comparing questions.
var DefaultStopWords = []string{
	"the", "a", "an", "and", "or", "but",
	"in", "on", "at", "to", "for", "of", "with", "by",
}

// Matcher decides whether a customer query matches a stored question.
// Implementations must be deterministic; callers take the first matching
// entry in the store's canonical enumeration order, not the best match.
type Matcher interface {
	Match(query, candidate string) bool
}

// LexicalMatcher matches questions by word-set overlap: both sides are
// lowercased, split into letter/digit runs, stripped of stop words, and
// compared as sets with intersection-over-union.
type LexicalMatcher struct {
	stop map[string]struct{}
}

// NewLexicalMatcher builds a matcher with the given stop-word set.
// Pass nil to use DefaultStopWords.
func NewLexicalMatcher(stopWords []string) *LexicalMatcher {
	if stopWords == nil {
		stopWords = DefaultStopWords
	}
	stop := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &LexicalMatcher{stop: stop}
}

// Match reports whether the overlap ratio between query and candidate
// exceeds the threshold.
func (m *LexicalMatcher) Match(query, candidate string) bool {
	return m.OverlapRatio(query, candidate) > matchThreshold
}

// OverlapRatio returns |intersection| / |union| of the two normalized word
// sets. An empty union (both sides reduce to nothing) yields 0: the ratio is
// undefined there and must never count as a match.
func (m *LexicalMatcher) OverlapRatio(q1, q2 string) float64 {
	w1 := m.tokenSet(q1)
	w2 := m.tokenSet(q2)

	union := len(w2)
	intersection := 0
	for w := range w1 {
		if _, ok := w2[w]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// tokenSet normalizes a question into its comparable word set.
// Punctuation is dropped so "hours?" and "hours" compare equal.
func (m *LexicalMatcher) tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, skip := m.stop[f]; skip {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}
