// Package dedup demotes near-duplicate topics from a ranked curated list.
package dedup

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "of": {}, "to": {}, "in": {}, "a": {}, "for": {}, "is": {}, "on": {}, "with": {}, "as": {},
	"by": {}, "at": {}, "from": {}, "that": {}, "this": {}, "it": {}, "an": {}, "be": {}, "or": {}, "are": {}, "was": {},
	"will": {}, "has": {}, "have": {}, "had": {}, "but": {}, "not": {}, "who": {}, "what": {}, "which": {}, "when": {},
	"does": {}, "do": {}, "than": {}, "before": {}, "after": {}, "end": {}, "its": {}, "any": {}, "more": {}, "less": {},
}

// Tokenize reduces text to a normalized term set: lower-cased alphanumeric
// runs, plural suffixes trimmed, stopwords and single characters dropped.
func Tokenize(text string) map[string]struct{} {
	split := func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) }
	words := strings.FieldsFunc(strings.ToLower(text), split)

	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		w = stem(w)
		if len(w) < 2 {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// stem trims common English plural endings.
func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us"):
		return w[:len(w)-1]
	}
	return w
}

// similarity returns the shared term count and Jaccard index of two sets.
func similarity(a, b map[string]struct{}) (int, float64) {
	if len(a) == 0 && len(b) == 0 {
		return 0, 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return shared, float64(shared) / float64(union)
}
