// Package normalize canonicalizes raw organization names into the
// comparable form the blocking index and scorer operate on.
package normalize

import (
	"html"
	"strings"
	"unicode"
)

// stopWords are articles, prepositions and conjunctions in the
// languages the registry's names commonly appear in. Only truly
// meaningless words belong here.
var stopWords = map[string]struct{}{
	"the": {}, "of": {}, "for": {}, "and": {}, "in": {}, "to": {},
	"a": {}, "an": {}, "at": {}, "on": {}, "&": {},
	"de": {}, "del": {}, "y": {}, "et": {},
	"la": {}, "le": {}, "les": {}, "el": {}, "los": {}, "las": {},
}

// countrySuffixes are trailing country or region qualifiers stripped
// once from the end of a normalized name. Longer suffixes are listed
// first so "south sudan" wins over "sudan".
var countrySuffixes = []string{
	"south sudan",
	"international",
	"afghanistan",
	"pakistan",
	"colombia",
	"ethiopia",
	"somalia",
	"lebanon",
	"myanmar",
	"nigeria",
	"jordan",
	"yemen",
	"syria",
	"sudan",
	"iraq",
	"uk",
	"usa",
}

// Name canonicalizes a raw organization name. The result is a pure
// function of the input: HTML entities decoded, lowercased, punctuation
// replaced with spaces, whitespace collapsed, stop words removed, and a
// single trailing country suffix stripped.
func Name(raw string) string {
	if raw == "" {
		return ""
	}

	s := html.UnescapeString(raw)
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)

	words := make([]string, 0, 8)
	for _, w := range strings.Fields(s) {
		if _, skip := stopWords[w]; skip {
			continue
		}
		words = append(words, w)
	}
	s = strings.Join(words, " ")

	for _, suffix := range countrySuffixes {
		if strings.HasSuffix(s, " "+suffix) {
			s = strings.TrimSpace(s[:len(s)-len(suffix)-1])
			break
		}
	}

	return s
}

// Tokens returns the token set of a normalized name
func Tokens(normalized string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, t := range strings.Fields(normalized) {
		tokens[t] = struct{}{}
	}
	return tokens
}

// Acronym canonicalizes an acronym for exact comparison
func Acronym(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Jaccard returns the token-set Jaccard similarity in [0,1]
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}

	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
