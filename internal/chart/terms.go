// Package chart builds renderer-agnostic chart payloads from report text.
package chart

import (
	"sort"
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`the a an and or but of to in on for with at by from as is are was were
		be been being that this it its if into than then so such their there they them we you your our i`) {
		stopWords[w] = struct{}{}
	}
}

// TermCount is a term and its frequency.
type TermCount struct {
	Term  string
	Count int
}

// Tokenize lowercases text, treats everything except ASCII letters, digits and
// whitespace as a separator, and splits on whitespace.
func Tokenize(text string) []string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case unicode.IsSpace(r):
			return r
		default:
			return ' '
		}
	}, strings.ToLower(text))
	return strings.Fields(mapped)
}

// IsStopWord reports whether w is excluded from term counts.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// TopTerms returns the n most frequent non-stop-word tokens longer than two characters.
// Ties keep first-seen order.
func TopTerms(text string, n int) []TermCount {
	index := map[string]int{}
	var counts []TermCount
	for _, tok := range Tokenize(text) {
		if len(tok) <= 2 || IsStopWord(tok) {
			continue
		}
		if i, ok := index[tok]; ok {
			counts[i].Count++
			continue
		}
		index[tok] = len(counts)
		counts = append(counts, TermCount{Term: tok, Count: 1})
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	if n >= 0 && n < len(counts) {
		counts = counts[:n]
	}
	return counts
}
