// Package similarity scores how close two user questions are, so the response
// resolver can decide whether a previously answered question should serve as a
// cache hit for a new one.
//
// The default metric is token-set Jaccard similarity over normalized text:
// word order is deliberately ignored, so "about Isaac tell me" and "tell me
// about Isaac" score 1.0. An alternative Jaro-Winkler scorer is available for
// deployments that prefer a character-level metric.
//
// All scorers are pure and deterministic: no side effects, same inputs, same
// score.
package similarity

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// DefaultThreshold is the similarity score at or above which two questions are
// treated as equivalent. It is a starting default, not a tuned constant;
// deployments override it via configuration.
const DefaultThreshold = 0.7

// Scorer computes a normalized similarity score in [0, 1] for two strings.
// Implementations must be symmetric: Score(a, b) == Score(b, a).
type Scorer interface {
	Score(a, b string) float64
}

// Normalize lowercases s, strips punctuation, and collapses runs of
// whitespace into single spaces. Two questions are an exact match when their
// normalized forms are equal.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true // trims leading whitespace
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Tokens splits a normalized string into its whitespace-delimited tokens.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// JaccardScorer scores two strings by the Jaccard similarity of their
// normalized token sets: |intersection| / |union|. No stemming, no stopword
// removal.
type JaccardScorer struct{}

// Score implements Scorer.
//
// Exact normalized equality is checked as a fast path and returns 1 directly;
// the general token-set computation also returns 1 for identical word sets in
// a different order, which is intended. Either input empty after
// normalization scores 0.
func (JaccardScorer) Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	setA := tokenSet(na)
	setB := tokenSet(nb)

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// tokenSet builds the set of whitespace-delimited tokens of an
// already-normalized string.
func tokenSet(normalized string) map[string]struct{} {
	fields := strings.Fields(normalized)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// JaroWinklerScorer scores two strings with the Jaro-Winkler edit metric over
// their normalized forms. Character-level, so it rewards shared prefixes and
// penalises token reordering more than Jaccard does.
type JaroWinklerScorer struct{}

// Score implements Scorer.
func (JaroWinklerScorer) Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return matchr.JaroWinkler(na, nb, false)
}

// NewScorer returns the Scorer registered under name: "jaccard" (the default
// when name is empty) or "jaro-winkler".
func NewScorer(name string) (Scorer, error) {
	switch name {
	case "", "jaccard":
		return JaccardScorer{}, nil
	case "jaro-winkler":
		return JaroWinklerScorer{}, nil
	default:
		return nil, fmt.Errorf("similarity: unknown scorer %q; valid values: jaccard, jaro-winkler", name)
	}
}
