package domain

import (
	"strings"

	"github.com/xrash/smetrics"
)

const (
	// Score ladder, first hit wins.
	ScoreExact      = 1.0 // haystack contains the query as a whole-word phrase
	ScoreAllTokens  = 0.9 // every token is a substring
	ScoreMostTokens = 0.8 // at least RatioMost of the tokens are substrings
	ScoreSomeTokens = 0.6 // at least RatioSome of the tokens are substrings

	RatioMost = 0.8
	RatioSome = 0.6

	// Fuzzy results live in [ScoreFuzzyFloor, ScoreFuzzyCeiling] so they never
	// outrank a keyword hit.
	ScoreFuzzyFloor   = 0.3
	ScoreFuzzyCeiling = 0.5
)

// Score computes how well item matches query, in [0,1].
func Score(query SearchQuery, item CatalogItem) float64 {
	if query.IsEmpty() {
		return 0.0
	}

	text := item.Text()

	if containsPhrase(text, query.Tokens) {
		return ScoreExact
	}

	found := 0
	for _, tok := range query.Tokens {
		if strings.Contains(text, tok) {
			found++
		}
	}

	ratio := float64(found) / float64(len(query.Tokens))
	switch {
	case ratio >= 1.0:
		return ScoreAllTokens
	case ratio >= RatioMost:
		return ScoreMostTokens
	case ratio >= RatioSome:
		return ScoreSomeTokens
	}

	return fuzzyScore(query.Tokens, text)
}

// containsPhrase reports whether tokens appear in text as a run of whole
// words. "mtg bio" is a phrase of "mtg bio notes" but not of "mtg biology".
func containsPhrase(text string, tokens []string) bool {
	haystack := " " + strings.Join(strings.Fields(text), " ") + " "
	return strings.Contains(haystack, " "+strings.Join(tokens, " ")+" ")
}

// fuzzyScore averages, over tokens, the normalized edit distance to the
// closest word of text. Normalization divides by the token length.
func fuzzyScore(tokens []string, text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0.0
	}

	var sum float64
	for _, tok := range tokens {
		minDist := -1
		for _, w := range words {
			d := smetrics.WagnerFischer(tok, w, 1, 1, 1)
			if minDist < 0 || d < minDist {
				minDist = d
			}
		}
		s := float64(len(tok)-minDist) / float64(len(tok))
		if s > 0 {
			sum += s
		}
	}
	avg := sum / float64(len(tokens))

	if !sharesRune(strings.Join(tokens, ""), text) {
		return avg
	}
	if avg < ScoreFuzzyFloor {
		return ScoreFuzzyFloor
	}
	if avg > ScoreFuzzyCeiling {
		return ScoreFuzzyCeiling
	}
	return avg
}

// sharesRune reports whether a and b have at least one non-space rune in common.
func sharesRune(a, b string) bool {
	for _, r := range a {
		if r != ' ' && strings.ContainsRune(b, r) {
			return true
		}
	}
	return false
}
