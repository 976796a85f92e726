package scoring

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer strips diacritics so "règlement" and "reglement" tokenize
// identically across language variants of the same instrument.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeText lowercases and removes combining marks before tokenizing.
func normalizeText(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// JaccardSimilarity is the default SimilarityFunc: token-set Jaccard over
// normalized text. It is deliberately simple; callers with an NLP-backed
// similarity capability inject their own function instead.
func JaccardSimilarity(a, b string) float64 {
	wordsA := strings.Fields(normalizeText(a))
	wordsB := strings.Fields(normalizeText(b))

	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0.0
	}

	setA := make(map[string]bool, len(wordsA))
	for _, w := range wordsA {
		setA[w] = true
	}

	intersection := 0
	setB := make(map[string]bool, len(wordsB))
	for _, w := range wordsB {
		if !setB[w] {
			setB[w] = true
			if setA[w] {
				intersection++
			}
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}
