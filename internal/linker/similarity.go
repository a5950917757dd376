package linker

import (
	"math"
	"strings"
	"unicode"
)

// tokenize lowercases text and splits it on non-alphanumeric runs.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// CosineSimilarity compares two texts as term-frequency vectors. Identical
// texts score 1.0; texts with disjoint vocabularies score 0.0.
func CosineSimilarity(a, b string) float64 {
	ta, tb := termFreq(tokenize(a)), termFreq(tokenize(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	var dot, na, nb float64
	for term, fa := range ta {
		if fb, ok := tb[term]; ok {
			dot += float64(fa) * float64(fb)
		}
		na += float64(fa) * float64(fa)
	}
	for _, fb := range tb {
		nb += float64(fb) * float64(fb)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func termFreq(tokens []string) map[string]int {
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	return freq
}
