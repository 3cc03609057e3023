package search

import "github.com/hbollon/go-edlib"

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a vocabulary
// substitution.
const fuzzyThreshold = 0.80

// closestVocabTerm finds the vocabulary term most similar to term under
// Jaro-Winkler similarity, returning ok=false if nothing clears
// fuzzyThreshold.
func closestVocabTerm(term string, vocab []string) (string, bool) {
	best := ""
	bestScore := float32(0)
	for _, v := range vocab {
		if v == term {
			return v, true
		}
		score, err := edlib.StringsSimilarity(term, v, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			bestScore = score
			best = v
		}
	}
	if bestScore >= fuzzyThreshold {
		return best, true
	}
	return "", false
}
