package search

import (
	"math"
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
)

// tokenizeStem splits text into lowercase word tokens and stems each one
// with Porter2 so query and document terms compare in normalized form.
func tokenizeStem(text string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		w := strings.ToLower(b.String())
		if len(w) >= 3 {
			w = porter2.Stem(w)
		}
		tokens = append(tokens, w)
		b.Reset()
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// bm25Index is a tiny in-memory BM25 ranker built fresh over a single
// search's candidate set. Not persisted; rebuilt per query.
type bm25Index struct {
	docs    [][]string
	docLens []int
	avgLen  float64
	df      map[string]int
}

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

func newBM25Index(docs []string) *bm25Index {
	idx := &bm25Index{df: make(map[string]int)}
	var total int
	for _, d := range docs {
		toks := tokenizeStem(d)
		idx.docs = append(idx.docs, toks)
		idx.docLens = append(idx.docLens, len(toks))
		total += len(toks)

		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			if !seen[t] {
				idx.df[t]++
				seen[t] = true
			}
		}
	}
	if len(docs) > 0 {
		idx.avgLen = float64(total) / float64(len(docs))
	}
	return idx
}

// score returns the BM25 score of queryTokens against document i. A query
// term absent from the candidate vocabulary is fuzzy-matched against the
// closest vocabulary term (typo tolerance) rather than dropped silently.
func (idx *bm25Index) score(queryTokens []string, doc int, vocab []string) float64 {
	n := len(idx.docs)
	if n == 0 {
		return 0
	}
	docTF := make(map[string]int, len(idx.docs[doc]))
	for _, t := range idx.docs[doc] {
		docTF[t]++
	}

	var score float64
	for _, qt := range queryTokens {
		term := qt
		if idx.df[term] == 0 {
			if match, ok := closestVocabTerm(qt, vocab); ok {
				term = match
			}
		}
		df := idx.df[term]
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
		tf := float64(docTF[term])
		denom := tf + bm25K1*(1-bm25B+bm25B*float64(idx.docLens[doc])/maxFloat(idx.avgLen, 1))
		if denom == 0 {
			continue
		}
		score += idf * (tf * (bm25K1 + 1)) / denom
	}
	return score
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func normalizeScores(scores []float64) []float64 {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max <= 0 {
		return out
	}
	for i, s := range scores {
		out[i] = s / max
	}
	return out
}
