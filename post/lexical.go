package post

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/docsage/ragpipe/schema"
)

const (
	attentionQueryWeight   = 2.0
	attentionHistoryWeight = 0.5
	attentionMix           = 0.3
	similarityMix          = 0.7
)

// LexicalReranker scores candidates without any model call. It blends a
// term-attention signal (how much of each passage is spent on query and
// history terms) with an IDF-weighted similarity computed over the candidate
// set itself, so terms common to every candidate stop discriminating.
type LexicalReranker struct{}

func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

func (r *LexicalReranker) Rerank(_ context.Context, query string, in []schema.SearchResult, history []schema.Exchange, topK int) []schema.SearchResult {
	if len(in) == 0 {
		return in
	}

	queryTerms := termSet(tokenize(query))
	historyTerms := make(map[string]struct{})
	for _, ex := range history {
		for t := range termSet(tokenize(ex.Render())) {
			historyTerms[t] = struct{}{}
		}
	}

	docTokens := make([][]string, len(in))
	docTerms := make([]map[string]struct{}, len(in))
	for i, res := range in {
		docTokens[i] = tokenize(res.Document.Content)
		docTerms[i] = termSet(docTokens[i])
	}

	idf := inverseDocFreq(docTerms)

	attention := make([]float64, len(in))
	similarity := make([]float64, len(in))
	for i := range in {
		attention[i] = attentionScore(docTokens[i], queryTerms, historyTerms)
		similarity[i] = idfSimilarity(queryTerms, docTerms[i], idf)
	}
	normalize(attention)
	normalize(similarity)

	out := make([]schema.SearchResult, len(in))
	copy(out, in)
	scores := make([]float64, len(in))
	for i := range out {
		scores[i] = attentionMix*attention[i] + similarityMix*similarity[i]
		out[i].Score = scores[i]
	}

	// Stable: equally scored candidates keep their retrieval order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return capTopK(out, topK)
}

func attentionScore(tokens []string, queryTerms, historyTerms map[string]struct{}) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var queryHits, historyHits float64
	for _, t := range tokens {
		if _, ok := queryTerms[t]; ok {
			queryHits++
		}
		if _, ok := historyTerms[t]; ok {
			historyHits++
		}
	}
	return (attentionQueryWeight*queryHits + attentionHistoryWeight*historyHits) / float64(len(tokens))
}

func idfSimilarity(queryTerms map[string]struct{}, doc map[string]struct{}, idf map[string]float64) float64 {
	var sum float64
	for t := range queryTerms {
		if _, ok := doc[t]; ok {
			sum += idf[t]
		}
	}
	return sum
}

// inverseDocFreq computes IDF for every term over the candidate set.
func inverseDocFreq(docs []map[string]struct{}) map[string]float64 {
	df := make(map[string]int)
	for _, doc := range docs {
		for t := range doc {
			df[t]++
		}
	}
	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for t, count := range df {
		idf[t] = math.Log(1 + n/float64(count))
	}
	return idf
}

func normalize(scores []float64) {
	var max float64
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	if max == 0 {
		return
	}
	for i := range scores {
		scores[i] /= max
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func termSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
