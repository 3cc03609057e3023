// Package search implements the code search service: search_code and
// find_similar_code as a candidate -> filter -> rank -> label pipeline,
// with the hybrid re-ranker's local lexical index built fresh per query
// using github.com/surgebase/porter2 stemming and
// github.com/hbollon/go-edlib fuzzy term matching.
package search

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/semcode/internal/analysis"
	"github.com/standardbeagle/semcode/internal/config"
	"github.com/standardbeagle/semcode/internal/degradation"
	"github.com/standardbeagle/semcode/internal/embedding"
	"github.com/standardbeagle/semcode/internal/errs"
	"github.com/standardbeagle/semcode/internal/store"
	"github.com/standardbeagle/semcode/internal/types"
)

// Mode enumerates search_code's search_mode parameter.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeKeyword  Mode = "keyword"
	ModeHybrid   Mode = "hybrid"
)

// Options is search_code/find_similar_code's parameter set.
type Options struct {
	ProjectName           string
	Limit                 int
	FilePattern           string
	Language              string
	SearchMode            Mode
	MinComplexity         *int
	MaxComplexity         *int
	HasDuplicates         *bool
	LongFunctions         *bool
	MaintainabilityMin    *float64
	IncludeQualityMetrics bool
	Pattern               string
	PatternMode           string
}

// Result is one ranked candidate in a SearchResponse.
type Result struct {
	FilePath              string
	StartLine, EndLine    int
	UnitName              string
	UnitType              string
	Language              string
	Content               string
	Score                 float64
	Importance            float64
	RelevanceLabel        string
	Quality               *analysis.QualityMetrics
	PatternMatched        bool
	PatternMatchCount     int
	PatternMatchLocations []PatternLocation
}

// Response is search_code/find_similar_code's return envelope.
type Response struct {
	Query           string
	SearchMode      Mode
	Results         []Result
	Quality         string // "poor" only for the empty-query short-circuit
	Interpretation  string
	Hint            string
	Degraded        bool
	DegradedReason  string
}

// Service implements code search against a Store, an embedding
// Generator/Cache, and the analyzer weights/thresholds from config.
type Service struct {
	Store      store.Store
	Generator  *embedding.Generator
	Cache      *embedding.Cache
	Weights    config.Weights
	Thresholds config.Thresholds
	Search     config.Search
}

// New builds a Service wired to already-constructed components.
func New(st store.Store, gen *embedding.Generator, cache *embedding.Cache, cfg *config.Config) *Service {
	return &Service{
		Store:      st,
		Generator:  gen,
		Cache:      cache,
		Weights:    cfg.Weights,
		Thresholds: cfg.Thresholds,
		Search:     cfg.Search,
	}
}

var storeTimeout = 30 * time.Second

// textRetriever is satisfied by backends (the keyword store) that expose a
// native full-text query entry point distinct from the generic embedding-
// keyed Retrieve.
type textRetriever interface {
	RetrieveText(ctx context.Context, queryText string, filter *types.MetadataFilter, limit int) ([]store.Scored, error)
}

// SearchCode implements search_code.
func (s *Service) SearchCode(ctx context.Context, query string, opts Options) (*Response, error) {
	return s.search(ctx, query, opts, codeRelevanceLabel)
}

// FindSimilarCode implements find_similar_code: same pipeline, snippet as
// query, confidence labels tuned for code-to-code comparison.
func (s *Service) FindSimilarCode(ctx context.Context, snippet string, opts Options) (*Response, error) {
	return s.search(ctx, snippet, opts, similarityRelevanceLabel)
}

func codeRelevanceLabel(score float64) string {
	switch {
	case score > 0.8:
		return "excellent"
	case score >= 0.6:
		return "good"
	default:
		return "weak"
	}
}

func similarityRelevanceLabel(score float64) string {
	switch {
	case score >= 0.95:
		return "near-duplicate"
	case score >= 0.80:
		return "similar"
	default:
		return "related"
	}
}

func (s *Service) search(ctx context.Context, query string, opts Options, label func(float64) string) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return &Response{Query: query, SearchMode: opts.SearchMode, Quality: "poor", Hint: "provide a non-empty query describing the code you're looking for"}, nil
	}

	mode := opts.SearchMode
	if mode == "" {
		mode = ModeSemantic
	}
	if mode != ModeSemantic && mode != ModeKeyword && mode != ModeHybrid {
		return nil, errs.NewValidationError("search_mode", fmt.Sprintf("unknown search mode %q", mode))
	}

	patternMode := opts.PatternMode
	if opts.Pattern != "" && patternMode == "" {
		patternMode = "filter"
	}
	if opts.Pattern != "" && patternMode != "filter" && patternMode != "boost" && patternMode != "require" {
		return nil, errs.NewValidationError("pattern_mode", fmt.Sprintf("unknown pattern_mode %q", patternMode))
	}
	var patternRe *regexp.Regexp
	if opts.Pattern != "" {
		re, err := resolvePattern(opts.Pattern)
		if err != nil {
			return nil, err
		}
		patternRe = re
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.Search.DefaultLimit
	}

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	qv, err := s.Cache.GetOrGenerate(query, s.Generator.Model(), s.Generator.Generate)
	if err != nil {
		return nil, errs.NewEmbeddingError("query embedding failed", err)
	}

	filter := &types.MetadataFilter{Scope: types.ScopeProject, ProjectName: opts.ProjectName, Category: types.CategoryCode}

	candidateLimit := limit
	if mode == ModeHybrid {
		candidateLimit = maxInt(s.Search.MaxCandidateMultiplier*limit, s.Search.MinCandidatePool)
	}

	scored, degraded, degradedReason, err := s.retrieve(sctx, mode, query, qv, filter, candidateLimit)
	if err != nil {
		if sctx.Err() != nil {
			return nil, errs.NewRetrievalTimeoutError(query)
		}
		return nil, errs.NewRetrievalError(query, err)
	}
	effectiveMode := mode

	if mode == ModeHybrid {
		rescored, hybridDegraded := s.hybridRerank(query, scored)
		scored = rescored
		if hybridDegraded {
			degraded = true
			degradedReason = "local lexical index unavailable; degraded to semantic ranking"
			effectiveMode = ModeSemantic
		}
	}

	type candidate struct {
		memory *types.Memory
		score  float64
	}
	var candidates []candidate
	seen := make(map[string]bool)
	for _, sc := range scored {
		m := sc.Memory
		if opts.FilePattern != "" && !strings.Contains(metaString(m, "file_path"), opts.FilePattern) {
			continue
		}
		if opts.Language != "" && !strings.EqualFold(metaString(m, "language"), opts.Language) {
			continue
		}
		key := fmt.Sprintf("%s\x00%d\x00%s", metaString(m, "file_path"), metaInt(m, "start_line"), metaString(m, "unit_name"))
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, candidate{memory: m, score: sc.Score})
	}

	dupCounts := countDuplicateContent(candidates)

	var results []Result
	for _, c := range candidates {
		m := c.memory
		r := Result{
			FilePath:       metaString(m, "file_path"),
			StartLine:      metaInt(m, "start_line"),
			EndLine:        metaInt(m, "end_line"),
			UnitName:       metaString(m, "unit_name"),
			UnitType:       metaString(m, "unit_type"),
			Language:       metaString(m, "language"),
			Content:        m.Content,
			Score:          c.score,
			Importance:     m.Importance,
			RelevanceLabel: label(c.score),
		}

		var quality analysis.QualityMetrics
		if opts.IncludeQualityMetrics || opts.MinComplexity != nil || opts.MaxComplexity != nil || opts.MaintainabilityMin != nil || opts.LongFunctions != nil || opts.HasDuplicates != nil {
			unit := unitFromMemory(m)
			dupScore := 0.0
			if dupCounts[contentKey(m.Content)] > 1 {
				dupScore = 1.0
			}
			quality = analysis.ComputeQuality(unit, dupScore)

			if opts.MinComplexity != nil && quality.Cyclomatic < *opts.MinComplexity {
				continue
			}
			if opts.MaxComplexity != nil && quality.Cyclomatic > *opts.MaxComplexity {
				continue
			}
			if opts.MaintainabilityMin != nil && quality.MaintainabilityIndex < *opts.MaintainabilityMin {
				continue
			}
			if opts.LongFunctions != nil {
				isLong := (r.EndLine - r.StartLine + 1) > s.Thresholds.LongFunctionLines
				if *opts.LongFunctions != isLong {
					continue
				}
			}
			if opts.HasDuplicates != nil && (dupScore > 0) != *opts.HasDuplicates {
				continue
			}
			if opts.IncludeQualityMetrics {
				q := quality
				r.Quality = &q
			}
		}

		if patternRe != nil {
			locs := matchPattern(patternRe, r.Content)
			r.PatternMatched = len(locs) > 0
			r.PatternMatchCount = len(locs)
			r.PatternMatchLocations = locs
			if (patternMode == "filter" || patternMode == "require") && !r.PatternMatched {
				continue
			}
		}

		results = append(results, r)
	}

	if patternMode == "boost" {
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].PatternMatched != results[j].PatternMatched {
				return results[i].PatternMatched
			}
			return results[i].Score > results[j].Score
		})
	} else {
		sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	}

	if len(results) > limit {
		results = results[:limit]
	}

	return &Response{
		Query:          query,
		SearchMode:     effectiveMode,
		Results:        results,
		Interpretation: interpretation(query, results),
		Degraded:       degraded,
		DegradedReason: degradedReason,
	}, nil
}

func (s *Service) retrieve(ctx context.Context, mode Mode, query string, qv []float32, filter *types.MetadataFilter, limit int) (scored []store.Scored, degraded bool, reason string, err error) {
	switch mode {
	case ModeKeyword:
		if rt, ok := s.Store.(textRetriever); ok {
			scored, err = rt.RetrieveText(ctx, query, filter, limit)
			return scored, false, "", err
		}
		scored, err = s.Store.Retrieve(ctx, qv, filter, limit)
		degradation.Global().AddWarning("search_service", "keyword mode requested but backend lacks a native full-text index", "switch to a keyword-capable backend", "results are ranked semantically instead of by keyword relevance")
		return scored, true, "backend has no native keyword index; degraded to semantic retrieval", err
	default:
		scored, err = s.Store.Retrieve(ctx, qv, filter, limit)
		return scored, false, "", err
	}
}

// hybridRerank builds a fresh BM25 index over the candidate set and combines
// it with each candidate's vector score via the configured hybrid alpha.
// With fewer than two candidates it returns scored unchanged. The lexical
// index is built in-process, so the second result (hybridDegraded) is
// always false here.
func (s *Service) hybridRerank(query string, scored []store.Scored) ([]store.Scored, bool) {
	if len(scored) < 2 {
		return scored, false
	}

	docs := make([]string, len(scored))
	for i, sc := range scored {
		docs[i] = sc.Memory.Content
	}
	idx := newBM25Index(docs)

	vocab := make([]string, 0, len(idx.df))
	for t := range idx.df {
		vocab = append(vocab, t)
	}
	queryTokens := tokenizeStem(query)

	lexScores := make([]float64, len(scored))
	vecScores := make([]float64, len(scored))
	for i := range scored {
		lexScores[i] = idx.score(queryTokens, i, vocab)
		vecScores[i] = scored[i].Score
	}
	lexNorm := normalizeScores(lexScores)
	vecNorm := normalizeScores(vecScores)

	alpha := s.Weights.HybridSearchAlpha
	if alpha == 0 {
		alpha = 0.6
	}
	out := make([]store.Scored, len(scored))
	for i := range scored {
		out[i] = store.Scored{Memory: scored[i].Memory, Score: alpha*vecNorm[i] + (1-alpha)*lexNorm[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, false
}

func interpretation(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("no matches found for %q", query)
	}
	tokens := tokenizeStem(query)
	matched := make(map[string]bool)
	for _, r := range results {
		lowerContent := strings.ToLower(r.Content)
		for _, t := range tokens {
			if t != "" && strings.Contains(lowerContent, t) {
				matched[t] = true
			}
		}
	}
	var keywords []string
	for t := range matched {
		keywords = append(keywords, t)
	}
	sort.Strings(keywords)
	if len(keywords) == 0 {
		return fmt.Sprintf("found %d result(s) for %q", len(results), query)
	}
	return fmt.Sprintf("found %d result(s) for %q, matching: %s", len(results), query, strings.Join(keywords, ", "))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func metaString(m *types.Memory, key string) string {
	if m == nil || m.Metadata == nil {
		return ""
	}
	if v, ok := m.Metadata[key].(string); ok {
		return v
	}
	return ""
}

func metaInt(m *types.Memory, key string) int {
	if m == nil || m.Metadata == nil {
		return 0
	}
	switch v := m.Metadata[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func unitFromMemory(m *types.Memory) types.Unit {
	return types.Unit{
		UnitType:   types.UnitType(metaString(m, "unit_type")),
		Name:       metaString(m, "unit_name"),
		Signature:  metaString(m, "signature"),
		Content:    m.Content,
		Language:   metaString(m, "language"),
		FilePath:   metaString(m, "file_path"),
		StartLine:  metaInt(m, "start_line"),
		EndLine:    metaInt(m, "end_line"),
		ParentName: metaString(m, "parent_name"),
	}
}

func contentKey(content string) uint64 {
	return xxhash.Sum64String(strings.Join(strings.Fields(content), " "))
}

func countDuplicateContent(candidates []struct {
	memory *types.Memory
	score  float64
}) map[uint64]int {
	counts := make(map[uint64]int, len(candidates))
	for _, c := range candidates {
		counts[contentKey(c.memory.Content)]++
	}
	return counts
}
