package config

import (
	"fmt"
	"math"

	"github.com/standardbeagle/semcode/internal/errs"
)

// Validator validates configuration and rejects out-of-range or
// cross-field-inconsistent values: a project-root check plus one method
// each for the Index, Weights and Embedding sections. It only checks; it
// applies no defaults.
type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

// Validate checks the full configuration.
func (v *Validator) Validate(cfg *Config) error {
	if cfg.Project.Root == "" {
		return errs.NewConfigError("project", "root", fmt.Errorf("project root cannot be empty"))
	}
	if err := v.validateIndex(&cfg.Index); err != nil {
		return errs.NewConfigError("index", "", err)
	}
	if err := v.validateWeights(&cfg.Weights); err != nil {
		return errs.NewConfigError("weights", "", err)
	}
	if err := v.validateEmbedding(&cfg.Embedding); err != nil {
		return errs.NewConfigError("embedding", "", err)
	}
	return nil
}

func (v *Validator) validateIndex(idx *Index) error {
	if idx.MaxFileSize <= 0 {
		return fmt.Errorf("MaxFileSize must be positive, got %d", idx.MaxFileSize)
	}
	if idx.MaxFileCount <= 0 {
		return fmt.Errorf("MaxFileCount must be positive, got %d", idx.MaxFileCount)
	}
	return nil
}

func (v *Validator) validateEmbedding(e *Embedding) error {
	if e.Dimension <= 0 {
		return fmt.Errorf("Embedding.Dimension must be positive, got %d", e.Dimension)
	}
	if e.BatchSize <= 0 {
		return fmt.Errorf("Embedding.BatchSize must be positive, got %d", e.BatchSize)
	}
	if e.CacheTTLDays < 0 {
		return fmt.Errorf("Embedding.CacheTTLDays cannot be negative, got %d", e.CacheTTLDays)
	}
	return nil
}

// validateWeights enforces importance weights in [0,2], search
// probability thresholds in [0,1], ranking weights summing to 1±0.01 with no
// negatives, and the three cross-field dependencies (customizing
// hybrid_search_alpha/importance weights/retrieval_gate_threshold requires
// their matching feature flag).
func (v *Validator) validateWeights(w *Weights) error {
	for _, pair := range []struct {
		name string
		val  float64
	}{
		{"ImportanceComplexity", w.ImportanceComplexity},
		{"ImportanceUsage", w.ImportanceUsage},
		{"ImportanceCriticality", w.ImportanceCriticality},
	} {
		if pair.val < 0 || pair.val > 2 {
			return fmt.Errorf("%s must be in [0,2], got %v", pair.name, pair.val)
		}
	}

	if w.HybridSearchAlpha < 0 || w.HybridSearchAlpha > 1 {
		return fmt.Errorf("HybridSearchAlpha must be in [0,1], got %v", w.HybridSearchAlpha)
	}
	if w.RetrievalGateThreshold < 0 || w.RetrievalGateThreshold > 1 {
		return fmt.Errorf("RetrievalGateThreshold must be in [0,1], got %v", w.RetrievalGateThreshold)
	}

	if !w.HybridSearchEnabled && w.HybridSearchAlpha != Default().Weights.HybridSearchAlpha {
		return fmt.Errorf("HybridSearchAlpha customized but HybridSearchEnabled is false")
	}
	if !w.RetrievalGateEnabled && w.RetrievalGateThreshold != Default().Weights.RetrievalGateThreshold {
		return fmt.Errorf("RetrievalGateThreshold customized but RetrievalGateEnabled is false")
	}
	if !w.ImportanceScoringEnabled {
		def := Default().Weights
		if w.ImportanceComplexity != def.ImportanceComplexity || w.ImportanceUsage != def.ImportanceUsage || w.ImportanceCriticality != def.ImportanceCriticality {
			return fmt.Errorf("importance weights customized but ImportanceScoringEnabled is false")
		}
	}

	sum := w.RankingSimilarity + w.RankingRecency + w.RankingUsage
	if w.RankingSimilarity < 0 || w.RankingRecency < 0 || w.RankingUsage < 0 {
		return fmt.Errorf("ranking weights must be non-negative")
	}
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("ranking weights must sum to 1.0+-0.01, got %v", sum)
	}
	return nil
}
