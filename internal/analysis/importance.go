package analysis

import (
	"github.com/standardbeagle/semcode/internal/config"
	"github.com/standardbeagle/semcode/internal/degradation"
	"github.com/standardbeagle/semcode/internal/types"
)

// baselineComplexity/baselineUsage/baselineCriticality normalize the raw
// weighted sum: each is the upper bound its sub-score can realistically
// reach.
const (
	baselineComplexity  = 0.7
	baselineUsage       = 0.2
	baselineCriticality = 0.3
)

// ImportanceResult is the scorer's per-unit output.
type ImportanceResult struct {
	Unit        types.Unit
	Importance  float64
	Complexity  ComplexityMetrics
	Usage       UsageMetrics
	Criticality CriticalityMetrics
	Fallback    bool // true if scoring failed and 0.5 was substituted
}

// ScoreFile scores a whole file in one batch: builds the per-file call
// graph once via UsageAnalyzer, scores every unit, then resets the
// analyzer. Non-fatal per-unit failures are recorded without aborting the
// batch.
func ScoreFile(units []types.Unit, source []byte, language, filePath string, weights config.Weights) []ImportanceResult {
	usageAnalyzer := NewUsageAnalyzer()
	usageByUnit := usageAnalyzer.AnalyzeFile(units, source, language, filePath)
	defer usageAnalyzer.Reset()

	results := make([]ImportanceResult, 0, len(units))
	for _, u := range units {
		result := scoreUnit(u, filePath, usageByUnit[u.QualifiedName()], weights)
		results = append(results, result)
	}
	return results
}

func scoreUnit(u types.Unit, filePath string, usage UsageMetrics, weights config.Weights) (result ImportanceResult) {
	defer func() {
		if r := recover(); r != nil {
			degradation.Global().AddWarning("importance_scorer", "unit scoring panicked, using fallback 0.5", "", "importance score for this unit is a flat 0.5 instead of a computed value")
			result = ImportanceResult{Unit: u, Importance: 0.5, Fallback: true}
		}
	}()

	complexity := ComputeComplexity(u)
	criticality := ComputeCriticality(u, filePath)

	raw := weights.ImportanceComplexity*complexity.ComplexityScore +
		weights.ImportanceUsage*usage.UsageBoost +
		weights.ImportanceCriticality*criticality.CriticalityBoost

	baseline := weights.ImportanceComplexity*baselineComplexity +
		weights.ImportanceUsage*baselineUsage +
		weights.ImportanceCriticality*baselineCriticality

	importance := 0.0
	if baseline != 0 {
		importance = clampFloat(raw/baseline, 0, 1)
	}

	return ImportanceResult{
		Unit:        u,
		Importance:  importance,
		Complexity:  complexity,
		Usage:       usage,
		Criticality: criticality,
	}
}
