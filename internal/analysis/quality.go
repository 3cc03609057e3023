package analysis

import (
	"fmt"

	"github.com/standardbeagle/semcode/internal/config"
	"github.com/standardbeagle/semcode/internal/types"
)

// ComputeQuality assembles a unit's quality metrics: complexity fields
// plus duplication (caller-supplied; the search service computes it across
// a query's candidate set) and the maintainability-index approximation.
func ComputeQuality(u types.Unit, duplicationScore float64) QualityMetrics {
	complexity := ComputeComplexity(u)

	mi := 100 - 2*float64(complexity.Cyclomatic) - float64(complexity.LineCount)/10
	if complexity.HasDocumentation {
		mi += 5
	}
	mi = clampFloat(mi, 0, 100)

	q := QualityMetrics{
		ComplexityMetrics:    complexity,
		DuplicationScore:     duplicationScore,
		MaintainabilityIndex: mi,
	}
	q.QualityFlags = buildQualityFlags(q)
	return q
}

func buildQualityFlags(q QualityMetrics) []string {
	var flags []string
	if q.Cyclomatic > 10 {
		flags = append(flags, "high-complexity")
	}
	if q.NestingDepth > 4 {
		flags = append(flags, "deep-nesting")
	}
	if q.ParameterCount > 5 {
		flags = append(flags, "many-parameters")
	}
	if !q.HasDocumentation {
		flags = append(flags, "undocumented")
	}
	if q.DuplicationScore >= 0.85 {
		flags = append(flags, "duplicated")
	}
	if q.MaintainabilityIndex < 40 {
		flags = append(flags, "low-maintainability")
	}
	return flags
}

// Hotspots applies the configurable hotspot rules to a scored unit,
// returning every threshold the unit crosses (a unit can produce more than
// one hotspot, e.g. both high complexity and deep nesting).
func Hotspots(u types.Unit, q QualityMetrics, filePath string, th config.Thresholds) []QualityHotspot {
	var hotspots []QualityHotspot

	add := func(sev HotspotSeverity, cat HotspotCategory, value, threshold float64, rec string) {
		hotspots = append(hotspots, QualityHotspot{
			Severity:       sev,
			Category:       cat,
			File:           filePath,
			Unit:           u.QualifiedName(),
			Start:          u.StartLine,
			End:            u.EndLine,
			MetricValue:    value,
			Threshold:      threshold,
			Recommendation: rec,
		})
	}

	switch {
	case q.Cyclomatic > th.ComplexityCritical:
		add(SeverityCritical, CategoryComplexity, float64(q.Cyclomatic), float64(th.ComplexityCritical), "split this function into smaller, single-purpose pieces")
	case q.Cyclomatic > th.ComplexityHigh:
		add(SeverityHigh, CategoryComplexity, float64(q.Cyclomatic), float64(th.ComplexityHigh), "reduce branching or extract helper functions")
	}

	switch {
	case q.LineCount > 2*th.LongFunctionLines:
		add(SeverityCritical, CategoryLength, float64(q.LineCount), float64(2*th.LongFunctionLines), "this function is unusually long; consider decomposing it")
	case q.LineCount > th.LongFunctionLines:
		add(SeverityHigh, CategoryLength, float64(q.LineCount), float64(th.LongFunctionLines), "consider splitting this function")
	}

	switch {
	case q.NestingDepth > 6:
		add(SeverityCritical, CategoryNesting, float64(q.NestingDepth), 6, "flatten deeply nested control flow with early returns or guard clauses")
	case q.NestingDepth > th.DeepNesting:
		add(SeverityHigh, CategoryNesting, float64(q.NestingDepth), float64(th.DeepNesting), "flatten nested control flow")
	}

	switch {
	case q.ParameterCount > 7:
		add(SeverityHigh, CategoryParameters, float64(q.ParameterCount), 7, "group related parameters into a struct")
	case q.ParameterCount > th.ManyParameters:
		add(SeverityMedium, CategoryParameters, float64(q.ParameterCount), float64(th.ManyParameters), "consider reducing the parameter count")
	}

	switch {
	case q.DuplicationScore >= 0.95:
		add(SeverityCritical, CategoryDuplication, q.DuplicationScore, 0.95, "extract the duplicated logic into a shared function")
	case q.DuplicationScore >= 0.85:
		add(SeverityHigh, CategoryDuplication, q.DuplicationScore, 0.85, "this unit closely duplicates another; consider consolidating")
	}

	if !q.HasDocumentation && (q.Cyclomatic > 5 || q.LineCount > 50) {
		add(SeverityMedium, CategoryDocumentation, 0, 0, fmt.Sprintf("document %s: it is non-trivial (cyclomatic=%d, lines=%d) but undocumented", u.Name, q.Cyclomatic, q.LineCount))
	}

	return hotspots
}
