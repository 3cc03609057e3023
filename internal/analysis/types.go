// Package analysis implements the complexity, usage, criticality,
// importance and quality analyzers that feed per-unit importance scores
// and quality hotspots.
package analysis

// ComplexityMetrics is the complexity analyzer's per-unit output.
type ComplexityMetrics struct {
	Cyclomatic        int
	LineCount         int
	NestingDepth      int
	ParameterCount    int
	HasDocumentation  bool
	ComplexityScore   float64
}

// UsageMetrics is the usage analyzer's per-unit output.
type UsageMetrics struct {
	CallerCount  int
	IsPublic     bool
	IsExported   bool
	IsEntryPoint bool
	UsageBoost   float64
}

// CriticalityMetrics is the criticality analyzer's per-unit output.
type CriticalityMetrics struct {
	SecurityKeywordHits int
	HasErrorHandling    bool
	HasCriticalDecorator bool
	ProximityScore      float64
	CriticalityBoost    float64
}

// QualityMetrics is the quality analyzer's output: complexity fields plus
// duplication and maintainability.
type QualityMetrics struct {
	ComplexityMetrics
	DuplicationScore     float64
	MaintainabilityIndex float64
	QualityFlags         []string
}

// HotspotSeverity enumerates severities for a QualityHotspot.
type HotspotSeverity string

const (
	SeverityCritical HotspotSeverity = "critical"
	SeverityHigh     HotspotSeverity = "high"
	SeverityMedium   HotspotSeverity = "medium"
	SeverityLow      HotspotSeverity = "low"
)

// HotspotCategory enumerates the dimension a QualityHotspot flags.
type HotspotCategory string

const (
	CategoryComplexity    HotspotCategory = "complexity"
	CategoryDuplication   HotspotCategory = "duplication"
	CategoryLength        HotspotCategory = "length"
	CategoryNesting       HotspotCategory = "nesting"
	CategoryDocumentation HotspotCategory = "documentation"
	CategoryParameters    HotspotCategory = "parameters"
)

// QualityHotspot is a single flagged issue for a unit.
type QualityHotspot struct {
	Severity       HotspotSeverity
	Category       HotspotCategory
	File           string
	Unit           string
	Start          int
	End            int
	MetricValue    float64
	Threshold      float64
	Recommendation string
}
