// Package config defines the service configuration surface, loaded from
// KDL (github.com/sblinch/kdl-go) with a TOML fallback
// (github.com/pelletier/go-toml/v2) for deployments that prefer it.
package config

import (
	"runtime"
)

// StorageBackend selects the primary store implementation.
type StorageBackend string

const (
	BackendVector  StorageBackend = "vector"
	BackendKeyword StorageBackend = "keyword"
)

// PatternMode controls how search_code's pattern parameter interacts with
// ranking.
type PatternMode string

const (
	PatternFilter  PatternMode = "filter"
	PatternBoost   PatternMode = "boost"
	PatternRequire PatternMode = "require"
)

// Config is the full, transport-agnostic configuration surface.
type Config struct {
	Version     int
	Project     Project
	Index       Index
	Performance Performance
	Storage     Storage
	Embedding   Embedding
	Thresholds  Thresholds
	Weights     Weights
	Search      Search
	FeatureFlags FeatureFlags
	Include     []string
	Exclude     []string
}

type Project struct {
	Root string
	Name string
}

type Index struct {
	MaxFileSize      int64
	MaxTotalSizeMB   int64
	MaxFileCount     int
	FollowSymlinks   bool
	RespectGitignore bool
	WatchMode        bool
	WatchDebounceMs  int
}

type Performance struct {
	MaxMemoryMB         int
	MaxConcurrentFiles  int // semaphore size for index_directory
	IndexingTimeoutSec  int
	EmbeddingParallelism int // worker count for batch embedding (0 = NumCPU)
}

// Storage configures the store factory.
type Storage struct {
	Backend       StorageBackend
	AllowFallback bool
	SQLiteDir     string // directory holding the vector/keyword/cache sqlite files
}

// Embedding configures the embedding cache and generator.
type Embedding struct {
	Model         string
	Dimension     int // embedding vector width, fixed per model; defaults to 384
	BatchSize     int
	CacheEnabled  bool
	CacheTTLDays  int
}

// Thresholds configures the quality analyzer's hotspot rules.
type Thresholds struct {
	ComplexityHigh      int
	ComplexityCritical  int
	LongFunctionLines   int
	DeepNesting         int
	ManyParameters      int
	MaintainabilityExcellent float64
	MaintainabilityGood      float64
	MaintainabilityPoor      float64
}

// Weights configures the importance scorer and hybrid search.
type Weights struct {
	ImportanceComplexity float64 // w_c, [0,2]
	ImportanceUsage      float64 // w_u, [0,2]
	ImportanceCriticality float64 // w_k, [0,2]

	HybridSearchEnabled bool
	HybridSearchAlpha   float64 // [0,1]

	RetrievalGateEnabled   bool
	RetrievalGateThreshold float64 // [0,1]

	ImportanceScoringEnabled bool

	RankingSimilarity float64
	RankingRecency    float64
	RankingUsage      float64
}

type Search struct {
	DefaultLimit           int
	MaxCandidateMultiplier int // hybrid candidate pool is max(multiplier*limit, MinCandidatePool)
	MinCandidatePool       int
}

type FeatureFlags struct {
	EnableCallGraph     bool
	EnableWatcher       bool
	EnableProgressBar   bool
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Index: Index{
			MaxFileSize:      10 * 1024 * 1024,
			MaxTotalSizeMB:   500,
			MaxFileCount:     100000,
			FollowSymlinks:   false,
			RespectGitignore: true,
			WatchMode:        false,
			WatchDebounceMs:  300,
		},
		Performance: Performance{
			MaxMemoryMB:          500,
			MaxConcurrentFiles:   4,
			IndexingTimeoutSec:   120,
			EmbeddingParallelism: runtime.NumCPU(),
		},
		Storage: Storage{
			Backend:       BackendVector,
			AllowFallback: true,
			SQLiteDir:     ".semcode",
		},
		Embedding: Embedding{
			Model:        "semcode-hash-projection-v1",
			Dimension:    384,
			BatchSize:    64,
			CacheEnabled: true,
			CacheTTLDays: 30,
		},
		Thresholds: Thresholds{
			ComplexityHigh:           10,
			ComplexityCritical:       20,
			LongFunctionLines:        100,
			DeepNesting:              4,
			ManyParameters:           5,
			MaintainabilityExcellent: 80,
			MaintainabilityGood:      60,
			MaintainabilityPoor:      40,
		},
		Weights: Weights{
			ImportanceComplexity:     1.0,
			ImportanceUsage:          1.0,
			ImportanceCriticality:    1.0,
			HybridSearchEnabled:      true,
			HybridSearchAlpha:        0.6,
			RetrievalGateEnabled:     false,
			RetrievalGateThreshold:   0.3,
			ImportanceScoringEnabled: true,
			RankingSimilarity:        0.6,
			RankingRecency:           0.2,
			RankingUsage:             0.2,
		},
		Search: Search{
			DefaultLimit:           5,
			MaxCandidateMultiplier: 3,
			MinCandidatePool:       50,
		},
		FeatureFlags: FeatureFlags{
			EnableCallGraph:   true,
			EnableWatcher:     false,
			EnableProgressBar: true,
		},
		Exclude: []string{".git", ".venv", "venv", ".virtualenv", "__pycache__", "node_modules", ".pytest_cache", ".mypy_cache", ".tox", ".worktrees"},
	}
}

// ImportancePreset returns one of the named importance weight presets.
func ImportancePreset(name string) (w Weights, ok bool) {
	switch name {
	case "balanced":
		return Weights{ImportanceComplexity: 1.0, ImportanceUsage: 1.0, ImportanceCriticality: 1.0}, true
	case "security":
		return Weights{ImportanceComplexity: 0.8, ImportanceUsage: 0.5, ImportanceCriticality: 2.0}, true
	case "complexity":
		return Weights{ImportanceComplexity: 2.0, ImportanceUsage: 0.5, ImportanceCriticality: 0.8}, true
	case "api":
		return Weights{ImportanceComplexity: 1.0, ImportanceUsage: 2.0, ImportanceCriticality: 1.0}, true
	}
	return Weights{}, false
}
