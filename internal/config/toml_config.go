package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// tomlFile is the on-disk shape of .semcode.toml. Pointer fields distinguish
// "absent" from "zero" so unset keys keep their Default() values, the same
// assign-if-present semantics the KDL loader gets from node dispatch.
type tomlFile struct {
	Project struct {
		Root *string `toml:"root"`
		Name *string `toml:"name"`
	} `toml:"project"`
	Index struct {
		MaxFileSize      *int64 `toml:"max_file_size"`
		MaxTotalSizeMB   *int64 `toml:"max_total_size_mb"`
		MaxFileCount     *int   `toml:"max_file_count"`
		FollowSymlinks   *bool  `toml:"follow_symlinks"`
		RespectGitignore *bool  `toml:"respect_gitignore"`
		WatchMode        *bool  `toml:"watch_mode"`
		WatchDebounceMs  *int   `toml:"watch_debounce_ms"`
	} `toml:"index"`
	Storage struct {
		Backend       *string `toml:"backend"`
		AllowFallback *bool   `toml:"allow_fallback"`
		SQLiteDir     *string `toml:"sqlite_dir"`
	} `toml:"storage"`
	Embedding struct {
		Model        *string `toml:"model"`
		Dimension    *int    `toml:"dimension"`
		BatchSize    *int    `toml:"batch_size"`
		CacheEnabled *bool   `toml:"cache_enabled"`
		CacheTTLDays *int    `toml:"cache_ttl_days"`
	} `toml:"embedding"`
	Weights struct {
		ImportanceComplexity   *float64 `toml:"importance_complexity"`
		ImportanceUsage        *float64 `toml:"importance_usage"`
		ImportanceCriticality  *float64 `toml:"importance_criticality"`
		HybridSearchAlpha      *float64 `toml:"hybrid_search_alpha"`
		RetrievalGateThreshold *float64 `toml:"retrieval_gate_threshold"`
	} `toml:"weights"`
}

// LoadTOML loads configuration from "<projectRoot>/.semcode.toml", the
// secondary config format alongside LoadKDL. Returns (nil, nil) when the
// file does not exist so callers fall back to Default().
func LoadTOML(projectRoot string) (*Config, error) {
	tomlPath := filepath.Join(projectRoot, ".semcode.toml")
	if _, err := os.Stat(tomlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(tomlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .semcode.toml: %w", err)
	}

	cfg, err := parseTOML(content)
	if err != nil {
		return nil, err
	}

	if cfg.Project.Root == "" {
		cfg.Project.Root = projectRoot
	} else if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Project.Root))
	}
	return cfg, nil
}

func parseTOML(content []byte) (*Config, error) {
	var f tomlFile
	if err := toml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("failed to parse .semcode.toml: %w", err)
	}

	cfg := Default()

	setString(f.Project.Root, func(v string) { cfg.Project.Root = v })
	setString(f.Project.Name, func(v string) { cfg.Project.Name = v })

	setInt64(f.Index.MaxFileSize, func(v int64) { cfg.Index.MaxFileSize = v })
	setInt64(f.Index.MaxTotalSizeMB, func(v int64) { cfg.Index.MaxTotalSizeMB = v })
	setInt(f.Index.MaxFileCount, func(v int) { cfg.Index.MaxFileCount = v })
	setBool(f.Index.FollowSymlinks, func(v bool) { cfg.Index.FollowSymlinks = v })
	setBool(f.Index.RespectGitignore, func(v bool) { cfg.Index.RespectGitignore = v })
	setBool(f.Index.WatchMode, func(v bool) { cfg.Index.WatchMode = v })
	setInt(f.Index.WatchDebounceMs, func(v int) { cfg.Index.WatchDebounceMs = v })

	setString(f.Storage.Backend, func(v string) { cfg.Storage.Backend = StorageBackend(v) })
	setBool(f.Storage.AllowFallback, func(v bool) { cfg.Storage.AllowFallback = v })
	setString(f.Storage.SQLiteDir, func(v string) { cfg.Storage.SQLiteDir = v })

	setString(f.Embedding.Model, func(v string) { cfg.Embedding.Model = v })
	setInt(f.Embedding.Dimension, func(v int) { cfg.Embedding.Dimension = v })
	setInt(f.Embedding.BatchSize, func(v int) { cfg.Embedding.BatchSize = v })
	setBool(f.Embedding.CacheEnabled, func(v bool) { cfg.Embedding.CacheEnabled = v })
	setInt(f.Embedding.CacheTTLDays, func(v int) { cfg.Embedding.CacheTTLDays = v })

	setFloat(f.Weights.ImportanceComplexity, func(v float64) { cfg.Weights.ImportanceComplexity = v })
	setFloat(f.Weights.ImportanceUsage, func(v float64) { cfg.Weights.ImportanceUsage = v })
	setFloat(f.Weights.ImportanceCriticality, func(v float64) { cfg.Weights.ImportanceCriticality = v })
	setFloat(f.Weights.HybridSearchAlpha, func(v float64) { cfg.Weights.HybridSearchAlpha = v })
	setFloat(f.Weights.RetrievalGateThreshold, func(v float64) { cfg.Weights.RetrievalGateThreshold = v })

	return cfg, nil
}

func setString(p *string, set func(string)) {
	if p != nil {
		set(*p)
	}
}

func setInt(p *int, set func(int)) {
	if p != nil {
		set(*p)
	}
}

func setInt64(p *int64, set func(int64)) {
	if p != nil {
		set(*p)
	}
}

func setFloat(p *float64, set func(float64)) {
	if p != nil {
		set(*p)
	}
}

func setBool(p *bool, set func(bool)) {
	if p != nil {
		set(*p)
	}
}
