package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_PassesValidation(t *testing.T) {
	cfg := Default()
	cfg.Project.Root = "/tmp/project"
	require.NoError(t, NewValidator().Validate(cfg))
}

func TestValidate_RankingWeightsMustSumToOne(t *testing.T) {
	cfg := Default()
	cfg.Project.Root = "/tmp/project"
	cfg.Weights.RankingSimilarity = 0.5
	cfg.Weights.RankingRecency = 0.5
	cfg.Weights.RankingUsage = 0.02 // sums to 1.02, should be rejected
	err := NewValidator().Validate(cfg)
	require.Error(t, err)
}

func TestValidate_RankingWeightsWithinTolerance(t *testing.T) {
	cfg := Default()
	cfg.Project.Root = "/tmp/project"
	cfg.Weights.RankingSimilarity = 0.6
	cfg.Weights.RankingRecency = 0.2
	cfg.Weights.RankingUsage = 0.199 // sums to 0.999, within +-0.01
	require.NoError(t, NewValidator().Validate(cfg))
}

func TestValidate_HybridAlphaRequiresFeatureFlag(t *testing.T) {
	cfg := Default()
	cfg.Project.Root = "/tmp/project"
	cfg.Weights.HybridSearchEnabled = false
	cfg.Weights.HybridSearchAlpha = 0.9 // customized without enabling the feature
	err := NewValidator().Validate(cfg)
	require.Error(t, err)
}

func TestValidate_ImportanceWeightRange(t *testing.T) {
	cfg := Default()
	cfg.Project.Root = "/tmp/project"
	cfg.Weights.ImportanceComplexity = 3.0 // out of [0,2]
	err := NewValidator().Validate(cfg)
	require.Error(t, err)
}

func TestImportancePreset_Security(t *testing.T) {
	w, ok := ImportancePreset("security")
	require.True(t, ok)
	assert.Equal(t, 0.8, w.ImportanceComplexity)
	assert.Equal(t, 0.5, w.ImportanceUsage)
	assert.Equal(t, 2.0, w.ImportanceCriticality)
}

func TestImportancePreset_Unknown(t *testing.T) {
	_, ok := ImportancePreset("nonexistent")
	assert.False(t, ok)
}

func TestLoadKDL_MissingFileReturnsNil(t *testing.T) {
	cfg, err := LoadKDL(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadTOML_MissingFileReturnsNil(t *testing.T) {
	cfg, err := LoadTOML(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadTOML_OverridesOnlyPresentKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".semcode.toml"), []byte(`
[project]
name = "demo"

[storage]
backend = "keyword"

[embedding]
dimension = 256

[weights]
hybrid_search_alpha = 0.7
`), 0o644))

	cfg, err := LoadTOML(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "demo", cfg.Project.Name)
	assert.Equal(t, dir, cfg.Project.Root)
	assert.Equal(t, BackendKeyword, cfg.Storage.Backend)
	assert.Equal(t, 256, cfg.Embedding.Dimension)
	assert.InDelta(t, 0.7, cfg.Weights.HybridSearchAlpha, 1e-9)

	def := Default()
	assert.Equal(t, def.Embedding.BatchSize, cfg.Embedding.BatchSize)
	assert.Equal(t, def.Weights.ImportanceComplexity, cfg.Weights.ImportanceComplexity)
}

func TestLoadTOML_MalformedFileErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".semcode.toml"), []byte("[project\nname ="), 0o644))

	_, err := LoadTOML(dir)
	require.Error(t, err)
}
