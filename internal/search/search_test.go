package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/semcode/internal/config"
	"github.com/standardbeagle/semcode/internal/embedding"
	"github.com/standardbeagle/semcode/internal/errs"
	"github.com/standardbeagle/semcode/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.KeywordStore) {
	t.Helper()
	ks, err := store.OpenKeyword(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	require.NoError(t, ks.Initialize(context.Background()))
	t.Cleanup(func() { ks.Close() })

	cfg := config.Default()
	gen := embedding.New(cfg.Embedding.Model, cfg.Embedding.Dimension, 1)
	cache := embedding.Disabled()

	return New(ks, gen, cache, cfg), ks
}

func seedUnit(t *testing.T, ks *store.KeywordStore, id, project, content, language string, startLine, endLine int, importance float64) {
	t.Helper()
	_, err := ks.StoreOne(context.Background(), id, content, nil, map[string]any{
		"category": "code", "scope": "project", "project_name": project,
		"file_path": "pkg/" + id + ".go", "language": language,
		"unit_type": "function", "unit_name": id,
		"start_line": startLine, "end_line": endLine,
		"importance": importance,
	})
	require.NoError(t, err)
}

func TestService_SearchCode_EmptyQuery(t *testing.T) {
	svc, _ := newTestService(t)
	resp, err := svc.SearchCode(context.Background(), "   ", Options{})
	require.NoError(t, err)
	require.Equal(t, "poor", resp.Quality)
	require.NotEmpty(t, resp.Hint)
}

func TestService_SearchCode_UnknownSearchMode(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SearchCode(context.Background(), "authenticate user", Options{SearchMode: "bogus"})
	require.Error(t, err)
	require.ErrorAs(t, err, new(*errs.ValidationError))
}

func TestService_SearchCode_UnknownPatternPreset(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SearchCode(context.Background(), "authenticate user", Options{Pattern: "@preset:nope"})
	require.Error(t, err)
	require.ErrorAs(t, err, new(*errs.ValidationError))
}

func TestService_SearchCode_KeywordMode_RanksMatchingUnitFirst(t *testing.T) {
	svc, ks := newTestService(t)
	ctx := context.Background()
	seedUnit(t, ks, "auth", "demo", "def authenticate(user, password):\n    return check(user, password)\n", "python", 1, 2, 0.9)
	seedUnit(t, ks, "getter", "demo", "def get_name(self):\n    return self._name\n", "python", 1, 2, 0.1)

	resp, err := svc.SearchCode(ctx, "authenticate password", Options{ProjectName: "demo", SearchMode: ModeKeyword})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	require.Equal(t, "auth", resp.Results[0].UnitName)
}

func TestService_SearchCode_LanguageFilter(t *testing.T) {
	svc, ks := newTestService(t)
	ctx := context.Background()
	seedUnit(t, ks, "pyfn", "demo", "def f():\n    return 1\n", "python", 1, 2, 0.5)
	seedUnit(t, ks, "gofn", "demo", "func f() int {\n    return 1\n}\n", "go", 1, 3, 0.5)

	resp, err := svc.SearchCode(ctx, "return", Options{ProjectName: "demo", SearchMode: ModeKeyword, Language: "go"})
	require.NoError(t, err)
	for _, r := range resp.Results {
		require.Equal(t, "go", r.Language)
	}
}

func TestService_SearchCode_PatternFilter_BareExcept(t *testing.T) {
	svc, ks := newTestService(t)
	ctx := context.Background()
	seedUnit(t, ks, "risky", "demo", "try:\n    x()\nexcept:\n    pass\n", "python", 1, 4, 0.5)
	seedUnit(t, ks, "clean", "demo", "def safe():\n    return 1\n", "python", 1, 2, 0.5)

	resp, err := svc.SearchCode(ctx, "x", Options{ProjectName: "demo", SearchMode: ModeKeyword, Pattern: "@preset:bare_except", PatternMode: "filter"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		require.True(t, r.PatternMatched)
		require.GreaterOrEqual(t, r.PatternMatchCount, 1)
	}
	found := false
	for _, r := range resp.Results {
		for _, loc := range r.PatternMatchLocations {
			if loc.Text == "except:" {
				found = true
			}
		}
	}
	require.True(t, found)
}

func TestService_SearchCode_HybridMode_DoesNotError(t *testing.T) {
	svc, ks := newTestService(t)
	ctx := context.Background()
	seedUnit(t, ks, "one", "demo", "def authenticate(user):\n    return True\n", "python", 1, 2, 0.8)
	seedUnit(t, ks, "two", "demo", "def unrelated():\n    return 42\n", "python", 1, 2, 0.2)

	resp, err := svc.SearchCode(ctx, "authenticate", Options{ProjectName: "demo", SearchMode: ModeHybrid, Limit: 5})
	require.NoError(t, err)
	require.NotNil(t, resp)
}

func TestService_FindSimilarCode_ConfidenceLabels(t *testing.T) {
	require.Equal(t, "near-duplicate", similarityRelevanceLabel(0.97))
	require.Equal(t, "similar", similarityRelevanceLabel(0.85))
	require.Equal(t, "related", similarityRelevanceLabel(0.5))
}
