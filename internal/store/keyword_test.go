package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/semcode/internal/errs"
	"github.com/standardbeagle/semcode/internal/types"
)

func newTestKeywordStore(t *testing.T) *KeywordStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keyword.db")
	ks, err := OpenKeyword(path)
	require.NoError(t, err)
	require.NoError(t, ks.Initialize(context.Background()))
	t.Cleanup(func() { ks.Close() })
	return ks
}

func TestKeywordStore_StoreGetByID_RoundTrip(t *testing.T) {
	ks := newTestKeywordStore(t)
	ctx := context.Background()

	meta := map[string]any{
		"category":     "code",
		"scope":        "project",
		"project_name": "demo",
		"file_path":    "a.py",
		"language":     "python",
		"unit_type":    "function",
		"importance":   0.42,
	}
	id, err := ks.StoreOne(ctx, "unit-1", "def add(a, b): return a + b", nil, meta)
	require.NoError(t, err)
	require.Equal(t, "unit-1", id)

	got, err := ks.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "def add(a, b): return a + b", got.Content)
	require.Equal(t, types.CategoryCode, got.Category)
	require.Equal(t, "demo", got.ProjectName)
	require.InDelta(t, 0.42, got.Importance, 1e-9)
}

func TestKeywordStore_GetByID_NotFound(t *testing.T) {
	ks := newTestKeywordStore(t)
	_, err := ks.GetByID(context.Background(), "missing")
	require.Error(t, err)
	require.ErrorAs(t, err, new(*errs.MemoryNotFoundError))
}

func TestKeywordStore_BatchStore_PreservesOrderAndAtomicity(t *testing.T) {
	ks := newTestKeywordStore(t)
	ctx := context.Background()

	items := []BatchItem{
		{ID: "u1", Content: "a", Metadata: map[string]any{"category": "code", "scope": "project", "project_name": "p"}},
		{ID: "u2", Content: "b", Metadata: map[string]any{"category": "code", "scope": "project", "project_name": "p"}},
		{ID: "u3", Content: "c", Metadata: map[string]any{"category": "code", "scope": "project", "project_name": "p"}},
	}
	ids, err := ks.BatchStore(ctx, items)
	require.NoError(t, err)
	require.Equal(t, []string{"u1", "u2", "u3"}, ids)
}

func TestKeywordStore_DeleteCodeUnitsByFile_Reconciliation(t *testing.T) {
	ks := newTestKeywordStore(t)
	ctx := context.Background()

	for _, u := range []string{"a.py:1", "a.py:2", "b.py:1"} {
		file := "a.py"
		if u == "b.py:1" {
			file = "b.py"
		}
		_, err := ks.StoreOne(ctx, u, "content", nil, map[string]any{
			"category": "code", "scope": "project", "project_name": "p", "file_path": file,
		})
		require.NoError(t, err)
	}

	n, err := ks.DeleteCodeUnitsByFile(ctx, "p", "b.py")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	count, err := ks.Count(ctx, &types.MetadataFilter{ProjectName: "p", Category: types.CategoryCode})
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestKeywordStore_RetrieveText_FullTextRanking(t *testing.T) {
	ks := newTestKeywordStore(t)
	ctx := context.Background()

	_, err := ks.StoreOne(ctx, "u1", "function authenticate user with password token", nil, map[string]any{
		"category": "code", "scope": "project", "project_name": "p", "importance": 0.9,
	})
	require.NoError(t, err)
	_, err = ks.StoreOne(ctx, "u2", "trivial getter function", nil, map[string]any{
		"category": "code", "scope": "project", "project_name": "p", "importance": 0.1,
	})
	require.NoError(t, err)

	results, err := ks.RetrieveText(ctx, "authenticate password", &types.MetadataFilter{ProjectName: "p"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "u1", results[0].Memory.ID)
}

func TestKeywordStore_Scroll_PayloadOnly(t *testing.T) {
	ks := newTestKeywordStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := ks.StoreOne(ctx, "", "content", nil, map[string]any{
			"category": "code", "scope": "project", "project_name": "p",
		})
		require.NoError(t, err)
	}

	var seen int
	err := ks.Scroll(ctx, &types.MetadataFilter{ProjectName: "p"}, 2, func(m *types.Memory) bool {
		seen++
		return true
	})
	require.NoError(t, err)
	require.Equal(t, 5, seen)
}

func TestKeywordStore_Update_PreservesEmbedding(t *testing.T) {
	ks := newTestKeywordStore(t)
	ctx := context.Background()

	vec := []float32{0.1, 0.2, 0.3}
	id, err := ks.StoreOne(ctx, "u1", "old content", vec, map[string]any{
		"category": "code", "scope": "project", "project_name": "p",
	})
	require.NoError(t, err)

	ok, err := ks.Update(ctx, id, map[string]any{"content": "new content"})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := ks.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "new content", got.Content)
}
