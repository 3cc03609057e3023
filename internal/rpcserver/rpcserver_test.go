package rpcserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/semcode/internal/callgraph"
	"github.com/standardbeagle/semcode/internal/config"
	"github.com/standardbeagle/semcode/internal/depgraph"
	"github.com/standardbeagle/semcode/internal/embedding"
	"github.com/standardbeagle/semcode/internal/errs"
	"github.com/standardbeagle/semcode/internal/store"
	"github.com/standardbeagle/semcode/internal/types"
)

func newTestService(t *testing.T, readOnly bool) *Service {
	t.Helper()
	ks, err := store.OpenKeyword(filepath.Join(t.TempDir(), "rpc.db"))
	require.NoError(t, err)
	require.NoError(t, ks.Initialize(context.Background()))
	t.Cleanup(func() { ks.Close() })

	cg, err := callgraph.Open(filepath.Join(t.TempDir(), "cg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cg.Close() })

	dg, err := depgraph.Open(filepath.Join(t.TempDir(), "dg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dg.Close() })

	cfg := config.Default()
	cfg.Storage.Backend = config.BackendKeyword
	gen := embedding.New(cfg.Embedding.Model, cfg.Embedding.Dimension, 1)
	cache := embedding.Disabled()

	return New(ks, cg, dg, gen, cache, cfg, readOnly)
}

func TestService_StoreRetrieveDeleteMemory(t *testing.T) {
	svc := newTestService(t, false)
	ctx := context.Background()

	id, err := svc.StoreMemory(ctx, "", "remember to check the auth flow", types.CategoryFact, types.ScopeGlobal, "", types.ContextSession, 0.4, []string{"note"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	results, err := svc.RetrieveMemories(ctx, "auth flow", nil, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	ok, err := svc.DeleteMemory(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.DeleteMemory(ctx, id)
	require.Error(t, err)
	require.ErrorAs(t, err, new(*errs.MemoryNotFoundError))
}

func TestService_ReadOnlyRejectsWrites(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()

	_, err := svc.StoreMemory(ctx, "", "content", types.CategoryFact, types.ScopeGlobal, "", types.ContextSession, 0.1, nil, nil)
	require.Error(t, err)
	require.ErrorAs(t, err, new(*errs.ReadOnlyError))

	_, err = svc.DeleteMemory(ctx, "whatever")
	require.Error(t, err)
	require.ErrorAs(t, err, new(*errs.ReadOnlyError))

	_, err = svc.IndexCodebase(ctx, "demo", t.TempDir(), 2, nil)
	require.Error(t, err)
	require.ErrorAs(t, err, new(*errs.ReadOnlyError))
}

func TestService_IndexCodebaseAndDependencyQueries(t *testing.T) {
	svc := newTestService(t, false)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.py"), []byte("def f():\n    return 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("from .helper import f\n\ndef g():\n    return f()\n"), 0o644))

	result, err := svc.IndexCodebase(ctx, "demo", dir, 2, nil)
	require.NoError(t, err)
	require.Equal(t, 2, result.IndexedFiles)

	deps, err := svc.GetFileDependencies(ctx, "demo", "main.py")
	require.NoError(t, err)
	require.Contains(t, deps, "helper.py")

	stats, err := svc.GetDependencyStats(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalEdges)
	require.Empty(t, stats.Cycles)

	files, err := svc.GetIndexedFiles(ctx, "demo", 10, 0)
	require.NoError(t, err)
	require.Len(t, files.Files, 2)

	// Reindexing a known project reconciles stale entries the same way a
	// fresh index_codebase call would.
	require.NoError(t, os.Remove(filepath.Join(dir, "main.py")))
	result2, err := svc.ReindexProject(ctx, "demo", 2, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result2.CleanedEntries)
}

func TestService_ReindexProject_UnregisteredProjectFails(t *testing.T) {
	svc := newTestService(t, false)
	_, err := svc.ReindexProject(context.Background(), "never-seen", 2, nil)
	require.Error(t, err)
	require.ErrorAs(t, err, new(*errs.ValidationError))
}

func TestService_GetStatusAndDashboard(t *testing.T) {
	svc := newTestService(t, false)
	ctx := context.Background()

	_, err := svc.StoreMemory(ctx, "", "project scoped note", types.CategoryFact, types.ScopeProject, "demo", types.ContextProject, 0.2, nil, nil)
	require.NoError(t, err)

	status := svc.GetStatus(ctx)
	require.True(t, status.StorageHealthy)
	require.Equal(t, "keyword", status.StorageBackend)

	dash, err := svc.GetDashboardStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, dash.TotalMemories)
	require.Equal(t, 1, dash.NumProjects)

	recent, err := svc.GetRecentActivity(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}
