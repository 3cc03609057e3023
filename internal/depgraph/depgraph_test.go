package depgraph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "depgraph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_StoreFileDependencies_GetDependenciesAndDependents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.StoreFileDependencies(ctx, "demo", "main.py", []DependencyEdge{
		{ToModule: "helper", Resolved: "helper.py"},
		{ToModule: "os", Resolved: ""}, // external, unresolved
	})
	require.NoError(t, err)

	deps, err := s.GetDependencies(ctx, "demo", "main.py")
	require.NoError(t, err)
	require.Equal(t, []string{"helper.py"}, deps)

	dependents, err := s.GetDependents(ctx, "demo", "helper.py")
	require.NoError(t, err)
	require.Equal(t, []string{"main.py"}, dependents)
}

func TestStore_StoreFileDependencies_Reconciles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreFileDependencies(ctx, "demo", "a.py", []DependencyEdge{{ToModule: "b", Resolved: "b.py"}}))
	require.NoError(t, s.StoreFileDependencies(ctx, "demo", "a.py", []DependencyEdge{{ToModule: "c", Resolved: "c.py"}}))

	deps, err := s.GetDependencies(ctx, "demo", "a.py")
	require.NoError(t, err)
	require.Equal(t, []string{"c.py"}, deps)
}

func TestStore_FindDependencyPath_ShortestPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreFileDependencies(ctx, "demo", "a.py", []DependencyEdge{{ToModule: "b", Resolved: "b.py"}, {ToModule: "c", Resolved: "c.py"}}))
	require.NoError(t, s.StoreFileDependencies(ctx, "demo", "b.py", []DependencyEdge{{ToModule: "d", Resolved: "d.py"}}))
	require.NoError(t, s.StoreFileDependencies(ctx, "demo", "c.py", []DependencyEdge{{ToModule: "d", Resolved: "d.py"}}))

	paths, err := s.FindDependencyPath(ctx, "demo", "a.py", "d.py")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		require.Equal(t, []string{"a.py", p[1], "d.py"}, p)
	}
}

func TestStore_FindDependencyPath_NoPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreFileDependencies(ctx, "demo", "a.py", nil))
	require.NoError(t, s.StoreFileDependencies(ctx, "demo", "z.py", nil))

	paths, err := s.FindDependencyPath(ctx, "demo", "a.py", "z.py")
	require.NoError(t, err)
	require.Empty(t, paths)
}

func TestStore_GetStats_DetectsCycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreFileDependencies(ctx, "demo", "a.py", []DependencyEdge{{ToModule: "b", Resolved: "b.py"}}))
	require.NoError(t, s.StoreFileDependencies(ctx, "demo", "b.py", []DependencyEdge{{ToModule: "a", Resolved: "a.py"}}))

	stats, err := s.GetStats(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalFiles)
	require.Equal(t, 2, stats.TotalEdges)
	require.NotEmpty(t, stats.Cycles)
}

func TestStore_DeleteFileDependencies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreFileDependencies(ctx, "demo", "a.py", []DependencyEdge{{ToModule: "b", Resolved: "b.py"}}))
	require.NoError(t, s.DeleteFileDependencies(ctx, "demo", "a.py"))

	deps, err := s.GetDependencies(ctx, "demo", "a.py")
	require.NoError(t, err)
	require.Empty(t, deps)
}

func TestStore_DeleteProjectDependencies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreFileDependencies(ctx, "demo", "a.py", []DependencyEdge{{ToModule: "b", Resolved: "b.py"}}))

	n, err := s.DeleteProjectDependencies(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stats, err := s.GetStats(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, 0, stats.TotalEdges)
}
