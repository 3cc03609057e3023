package callgraph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/semcode/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "callgraph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_StoreFunctionNode_StoreCallSites_LoadCallGraph(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.StoreFunctionNode(ctx, types.FunctionNode{
		Name: "main", QualifiedName: "pkg.main", FilePath: "main.go", Language: "go",
		StartLine: 1, EndLine: 10, IsExported: true,
	}, "demo", nil, nil)
	require.NoError(t, err)

	err = s.StoreFunctionNode(ctx, types.FunctionNode{
		Name: "helper", QualifiedName: "pkg.helper", FilePath: "helper.go", Language: "go",
		StartLine: 1, EndLine: 5,
	}, "demo", nil, nil)
	require.NoError(t, err)

	err = s.StoreCallSites(ctx, "pkg.main", []types.CallSite{
		{CallerFunction: "pkg.main", CalleeName: "pkg.helper", Line: 3, Confidence: 1.0},
		{CallerFunction: "pkg.main", CalleeName: "fmt.Println", Line: 4, Confidence: 0.9},
	}, "demo")
	require.NoError(t, err)

	g, err := s.LoadCallGraph(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	require.Contains(t, g.Edges["pkg.main"], "pkg.helper")
	require.Contains(t, g.Edges["pkg.main"], "fmt.Println") // dangling callee allowed
}

func TestStore_FindCallers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreFunctionNode(ctx, types.FunctionNode{Name: "a", QualifiedName: "pkg.a", FilePath: "a.go", Language: "go"}, "demo", nil, nil))
	require.NoError(t, s.StoreFunctionNode(ctx, types.FunctionNode{Name: "b", QualifiedName: "pkg.b", FilePath: "b.go", Language: "go"}, "demo", nil, nil))
	require.NoError(t, s.StoreCallSites(ctx, "pkg.a", []types.CallSite{{CallerFunction: "pkg.a", CalleeName: "pkg.b", Line: 1}}, "demo"))

	callers, err := s.FindCallers(ctx, "demo", "pkg.b")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	require.Equal(t, "pkg.a", callers[0].QualifiedName)
}

func TestStore_FindCallChain_ShortestPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, n := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.StoreFunctionNode(ctx, types.FunctionNode{Name: n, QualifiedName: n, FilePath: n + ".go", Language: "go"}, "demo", nil, nil))
	}
	// a -> b -> d (length 3) and a -> c -> d (length 3), both shortest
	require.NoError(t, s.StoreCallSites(ctx, "a", []types.CallSite{{CallerFunction: "a", CalleeName: "b"}, {CallerFunction: "a", CalleeName: "c"}}, "demo"))
	require.NoError(t, s.StoreCallSites(ctx, "b", []types.CallSite{{CallerFunction: "b", CalleeName: "d"}}, "demo"))
	require.NoError(t, s.StoreCallSites(ctx, "c", []types.CallSite{{CallerFunction: "c", CalleeName: "d"}}, "demo"))

	chains, err := s.FindCallChain(ctx, "demo", "a", "d")
	require.NoError(t, err)
	require.Len(t, chains, 2)
	for _, chain := range chains {
		require.Equal(t, []string{"a", chain[1], "d"}, chain)
	}
}

func TestStore_FindCallChain_NoPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.StoreFunctionNode(ctx, types.FunctionNode{Name: "a", QualifiedName: "a", FilePath: "a.go", Language: "go"}, "demo", nil, nil))
	require.NoError(t, s.StoreFunctionNode(ctx, types.FunctionNode{Name: "z", QualifiedName: "z", FilePath: "z.go", Language: "go"}, "demo", nil, nil))

	chains, err := s.FindCallChain(ctx, "demo", "a", "z")
	require.NoError(t, err)
	require.Empty(t, chains)
}

func TestStore_DeleteProjectCallGraph(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreFunctionNode(ctx, types.FunctionNode{Name: "a", QualifiedName: "a", FilePath: "a.go", Language: "go"}, "demo", nil, nil))
	require.NoError(t, s.StoreCallSites(ctx, "a", []types.CallSite{{CallerFunction: "a", CalleeName: "b"}}, "demo"))

	n, err := s.DeleteProjectCallGraph(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	g, err := s.LoadCallGraph(ctx, "demo")
	require.NoError(t, err)
	require.Empty(t, g.Nodes)
	require.Empty(t, g.Edges)
}

func TestStore_StoreImplementations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.StoreImplementations(ctx, "io.Reader", []types.Implementation{
		{InterfaceName: "io.Reader", TypeName: "bytes.Buffer", FilePath: "buffer.go", Line: 42},
	}, "demo")
	require.NoError(t, err)
}
