package gitstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "git.db"))
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_StoreCommit_GetCommit_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c := Commit{
		Hash:             "abc123",
		RepositoryPath:   "/repo",
		AuthorName:       "Ada",
		AuthorEmail:      "ada@example.com",
		AuthorDate:       1700000000,
		CommitterName:    "Ada",
		CommitterDate:    1700000000,
		Message:          "fix: handle nil pointer in indexer",
		MessageEmbedding: []float32{0.1, 0.2, 0.3},
		BranchNames:      []string{"main"},
		Tags:             []string{"v1.2.0"},
		ParentHashes:     []string{"def456"},
		Stats:            map[string]any{"files_changed": float64(2)},
		FileChanges: []FileChange{
			{FilePath: "a.go", ChangeType: ChangeModified, LinesAdded: 3, LinesDeleted: 1, DiffContent: "+x"},
			{FilePath: "b.go", ChangeType: ChangeAdded, LinesAdded: 10},
		},
	}
	require.NoError(t, s.StoreCommit(ctx, c))

	got, ok, err := s.GetCommit(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Ada", got.AuthorName)
	require.Equal(t, []string{"main"}, got.BranchNames)
	require.Len(t, got.FileChanges, 2)
	require.Equal(t, ChangeModified, got.FileChanges[0].ChangeType)
	require.InDelta(t, 0.1, got.MessageEmbedding[0], 1e-6)
}

func TestStore_StoreCommit_Upsert_ReplacesFileChanges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c := Commit{Hash: "h1", RepositoryPath: "/repo", Message: "first", FileChanges: []FileChange{
		{FilePath: "a.go", ChangeType: ChangeAdded},
		{FilePath: "b.go", ChangeType: ChangeAdded},
	}}
	require.NoError(t, s.StoreCommit(ctx, c))

	c.Message = "amended"
	c.FileChanges = []FileChange{{FilePath: "a.go", ChangeType: ChangeModified}}
	require.NoError(t, s.StoreCommit(ctx, c))

	got, ok, err := s.GetCommit(ctx, "h1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "amended", got.Message)
	require.Len(t, got.FileChanges, 1)
}

func TestStore_GetCommit_NotFound(t *testing.T) {
	s := openTestStore(t)
	got, ok, err := s.GetCommit(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)
}

func TestStore_StoreCommit_EmptyHash_Rejected(t *testing.T) {
	s := openTestStore(t)
	err := s.StoreCommit(context.Background(), Commit{RepositoryPath: "/repo"})
	require.Error(t, err)
}

func TestStore_StoreCommit_UnknownChangeType_Rejected(t *testing.T) {
	s := openTestStore(t)
	err := s.StoreCommit(context.Background(), Commit{
		Hash: "h2", RepositoryPath: "/repo",
		FileChanges: []FileChange{{FilePath: "a.go", ChangeType: "unknown"}},
	})
	require.Error(t, err)
}
