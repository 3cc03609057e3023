package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/semcode/internal/config"
	"github.com/standardbeagle/semcode/internal/degradation"
)

func TestNew_KeywordBackendSelected(t *testing.T) {
	cfg := config.Storage{Backend: config.BackendKeyword, SQLiteDir: t.TempDir()}

	st, err := New(context.Background(), cfg, 4, false)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, ok := st.(*KeywordStore)
	assert.True(t, ok)
}

func TestNew_VectorBackendDefault(t *testing.T) {
	cfg := config.Storage{Backend: config.BackendVector, SQLiteDir: t.TempDir()}

	st, err := New(context.Background(), cfg, 4, false)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, ok := st.(*VectorStore)
	assert.True(t, ok)
	assert.True(t, st.HealthCheck(context.Background()))
}

// breakVectorBackend makes the vector database path unopenable by planting a
// directory where sqlite expects a file; the keyword database in the same
// dir remains creatable.
func breakVectorBackend(t *testing.T) config.Storage {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "vectors.db"), 0o755))
	return config.Storage{Backend: config.BackendVector, SQLiteDir: dir}
}

func TestNew_FallsBackToKeywordAndRecordsDegradation(t *testing.T) {
	degradation.Global().Clear()
	t.Cleanup(func() { degradation.Global().Clear() })

	st, err := New(context.Background(), breakVectorBackend(t), 4, true)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, ok := st.(*KeywordStore)
	assert.True(t, ok)

	require.True(t, degradation.Global().HasDegradations())
	summary := degradation.Global().GetSummary()
	require.Len(t, summary, 1)
	assert.Equal(t, "store_factory", summary[0].Component)
}

func TestNew_NoFallbackSurfacesConnectionError(t *testing.T) {
	degradation.Global().Clear()
	t.Cleanup(func() { degradation.Global().Clear() })

	_, err := New(context.Background(), breakVectorBackend(t), 4, false)
	require.Error(t, err)
	assert.False(t, degradation.Global().HasDegradations())
}
