package degradation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddWarning_DedupsByComponentAndMessage(t *testing.T) {
	tr := New()
	tr.AddWarning("vector_store", "connection refused", "install qdrant", "semantic search degraded to keyword-only")
	tr.AddWarning("vector_store", "connection refused", "install qdrant", "semantic search degraded to keyword-only")

	require.True(t, tr.HasDegradations())
	assert.Len(t, tr.GetSummary(), 1)
}

func TestAddWarning_DistinctMessagesBothRecorded(t *testing.T) {
	tr := New()
	tr.AddWarning("vector_store", "connection refused", "install qdrant", "degraded")
	tr.AddWarning("vector_store", "timeout", "install qdrant", "degraded")

	assert.Len(t, tr.GetSummary(), 2)
}

func TestClear(t *testing.T) {
	tr := New()
	tr.AddWarning("c", "m", "u", "p")
	tr.Clear()
	assert.False(t, tr.HasDegradations())
	assert.Empty(t, tr.GetSummary())
}

func TestGlobal_IsSingleton(t *testing.T) {
	a := Global()
	b := Global()
	assert.Same(t, a, b)
	a.Clear()
}
