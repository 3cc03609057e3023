package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/semcode/internal/errs"
)

func vecNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestGenerate_EmptyInputError(t *testing.T) {
	g := New("test-model", 384, 0)
	_, err := g.Generate("")
	require.Error(t, err)
	var eerr *errs.EmbeddingError
	require.ErrorAs(t, err, &eerr)
}

func TestGenerate_L2Normalized(t *testing.T) {
	g := New("test-model", 384, 0)
	v, err := g.Generate("func add(a, b int) int { return a + b }")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vecNorm(v), 1e-2)
}

func TestGenerate_FixedDimension(t *testing.T) {
	g := New("test-model", 768, 0)
	v, err := g.Generate("hello world")
	require.NoError(t, err)
	assert.Len(t, v, 768)
	assert.Equal(t, 768, g.Dimension())
}

func TestGenerate_Deterministic(t *testing.T) {
	g := New("test-model", 384, 0)
	v1, err := g.Generate("the quick brown fox")
	require.NoError(t, err)
	v2, err := g.Generate("the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestGenerate_DifferentModelsDiffer(t *testing.T) {
	a := New("model-a", 384, 0)
	b := New("model-b", 384, 0)
	va, err := a.Generate("same text")
	require.NoError(t, err)
	vb, err := b.Generate("same text")
	require.NoError(t, err)
	assert.NotEqual(t, va, vb)
}

func TestGenerate_PunctuationOnlyInputIsNotZeroVector(t *testing.T) {
	g := New("test-model", 384, 0)
	v, err := g.Generate("!!!")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vecNorm(v), 1e-2)
}

func TestBatchGenerate_PreservesOrder_Sequential(t *testing.T) {
	g := New("test-model", 384, 0)
	texts := []string{"alpha", "beta", "gamma", "delta"}
	out, err := g.BatchGenerate(context.Background(), texts, false, nil)
	require.NoError(t, err)
	require.Len(t, out, len(texts))
	for i, text := range texts {
		want, err := g.Generate(text)
		require.NoError(t, err)
		assert.Equal(t, want, out[i])
	}
}

func TestBatchGenerate_PreservesOrder_Parallel(t *testing.T) {
	g := New("test-model", 384, 8)
	texts := make([]string, 50)
	for i := range texts {
		texts[i] = "token" + string(rune('a'+i%26))
	}
	out, err := g.BatchGenerate(context.Background(), texts, false, nil)
	require.NoError(t, err)
	require.Len(t, out, len(texts))
	for i, text := range texts {
		want, err := g.Generate(text)
		require.NoError(t, err)
		assert.Equal(t, want, out[i])
	}
}

func TestBatchGenerate_EmptyBatch(t *testing.T) {
	g := New("test-model", 384, 0)
	out, err := g.BatchGenerate(context.Background(), nil, false, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBatchGenerate_FailsOnEmptyInputNoPartialResults(t *testing.T) {
	g := New("test-model", 384, 0)
	out, err := g.BatchGenerate(context.Background(), []string{"a", "", "b"}, false, nil)
	require.Error(t, err)
	assert.Nil(t, out)
}

func TestBatchGenerate_CancellationReturnsNoPartialResults(t *testing.T) {
	g := New("test-model", 384, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := g.BatchGenerate(ctx, []string{"a", "b", "c"}, false, nil)
	require.Error(t, err)
	assert.Nil(t, out)
}

func TestBatchGenerate_ReportsProgress(t *testing.T) {
	g := New("test-model", 384, 0)
	var calls int
	_, err := g.BatchGenerate(context.Background(), []string{"a", "b", "c"}, true, func(done, total int) {
		calls++
		assert.Equal(t, 3, total)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
