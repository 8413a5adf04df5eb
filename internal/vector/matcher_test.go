package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarahcodeswell/sarahs-library-sub002/internal/catalog"
)

func TestMemoryIndex_MatchOrderingAndThreshold(t *testing.T) {
	idx := NewMemoryIndex(3)
	require.NoError(t, idx.Add("Exact", "A", []float32{1, 0, 0}))
	require.NoError(t, idx.Add("Close", "B", []float32{1, 1, 0}))   // cos 0.707
	require.NoError(t, idx.Add("Far", "C", []float32{0, 1, 0}))     // cos 0
	require.NoError(t, idx.Add("Scaled", "D", []float32{10, 0, 0})) // cos 1

	matches, err := idx.Match(context.Background(), []float32{2, 0, 0}, 5, 0.30)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "Exact", matches[0].Title)
	assert.Equal(t, "Scaled", matches[1].Title)
	assert.Equal(t, "Close", matches[2].Title)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
	assert.InDelta(t, 0.7071, matches[2].Similarity, 1e-3)

	limited, err := idx.Match(context.Background(), []float32{1, 0, 0}, 1, 0)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryIndex_Errors(t *testing.T) {
	idx := NewMemoryIndex(0)

	// empty index returns no matches
	m, err := idx.Match(context.Background(), []float32{1, 2}, 5, 0.3)
	require.NoError(t, err)
	assert.Empty(t, m)

	require.NoError(t, idx.Add("A", "X", []float32{1, 2}))
	assert.ErrorIs(t, idx.Add("B", "Y", []float32{1, 2, 3}), ErrDimensionMismatch)

	_, err = idx.Match(context.Background(), []float32{1, 2, 3}, 5, 0.3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = idx.Match(ctx, []float32{1, 2}, 5, 0.3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewMemoryIndexFromBooks_SkipsUnembedded(t *testing.T) {
	idx, err := NewMemoryIndexFromBooks([]catalog.Book{
		{Title: "With", Author: "A", Embedding: []float32{0, 1}},
		{Title: "Without", Author: "B"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[0.5,-1,0.25]", VectorLiteral([]float32{0.5, -1, 0.25}))
	assert.Equal(t, "[]", VectorLiteral(nil))
}
