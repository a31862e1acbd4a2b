package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notedex/notedex/internal/core/domain"
)

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	ix := NewIndex()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "d1", "c1", []float32{1, 0, 0}))
	require.NoError(t, ix.Add(ctx, "d1", "c2", []float32{0.9, 0.1, 0}))
	require.NoError(t, ix.Add(ctx, "d2", "c3", []float32{0, 1, 0}))

	hits, err := ix.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	assert.Equal(t, "c2", hits[1].ChunkID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestSearchSkipsDimensionMismatch(t *testing.T) {
	ix := NewIndex()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "d1", "c1", []float32{1, 0}))
	require.NoError(t, ix.Add(ctx, "d1", "c2", []float32{1, 0, 0}))

	hits, err := ix.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c2", hits[0].ChunkID)
}

func TestAddReplacesVector(t *testing.T) {
	ix := NewIndex()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "d1", "c1", []float32{1, 0}))
	require.NoError(t, ix.Add(ctx, "d1", "c1", []float32{0, 1}))
	assert.Equal(t, 1, ix.Size())

	hits, err := ix.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
}

func TestAddCopiesEmbedding(t *testing.T) {
	ix := NewIndex()
	ctx := context.Background()

	vec := []float32{1, 0}
	require.NoError(t, ix.Add(ctx, "d1", "c1", vec))
	vec[0] = 0
	vec[1] = 1

	hits, err := ix.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
}

func TestRemoveDocumentDropsAllChunks(t *testing.T) {
	ix := NewIndex()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "d1", "c1", []float32{1, 0}))
	require.NoError(t, ix.Add(ctx, "d1", "c2", []float32{0, 1}))
	require.NoError(t, ix.Add(ctx, "d2", "c3", []float32{1, 1}))

	require.NoError(t, ix.RemoveDocument(ctx, "d1"))
	assert.Equal(t, 1, ix.Size())

	hits, err := ix.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c3", hits[0].ChunkID)
}

func TestAddValidation(t *testing.T) {
	ix := NewIndex()
	ctx := context.Background()

	assert.ErrorIs(t, ix.Add(ctx, "", "c1", []float32{1}), domain.ErrInvalidInput)
	assert.ErrorIs(t, ix.Add(ctx, "d1", "", []float32{1}), domain.ErrInvalidInput)
	assert.ErrorIs(t, ix.Add(ctx, "d1", "c1", nil), domain.ErrInvalidInput)
}

func TestSearchEmptyQuery(t *testing.T) {
	ix := NewIndex()

	_, err := ix.Search(context.Background(), nil, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearchTieBreaksByChunkID(t *testing.T) {
	ix := NewIndex()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, "d1", "b", []float32{1, 0}))
	require.NoError(t, ix.Add(ctx, "d1", "a", []float32{2, 0}))

	hits, err := ix.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.Equal(t, "b", hits[1].ChunkID)
}
