package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	dim   int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	e.calls++
	return []float32{1, 2, 3}, nil
}

func (e *countingEmbedder) ModelName() string { return "counting" }
func (e *countingEmbedder) Dimension() int    { return e.dim }

func TestLruEmbedderCachesRepeatedQueries(t *testing.T) {
	inner := &countingEmbedder{dim: 3}
	cached := WrapLruCacheToEmbedder(inner, 8, time.Minute)

	first, err := cached.Embed(context.Background(), "laser patents", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "laser patents", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)
}

func TestLruEmbedderKeySpansTaskType(t *testing.T) {
	inner := &countingEmbedder{dim: 3}
	cached := WrapLruCacheToEmbedder(inner, 8, time.Minute)

	_, err := cached.Embed(context.Background(), "laser patents", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "laser patents", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestLruEmbedderReturnsCopies(t *testing.T) {
	inner := &countingEmbedder{dim: 3}
	cached := WrapLruCacheToEmbedder(inner, 8, time.Minute)

	_, err := cached.Embed(context.Background(), "laser patents", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	got, err := cached.Embed(context.Background(), "laser patents", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	got[0] = 99

	again, err := cached.Embed(context.Background(), "laser patents", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.EqualValues(t, 1, again[0])
}

func TestWrapDisabledConfigPassesThrough(t *testing.T) {
	inner := &countingEmbedder{dim: 3}
	require.Equal(t, inner, WrapLruCacheToEmbedder(inner, 0, time.Minute))
	require.Equal(t, inner, WrapLruCacheToEmbedder(inner, 8, 0))
	require.Nil(t, WrapLruCacheToEmbedder(nil, 8, time.Minute))
}
