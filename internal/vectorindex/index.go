package vectorindex

import (
	"context"

	"github.com/intellipatent/intellipatent/internal/model"
)

// Match is one ranked retrieval hit.
type Match struct {
	VectorID string
	Score    float32
}

// QueryRequest carries one similarity query. Sparse non-nil means
// hybrid scoring across the concatenated dense+sparse representation.
type QueryRequest struct {
	Dense  []float32
	Sparse *model.SparseVector
	TopK   int
}

// Vector is one upserted record.
type Vector struct {
	ID       string
	Dense    []float32
	Sparse   *model.SparseVector
	Metadata map[string]interface{}
}

type Stats struct {
	Dimension   int
	VectorCount int64
}

// Index is the hosted vector index boundary. Query returns matches
// ranked descending by relevance; the caller must preserve that order.
type Index interface {
	Query(ctx context.Context, req QueryRequest) ([]Match, error)
	Upsert(ctx context.Context, vectors []Vector) error
	SparseEmbed(ctx context.Context, text string, forQuery bool) (*model.SparseVector, error)
	Stats(ctx context.Context) (Stats, error)
}
