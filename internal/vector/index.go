package vector

import (
	"context"
	"fmt"

	"github.com/kilowulf/livdoc/internal/text"
)

// Chunk is an embedded span of document text ready to be written to the
// vector backend under a document namespace.
type Chunk struct {
	Content    string
	ChunkIndex int
	PageNumber int
	Vector     []float32
}

// Match is a retrieved chunk ordered by descending similarity.
type Match struct {
	Content    string
	ChunkIndex int
	PageNumber int
	Score      float32
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore is the namespace-scoped persistence boundary of the vector
// backend. Concurrent writes to different namespaces must not interfere;
// a namespace has a single writer at a time (the ingestion pipeline).
type ChunkStore interface {
	UpsertChunks(ctx context.Context, namespace string, chunks []Chunk) error
	QuerySimilar(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Index couples an embedder with a chunk store: callers deal in text, the
// backend deals in vectors.
type Index struct {
	embedder Embedder
	store    ChunkStore
}

func NewIndex(e Embedder, s ChunkStore) *Index {
	return &Index{embedder: e, store: s}
}

// UpsertChunks embeds each chunk and writes the batch under namespace.
func (i *Index) UpsertChunks(ctx context.Context, namespace string, chunks []text.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	embedded := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		vec, err := i.embedder.Embed(ctx, c.Content)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", c.Index, err)
		}
		embedded = append(embedded, Chunk{
			Content:    c.Content,
			ChunkIndex: c.Index,
			PageNumber: c.PageNumber,
			Vector:     vec,
		})
	}

	return i.store.UpsertChunks(ctx, namespace, embedded)
}

// QuerySimilar embeds the query text and returns up to k matches from the
// namespace. An empty or unknown namespace yields an empty result, not an
// error.
func (i *Index) QuerySimilar(ctx context.Context, namespace, query string, k int) ([]Match, error) {
	vec, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return i.store.QuerySimilar(ctx, namespace, vec, k)
}

// DeleteNamespace removes every chunk indexed under namespace. It is the
// cascade hook invoked when a document is deleted.
func (i *Index) DeleteNamespace(ctx context.Context, namespace string) error {
	return i.store.DeleteNamespace(ctx, namespace)
}
