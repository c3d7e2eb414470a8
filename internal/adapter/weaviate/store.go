package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/kilowulf/livdoc/internal/vector"
)

// Store persists document chunks in Weaviate. The documentId property acts
// as the namespace key: every operation filters on it, so documents never
// see each other's chunks.
type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) UpsertChunks(ctx context.Context, namespace string, chunks []vector.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(chunks))
	for _, c := range chunks {
		objects = append(objects, &models.Object{
			Class: vector.ClassName,
			Properties: map[string]interface{}{
				"content":    c.Content,
				"documentId": namespace,
				"chunkIndex": c.ChunkIndex,
				"pageNumber": c.PageNumber,
			},
			Vector: models.C11yVector(c.Vector),
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().
		WithObjects(objects...).
		Do(ctx)
	if err != nil {
		return err
	}

	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert failed: %s", r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (s *Store) QuerySimilar(ctx context.Context, namespace string, queryVector []float32, k int) ([]vector.Match, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(queryVector)

	where := filters.Where().
		WithPath([]string{"documentId"}).
		WithOperator(filters.Equal).
		WithValueString(namespace)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "chunkIndex"},
		{Name: "pageNumber"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithWhere(where).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var matches []vector.Match
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if rows, ok := data[vector.ClassName].([]interface{}); ok {
			for _, row := range rows {
				props, ok := row.(map[string]interface{})
				if !ok {
					continue
				}

				m := vector.Match{}
				if content, ok := props["content"].(string); ok {
					m.Content = content
				}
				if idx, ok := props["chunkIndex"].(float64); ok {
					m.ChunkIndex = int(idx)
				}
				if page, ok := props["pageNumber"].(float64); ok {
					m.PageNumber = int(page)
				}
				if additional, ok := props["_additional"].(map[string]interface{}); ok {
					if distance, ok := additional["distance"].(float64); ok {
						// cosine distance in [0,2]; smaller is closer
						m.Score = 1 - float32(distance)
					}
				}
				matches = append(matches, m)
			}
		}
	}

	return matches, nil
}

func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueString(namespace)).
		Do(ctx)
	return err
}
