// Package cache implements a short-lived Redis read-through cache for
// document metadata. Status polling during ingestion is the hot path; a
// small TTL keeps reads off Postgres without letting a stale status
// linger past the next poll.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kilowulf/livdoc/features/document"
)

const keyPrefix = "doc:"

// entry carries the fields Document hides from API responses. The cache
// round-trips the owner so a hit can still be authorized.
type entry struct {
	ID         string    `json:"id"`
	StorageKey string    `json:"storage_key"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	OwnerID    string    `json:"owner_id"`
	SourceURL  string    `json:"source_url"`
	CreatedAt  time.Time `json:"created_at"`
}

type DocumentCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDocumentCache(client *redis.Client, ttl time.Duration) *DocumentCache {
	return &DocumentCache{client: client, ttl: ttl}
}

// Get returns the cached document, or (nil, nil) on a miss. Decode
// failures are treated as misses so a bad entry self-heals on the next Set.
func (c *DocumentCache) Get(ctx context.Context, id string) (*document.Document, error) {
	raw, err := c.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, nil
	}
	return &document.Document{
		ID:         e.ID,
		StorageKey: e.StorageKey,
		Name:       e.Name,
		OwnerID:    e.OwnerID,
		SourceURL:  e.SourceURL,
		Status:     e.Status,
		CreatedAt:  e.CreatedAt,
	}, nil
}

func (c *DocumentCache) Set(ctx context.Context, d *document.Document) error {
	raw, err := json.Marshal(entry{
		ID:         d.ID,
		StorageKey: d.StorageKey,
		Name:       d.Name,
		OwnerID:    d.OwnerID,
		SourceURL:  d.SourceURL,
		Status:     d.Status,
		CreatedAt:  d.CreatedAt,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+d.ID, raw, c.ttl).Err()
}

func (c *DocumentCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, keyPrefix+id).Err()
}
