package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kilowulf/livdoc/internal/apperr"
	"github.com/kilowulf/livdoc/internal/config"
	"github.com/kilowulf/livdoc/internal/middleware"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

type Document struct {
	ID         string    `json:"id"`
	StorageKey string    `json:"storage_key"`
	Name       string    `json:"name"`
	OwnerID    string    `json:"-"`
	SourceURL  string    `json:"-"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type Repository interface {
	// CreatePending inserts a new document with status processing, filling
	// ID and CreatedAt. Returns apperr.ErrConflict if the storage key is
	// already taken.
	CreatePending(ctx context.Context, d *Document) error
	// MarkStatus transitions a document's status. Terminal states never
	// regress; repeating the same terminal status is a no-op.
	MarkStatus(ctx context.Context, id, status string) error
	Get(ctx context.Context, id, ownerID string) (*Document, error)
	List(ctx context.Context, ownerID string) ([]Document, error)
	Delete(ctx context.Context, id, ownerID string) error
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

// ChunkStore is the vector-side cascade hook: deleting a document must also
// remove its namespace.
type ChunkStore interface {
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Cache is a short-TTL read-through cache for the status poll endpoint.
type Cache interface {
	Get(ctx context.Context, id string) (*Document, error)
	Set(ctx context.Context, d *Document) error
	Invalidate(ctx context.Context, id string) error
}

type Service struct {
	repo       Repository
	pub        TaskPublisher
	chunkStore ChunkStore
	cache      Cache
}

func NewService(repo Repository, pub TaskPublisher, chunkStore ChunkStore, cache Cache) *Service {
	return &Service{repo: repo, pub: pub, chunkStore: chunkStore, cache: cache}
}

// PublishIngest hands an upload-completion event to the ingestion worker.
// The call is fire-and-forget: outcomes are observable only through the
// document's status, never through this return value (which covers only
// validation and the publish itself).
func (s *Service) PublishIngest(ctx context.Context, ownerID, planID, storageKey, name, sourceURL string) error {
	if storageKey == "" || name == "" || sourceURL == "" {
		return fmt.Errorf("%w: storage_key, name and source_url are required", apperr.ErrInvalidInput)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"owner_id":       ownerID,
		"plan_id":        planID,
		"storage_key":    storageKey,
		"name":           name,
		"source_url":     sourceURL,
		"correlation_id": middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return err
	}

	if err := s.pub.Publish(config.TopicIngestTask, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest task", "error", err, "storage_key", storageKey)
		return err
	}
	slog.InfoContext(ctx, "published ingest task", "storage_key", storageKey, "name", name)
	return nil
}

// Get returns an owner's document, serving repeated status polls from the
// cache when possible.
func (s *Service) Get(ctx context.Context, id, ownerID string) (*Document, error) {
	if s.cache != nil {
		if doc, err := s.cache.Get(ctx, id); err == nil && doc != nil && doc.OwnerID == ownerID {
			return doc, nil
		}
	}

	doc, err := s.repo.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, doc); err != nil {
			slog.WarnContext(ctx, "failed to cache document", "error", err, "document_id", id)
		}
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, ownerID string) ([]Document, error) {
	return s.repo.List(ctx, ownerID)
}

// Delete removes a document and cascades into the vector namespace. The
// namespace is cleaned first so a half-failed delete leaves the row (and a
// retry path) rather than orphaned vectors.
func (s *Service) Delete(ctx context.Context, id, ownerID string) error {
	if _, err := s.repo.Get(ctx, id, ownerID); err != nil {
		return err
	}

	if err := s.chunkStore.DeleteNamespace(ctx, id); err != nil {
		return fmt.Errorf("delete vector namespace: %w", err)
	}

	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil && !errors.Is(err, context.Canceled) {
			slog.WarnContext(ctx, "failed to invalidate document cache", "error", err, "document_id", id)
		}
	}
	return nil
}
