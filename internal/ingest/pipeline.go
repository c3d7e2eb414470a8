package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/kilowulf/livdoc/features/document"
	"github.com/kilowulf/livdoc/internal/apperr"
	"github.com/kilowulf/livdoc/internal/middleware"
	"github.com/kilowulf/livdoc/internal/plan"
	"github.com/kilowulf/livdoc/internal/text"
)

type DocumentStore interface {
	CreatePending(ctx context.Context, d *document.Document) error
	MarkStatus(ctx context.Context, id, status string) error
}

type Fetcher interface {
	Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

type Parser interface {
	Parse(data []byte) ([]string, error)
}

type Indexer interface {
	UpsertChunks(ctx context.Context, namespace string, chunks []text.Chunk) error
}

type StatusInvalidator interface {
	Invalidate(ctx context.Context, id string) error
}

// Pipeline turns an upload-completion event into indexed, searchable
// chunks. It is the only writer of a document's status and of its vector
// namespace; the atomic create in DocumentStore.CreatePending is the
// single-writer gate.
type Pipeline struct {
	docs         DocumentStore
	fetcher      Fetcher
	parser       Parser
	index        Indexer
	cache        StatusInvalidator
	fetchTimeout time.Duration
	chunkSize    int
	chunkOverlap int
}

func NewPipeline(docs DocumentStore, fetcher Fetcher, parser Parser, index Indexer, cache StatusInvalidator, fetchTimeout time.Duration, chunkSize, chunkOverlap int) *Pipeline {
	return &Pipeline{
		docs:         docs,
		fetcher:      fetcher,
		parser:       parser,
		index:        index,
		cache:        cache,
		fetchTimeout: fetchTimeout,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// HandleMessage consumes ingest.task. It always returns nil: outcomes are
// recorded as document status, and the pipeline never asks the broker to
// retry (the upload provider owns the retry decision).
func (p *Pipeline) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task Task
	if err := json.Unmarshal(m.Body, &task); err != nil {
		slog.Error("poison pill: invalid ingest task", "error", err)
		return nil
	}

	ctx := context.Background()
	if task.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, task.CorrelationID)
	}

	if task.StorageKey == "" || task.SourceURL == "" {
		slog.ErrorContext(ctx, "ingest task missing required fields, dropping", "storage_key", task.StorageKey)
		return nil
	}

	p.Run(ctx, task)
	return nil
}

// Run executes one ingestion attempt. Every path out of PROCESSING ends in
// SUCCESS or FAILED; a document is never left stuck.
func (p *Pipeline) Run(ctx context.Context, task Task) {
	doc := &document.Document{
		StorageKey: task.StorageKey,
		Name:       task.Name,
		OwnerID:    task.OwnerID,
		SourceURL:  task.SourceURL,
	}

	if err := p.docs.CreatePending(ctx, doc); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			// Duplicate completion event; the first writer owns this key.
			slog.InfoContext(ctx, "document already exists, skipping", "storage_key", task.StorageKey)
		} else {
			slog.ErrorContext(ctx, "failed to create document", "error", err, "storage_key", task.StorageKey)
		}
		return
	}

	status := document.StatusFailed
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "ingestion panicked", "panic", r, "document_id", doc.ID)
			status = document.StatusFailed
		}
		p.markStatus(ctx, doc.ID, status)
	}()

	if err := p.process(ctx, doc, plan.LimitsFor(task.PlanID)); err != nil {
		slog.ErrorContext(ctx, "ingestion failed", "error", err, "document_id", doc.ID, "storage_key", task.StorageKey)
		return
	}

	status = document.StatusSuccess
	slog.InfoContext(ctx, "document ingested", "document_id", doc.ID, "storage_key", task.StorageKey)
}

func (p *Pipeline) process(ctx context.Context, doc *document.Document, limits plan.Limits) error {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	data, err := p.fetcher.Fetch(fetchCtx, doc.SourceURL, limits.MaxFileBytes)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	pages, err := p.parser.Parse(data)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	// Page count is only known after parsing, but the check runs before
	// any embedding call so a rejected document costs nothing to index.
	if len(pages) > limits.MaxPages {
		return fmt.Errorf("%w: document has %d pages, plan %s allows %d",
			apperr.ErrPolicyExceeded, len(pages), limits.ID, limits.MaxPages)
	}

	chunks := text.SplitPages(pages, p.chunkSize, p.chunkOverlap)
	if err := p.index.UpsertChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("index: %w", err)
	}

	return nil
}

// markStatus writes the terminal status on a context detached from the
// attempt, so a canceled ingestion still records its outcome.
func (p *Pipeline) markStatus(ctx context.Context, id, status string) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.docs.MarkStatus(writeCtx, id, status); err != nil {
		slog.ErrorContext(ctx, "failed to mark document status", "error", err, "document_id", id, "status", status)
		return
	}
	if p.cache != nil {
		if err := p.cache.Invalidate(writeCtx, id); err != nil {
			slog.WarnContext(ctx, "failed to invalidate status cache", "error", err, "document_id", id)
		}
	}
}
