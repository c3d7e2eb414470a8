// Package chat serves the per-document conversation: history reads with
// cursor pagination, and question answering grounded on the document's
// indexed chunks.
package chat

import (
	"context"
	"time"

	"github.com/google/generative-ai-go/genai"

	"github.com/kilowulf/livdoc/features/document"
	"github.com/kilowulf/livdoc/internal/vector"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Message struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"-"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Page is one newest-first slice of a conversation. NextCursor, when set,
// is the id of the first message of the following page.
type Page struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type Repository interface {
	Append(ctx context.Context, documentID, role, content string) (*Message, error)
	List(ctx context.Context, documentID, cursor string, limit int) (*Page, error)
	Recent(ctx context.Context, documentID string, n int) ([]Message, error)
}

type DocumentGetter interface {
	Get(ctx context.Context, id, ownerID string) (*document.Document, error)
}

type Retriever interface {
	QuerySimilar(ctx context.Context, namespace, query string, k int) ([]vector.Match, error)
}

// TokenStream yields answer tokens as the model produces them. Next
// returns io.EOF on a clean end of stream.
type TokenStream interface {
	Next() (string, error)
}

type Completer interface {
	StreamCompletion(ctx context.Context, prompt []*genai.Content) (TokenStream, error)
}

type Service struct {
	repo          Repository
	docs          DocumentGetter
	retriever     Retriever
	completer     Completer
	topK          int
	historyWindow int
}

func NewService(repo Repository, docs DocumentGetter, retriever Retriever, completer Completer, topK, historyWindow int) *Service {
	return &Service{
		repo:          repo,
		docs:          docs,
		retriever:     retriever,
		completer:     completer,
		topK:          topK,
		historyWindow: historyWindow,
	}
}

// ListMessages returns one page of the conversation, newest first. The
// document lookup doubles as the ownership check.
func (s *Service) ListMessages(ctx context.Context, documentID, ownerID, cursor string, limit int) (*Page, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if _, err := s.docs.Get(ctx, documentID, ownerID); err != nil {
		return nil, err
	}

	return s.repo.List(ctx, documentID, cursor, limit)
}
