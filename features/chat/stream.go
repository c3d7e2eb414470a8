package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kilowulf/livdoc/features/document"
	"github.com/kilowulf/livdoc/internal/apperr"
)

// Ask answers a question about a document, forwarding tokens to emit as
// the model produces them. The user turn is persisted before any upstream
// call, so a failed answer never loses the question. Once at least one
// token has been forwarded the accumulated answer is persisted no matter
// how the stream ends; the caller has seen those tokens, and history must
// match what was shown.
func (s *Service) Ask(ctx context.Context, documentID, ownerID, question string, emit func(token string) error) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return fmt.Errorf("%w: question must not be empty", apperr.ErrInvalidInput)
	}

	doc, err := s.docs.Get(ctx, documentID, ownerID)
	if err != nil {
		return err
	}
	if doc.Status != document.StatusSuccess {
		return fmt.Errorf("%w: document is not ready for chat, status is %s", apperr.ErrConflict, doc.Status)
	}

	history, err := s.repo.Recent(ctx, documentID, s.historyWindow)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	if _, err := s.repo.Append(ctx, documentID, RoleUser, question); err != nil {
		return fmt.Errorf("persist question: %w", err)
	}

	matches, err := s.retriever.QuerySimilar(ctx, documentID, question, s.topK)
	if err != nil {
		return fmt.Errorf("retrieve passages: %w: %v", apperr.ErrUpstream, err)
	}

	stream, err := s.completer.StreamCompletion(ctx, composePrompt(question, history, matches))
	if err != nil {
		return fmt.Errorf("open completion: %w: %v", apperr.ErrUpstream, err)
	}

	var answer strings.Builder
	defer func() {
		if answer.Len() == 0 {
			return
		}
		s.persistAnswer(ctx, documentID, answer.String())
	}()

	for {
		token, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if answer.Len() == 0 {
				return fmt.Errorf("completion stream: %w: %v", apperr.ErrUpstream, err)
			}
			slog.WarnContext(ctx, "completion stream interrupted, keeping partial answer",
				"error", err, "document_id", documentID, "answer_bytes", answer.Len())
			return nil
		}
		if token == "" {
			continue
		}

		answer.WriteString(token)
		if err := emit(token); err != nil {
			// Client is gone. The partial answer still persists so a
			// reconnecting client sees what was sent.
			return fmt.Errorf("emit token: %w", err)
		}
	}
}

// persistAnswer writes the assistant turn on a context detached from the
// request, so a client disconnect cannot also lose the persistence write.
func (s *Service) persistAnswer(ctx context.Context, documentID, answer string) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if _, err := s.repo.Append(writeCtx, documentID, RoleAssistant, answer); err != nil {
		slog.ErrorContext(ctx, "failed to persist assistant answer",
			"error", err, "document_id", documentID, "answer_bytes", len(answer))
	}
}
