package chat

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilowulf/livdoc/features/document"
	"github.com/kilowulf/livdoc/internal/apperr"
	"github.com/kilowulf/livdoc/internal/vector"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Append(ctx context.Context, documentID, role, content string) (*Message, error) {
	args := m.Called(ctx, documentID, role, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Message), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, documentID, cursor string, limit int) (*Page, error) {
	args := m.Called(ctx, documentID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Page), args.Error(1)
}

func (m *MockRepository) Recent(ctx context.Context, documentID string, n int) ([]Message, error) {
	args := m.Called(ctx, documentID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Message), args.Error(1)
}

type MockDocumentGetter struct {
	mock.Mock
}

func (m *MockDocumentGetter) Get(ctx context.Context, id, ownerID string) (*document.Document, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) QuerySimilar(ctx context.Context, namespace, query string, k int) ([]vector.Match, error) {
	args := m.Called(ctx, namespace, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vector.Match), args.Error(1)
}

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) StreamCompletion(ctx context.Context, prompt []*genai.Content) (TokenStream, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(TokenStream), args.Error(1)
}

// fakeStream yields the given tokens, then terminal (io.EOF for a clean
// end, or an injected error).
type fakeStream struct {
	tokens   []string
	terminal error
	pos      int
}

func (f *fakeStream) Next() (string, error) {
	if f.pos >= len(f.tokens) {
		if f.terminal != nil {
			return "", f.terminal
		}
		return "", io.EOF
	}
	tok := f.tokens[f.pos]
	f.pos++
	return tok, nil
}

type chatMocks struct {
	repo      *MockRepository
	docs      *MockDocumentGetter
	retriever *MockRetriever
	completer *MockCompleter
}

func newTestService() (*Service, chatMocks) {
	m := chatMocks{
		repo:      new(MockRepository),
		docs:      new(MockDocumentGetter),
		retriever: new(MockRetriever),
		completer: new(MockCompleter),
	}
	return NewService(m.repo, m.docs, m.retriever, m.completer, 4, 6), m
}

func readyDoc() *document.Document {
	return &document.Document{ID: "doc-1", OwnerID: "owner-1", Status: document.StatusSuccess}
}

func userMsg(content string) *Message {
	return &Message{ID: "msg-user", DocumentID: "doc-1", Role: RoleUser, Content: content, CreatedAt: time.Now()}
}

func TestAskStreamsAndPersistsFullAnswer(t *testing.T) {
	svc, m := newTestService()

	m.docs.On("Get", mock.Anything, "doc-1", "owner-1").Return(readyDoc(), nil)
	m.repo.On("Recent", mock.Anything, "doc-1", 6).Return([]Message{}, nil)
	m.repo.On("Append", mock.Anything, "doc-1", RoleUser, "what is chapter two about?").Return(userMsg("what is chapter two about?"), nil)
	m.retriever.On("QuerySimilar", mock.Anything, "doc-1", "what is chapter two about?", 4).
		Return([]vector.Match{{Content: "chapter two covers pricing.", PageNumber: 2, Score: 0.9}}, nil)
	m.completer.On("StreamCompletion", mock.Anything, mock.Anything).
		Return(&fakeStream{tokens: []string{"It ", "covers ", "pricing."}}, nil)
	m.repo.On("Append", mock.Anything, "doc-1", RoleAssistant, "It covers pricing.").
		Return(&Message{ID: "msg-assistant"}, nil)

	var emitted []string
	err := svc.Ask(context.Background(), "doc-1", "owner-1", "what is chapter two about?", func(token string) error {
		emitted = append(emitted, token)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"It ", "covers ", "pricing."}, emitted)
	m.repo.AssertExpectations(t)
	m.completer.AssertExpectations(t)
}

func TestAskZeroTokenFailureSkipsAssistantPersist(t *testing.T) {
	svc, m := newTestService()

	m.docs.On("Get", mock.Anything, "doc-1", "owner-1").Return(readyDoc(), nil)
	m.repo.On("Recent", mock.Anything, "doc-1", 6).Return([]Message{}, nil)
	m.repo.On("Append", mock.Anything, "doc-1", RoleUser, "hello?").Return(userMsg("hello?"), nil)
	m.retriever.On("QuerySimilar", mock.Anything, "doc-1", "hello?", 4).Return([]vector.Match{}, nil)
	m.completer.On("StreamCompletion", mock.Anything, mock.Anything).
		Return(&fakeStream{terminal: errors.New("upstream reset")}, nil)

	err := svc.Ask(context.Background(), "doc-1", "owner-1", "hello?", func(string) error { return nil })

	assert.ErrorIs(t, err, apperr.ErrUpstream)
	m.repo.AssertNotCalled(t, "Append", mock.Anything, "doc-1", RoleAssistant, mock.Anything)
}

func TestAskMidStreamFailureKeepsPartialAnswer(t *testing.T) {
	svc, m := newTestService()

	m.docs.On("Get", mock.Anything, "doc-1", "owner-1").Return(readyDoc(), nil)
	m.repo.On("Recent", mock.Anything, "doc-1", 6).Return([]Message{}, nil)
	m.repo.On("Append", mock.Anything, "doc-1", RoleUser, "summarize").Return(userMsg("summarize"), nil)
	m.retriever.On("QuerySimilar", mock.Anything, "doc-1", "summarize", 4).Return([]vector.Match{}, nil)
	m.completer.On("StreamCompletion", mock.Anything, mock.Anything).
		Return(&fakeStream{tokens: []string{"The ", "report ", "says"}, terminal: errors.New("connection reset")}, nil)
	m.repo.On("Append", mock.Anything, "doc-1", RoleAssistant, "The report says").
		Return(&Message{ID: "msg-assistant"}, nil)

	var emitted int
	err := svc.Ask(context.Background(), "doc-1", "owner-1", "summarize", func(string) error {
		emitted++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, emitted)
	m.repo.AssertExpectations(t)
}

func TestAskClientDisconnectKeepsPartialAnswer(t *testing.T) {
	svc, m := newTestService()

	m.docs.On("Get", mock.Anything, "doc-1", "owner-1").Return(readyDoc(), nil)
	m.repo.On("Recent", mock.Anything, "doc-1", 6).Return([]Message{}, nil)
	m.repo.On("Append", mock.Anything, "doc-1", RoleUser, "summarize").Return(userMsg("summarize"), nil)
	m.retriever.On("QuerySimilar", mock.Anything, "doc-1", "summarize", 4).Return([]vector.Match{}, nil)
	m.completer.On("StreamCompletion", mock.Anything, mock.Anything).
		Return(&fakeStream{tokens: []string{"First ", "second ", "third"}}, nil)
	m.repo.On("Append", mock.Anything, "doc-1", RoleAssistant, "First second ").
		Return(&Message{ID: "msg-assistant"}, nil)

	calls := 0
	err := svc.Ask(context.Background(), "doc-1", "owner-1", "summarize", func(string) error {
		calls++
		if calls == 2 {
			return errors.New("broken pipe")
		}
		return nil
	})

	require.Error(t, err)
	m.repo.AssertExpectations(t)
}

func TestAskDocumentNotReady(t *testing.T) {
	svc, m := newTestService()

	m.docs.On("Get", mock.Anything, "doc-1", "owner-1").
		Return(&document.Document{ID: "doc-1", OwnerID: "owner-1", Status: document.StatusProcessing}, nil)

	err := svc.Ask(context.Background(), "doc-1", "owner-1", "hello", func(string) error { return nil })

	assert.ErrorIs(t, err, apperr.ErrConflict)
	m.repo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAskEmptyQuestion(t *testing.T) {
	svc, m := newTestService()

	err := svc.Ask(context.Background(), "doc-1", "owner-1", "   ", func(string) error { return nil })

	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	m.docs.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestAskUnknownDocument(t *testing.T) {
	svc, m := newTestService()

	m.docs.On("Get", mock.Anything, "doc-missing", "owner-1").Return(nil, apperr.ErrNotFound)

	err := svc.Ask(context.Background(), "doc-missing", "owner-1", "hello", func(string) error { return nil })

	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListMessagesClampsLimit(t *testing.T) {
	svc, m := newTestService()

	m.docs.On("Get", mock.Anything, "doc-1", "owner-1").Return(readyDoc(), nil)
	m.repo.On("List", mock.Anything, "doc-1", "", MaxPageSize).Return(&Page{Messages: []Message{}}, nil)

	_, err := svc.ListMessages(context.Background(), "doc-1", "owner-1", "", 5000)

	require.NoError(t, err)
	m.repo.AssertExpectations(t)
}

func TestListMessagesDefaultsLimit(t *testing.T) {
	svc, m := newTestService()

	m.docs.On("Get", mock.Anything, "doc-1", "owner-1").Return(readyDoc(), nil)
	m.repo.On("List", mock.Anything, "doc-1", "", DefaultPageSize).Return(&Page{Messages: []Message{}}, nil)

	_, err := svc.ListMessages(context.Background(), "doc-1", "owner-1", "", 0)

	require.NoError(t, err)
	m.repo.AssertExpectations(t)
}
