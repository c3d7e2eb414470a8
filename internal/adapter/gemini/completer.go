package gemini

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"

	"github.com/kilowulf/livdoc/features/chat"
)

const systemInstruction = "You are an assistant answering questions about a document the user uploaded. " +
	"Answer using the provided document passages and the conversation so far. " +
	"If the passages do not contain the answer, say that you don't have the information. " +
	"Do not make up information."

// Completer drives streaming chat completions against Gemini.
type Completer struct {
	client *genai.Client
	model  string
}

func NewCompleter(client *genai.Client, model string) *Completer {
	return &Completer{client: client, model: model}
}

// StreamCompletion opens a streaming completion for the composed prompt.
// The last turn must be the user turn; earlier turns become chat history.
func (c *Completer) StreamCompletion(ctx context.Context, prompt []*genai.Content) (chat.TokenStream, error) {
	if len(prompt) == 0 {
		return nil, fmt.Errorf("empty prompt")
	}

	last := prompt[len(prompt)-1]
	if last.Role != "user" {
		return nil, fmt.Errorf("last prompt turn must be from user, got %q", last.Role)
	}

	model := c.client.GenerativeModel(c.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	session := model.StartChat()
	session.History = prompt[:len(prompt)-1]

	iter := session.SendMessageStream(ctx, last.Parts...)
	return &tokenIterator{iter: iter}, nil
}

// tokenIterator adapts the genai response iterator to a plain token stream.
type tokenIterator struct {
	iter *genai.GenerateContentResponseIterator
}

// Next returns the next text token, io.EOF on a clean end of stream, or the
// transport error that interrupted the stream.
func (t *tokenIterator) Next() (string, error) {
	resp, err := t.iter.Next()
	if err == iterator.Done {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
