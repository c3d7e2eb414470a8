package chat

import (
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/kilowulf/livdoc/internal/vector"
)

// composePrompt turns retrieved passages, recent history, and the new
// question into model turns. History becomes alternating user/model turns;
// the passages ride inside the final user turn so the model grounds the
// answer on them without them polluting earlier history.
func composePrompt(question string, history []Message, matches []vector.Match) []*genai.Content {
	prompt := make([]*genai.Content, 0, len(history)+1)

	for _, m := range history {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		prompt = append(prompt, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	prompt = append(prompt, &genai.Content{
		Role:  "user",
		Parts: []genai.Part{genai.Text(renderUserTurn(question, matches))},
	})
	return prompt
}

func renderUserTurn(question string, matches []vector.Match) string {
	if len(matches) == 0 {
		return question
	}

	var b strings.Builder
	b.WriteString("Document passages:\n\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "[Passage %d, page %d]\n%s\n\n", i+1, m.PageNumber, m.Content)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
