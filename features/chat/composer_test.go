package chat

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilowulf/livdoc/internal/vector"
)

func turnText(t *testing.T, c *genai.Content) string {
	t.Helper()
	require.Len(t, c.Parts, 1)
	txt, ok := c.Parts[0].(genai.Text)
	require.True(t, ok)
	return string(txt)
}

func TestComposePromptHistoryRoles(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "what is this document?"},
		{Role: RoleAssistant, Content: "It is a quarterly report."},
	}

	prompt := composePrompt("who wrote it?", history, nil)

	require.Len(t, prompt, 3)
	assert.Equal(t, "user", prompt[0].Role)
	assert.Equal(t, "what is this document?", turnText(t, prompt[0]))
	assert.Equal(t, "model", prompt[1].Role)
	assert.Equal(t, "It is a quarterly report.", turnText(t, prompt[1]))
	assert.Equal(t, "user", prompt[2].Role)
	assert.Equal(t, "who wrote it?", turnText(t, prompt[2]))
}

func TestComposePromptEmbedsPassagesInFinalTurn(t *testing.T) {
	matches := []vector.Match{
		{Content: "Revenue grew 12% in Q3.", PageNumber: 4, Score: 0.91},
		{Content: "Costs were flat year over year.", PageNumber: 5, Score: 0.87},
	}

	prompt := composePrompt("how did revenue do?", nil, matches)

	require.Len(t, prompt, 1)
	final := turnText(t, prompt[0])
	assert.Contains(t, final, "Revenue grew 12% in Q3.")
	assert.Contains(t, final, "Costs were flat year over year.")
	assert.Contains(t, final, "page 4")
	assert.Contains(t, final, "Question: how did revenue do?")
}

func TestComposePromptNoMatchesIsBareQuestion(t *testing.T) {
	prompt := composePrompt("hello", nil, nil)

	require.Len(t, prompt, 1)
	assert.Equal(t, "hello", turnText(t, prompt[0]))
}
