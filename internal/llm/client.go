// Package llm provides the conversational fallback for utterances the
// deterministic router cannot classify. It is optional: without an API key
// the service runs fully deterministic and Unknown intents get a canned
// reply instead.
package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"careline/internal/config"
	"careline/internal/model"
)

const systemPrompt = `You are Careline, a helpful healthcare assistant for a patient directory service.
You help medical staff look up patient records by name and answer questions about how to use the service.
You can retrieve patient lists, filter by name, and limit result counts.
Never invent patient data. If asked for records you have not been given, tell the user to ask for a patient lookup.
Keep answers short and professional.`

// Client answers free-form prompts. Implementations must be safe for
// concurrent use.
type Client interface {
	Reply(ctx context.Context, history []model.ConversationTurn, utterance string) (string, error)
}

type groqClient struct {
	api          *openai.Client
	model        string
	contextTurns int
}

// New returns nil when no API key is configured; callers treat a nil client
// as "fallback disabled".
func New(cfg config.LLMConfig, contextTurns int) Client {
	if cfg.APIKey == "" {
		return nil
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if contextTurns <= 0 {
		contextTurns = config.DefaultContextSize
	}
	return &groqClient{
		api:          openai.NewClientWithConfig(apiCfg),
		model:        cfg.Model,
		contextTurns: contextTurns,
	}
}

func (c *groqClient) Reply(ctx context.Context, history []model.ConversationTurn, utterance string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, c.contextTurns+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})

	// Only the most recent turns ride along; full history stays in the
	// session store.
	turns := history
	if len(turns) > c.contextTurns {
		turns = turns[len(turns)-c.contextTurns:]
	}
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == model.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Text,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: utterance,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
