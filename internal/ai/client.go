// Package ai talks to the outbound AI provider. Requests carry the chat's
// ordered role/content history; responses are either a single completion or
// an incremental chunk stream.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/config"
	"github.com/PedroHenriqueDevBR/Aingles-backend/internal/models"
)

// startMessage is the tutor prompt seeded into every new chat. $theme is
// replaced with the chat's topic.
const startMessage = `
You are an "English Teacher" for Brazilian people, you speak English and Portuguese fluently, and you are specialized in $theme.
The user will talk with you about this theme in English, and sometimes in Portuguese.
Your tasks are:

- If the user makes a mistake, first correct it (showing the corrected version in a natural way).
- After correcting, answer the user to keep the conversation flowing.
- If the user doesn't understand something, explain it in a different way or in Portuguese if the user prefers.
- Your responses should be short and concise, like a text message.

Keep the conversation natural, immersive, and engaging, like a real-life situation.
Your main goal: help the user practice English through conversation, correction, and vocabulary expansion, without breaking the immersion of the chosen theme
`

const (
	completionTemperature = 0.7
	completionMaxTokens   = 500
)

// SystemPrompt renders the tutor prompt for a chat theme.
func SystemPrompt(theme string) string {
	if strings.TrimSpace(theme) == "" {
		theme = "general conversation"
	}
	return strings.ReplaceAll(startMessage, "$theme", theme)
}

// Client wraps the provider SDK with the configured model.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient constructs a Client from the AI configuration.
func NewClient(cfg config.AIConfig) *Client {
	providerCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		providerCfg.BaseURL = cfg.BaseURL
	}
	return &Client{api: openai.NewClientWithConfig(providerCfg), model: cfg.Model}
}

// Complete sends the chat history and returns the assistant's reply.
func (c *Client) Complete(ctx context.Context, history []models.ChatMessage) (string, error) {
	resp, errCreate := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toProviderMessages(history),
		Temperature: completionTemperature,
		MaxTokens:   completionMaxTokens,
	})
	if errCreate != nil {
		return "", fmt.Errorf("chat completion: %w", errCreate)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream sends the chat history and forwards each content chunk to onChunk
// as it arrives. It returns the full buffered reply once the provider
// signals completion.
func (c *Client) Stream(ctx context.Context, history []models.ChatMessage, onChunk func(chunk string) error) (string, error) {
	stream, errCreate := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toProviderMessages(history),
		Temperature: completionTemperature,
		MaxTokens:   completionMaxTokens,
		Stream:      true,
	})
	if errCreate != nil {
		return "", fmt.Errorf("chat completion stream: %w", errCreate)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, errRecv := stream.Recv()
		if errors.Is(errRecv, io.EOF) {
			break
		}
		if errRecv != nil {
			return "", fmt.Errorf("chat completion stream: %w", errRecv)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if onChunk != nil {
			if errChunk := onChunk(chunk); errChunk != nil {
				return "", errChunk
			}
		}
	}
	return full.String(), nil
}

func toProviderMessages(history []models.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		out = append(out, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
	}
	return out
}
