// Package anthropic generates free-text answers with Claude.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"estate-assistant/internal/domain"
)

const defaultMaxTokens = 1024

type Generator struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
}

// NewGenerator builds a Generator. Extra request options such as
// option.WithBaseURL are passed to the SDK client.
func NewGenerator(apiKey, model string, maxTokens int, logger *slog.Logger, opts ...option.RequestOption) (*Generator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic: api key must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("anthropic: model must not be empty")
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Generator{
		client:    &c,
		model:     model,
		maxTokens: int64(maxTokens),
		logger:    logger,
	}, nil
}

// Generate sends the conversation to Claude. System turns in the history are
// folded into the system prompt; leading assistant turns are dropped since the
// API expects the conversation to open with the user.
func (g *Generator) Generate(ctx context.Context, systemPrompt string, turns []domain.ChatMessage) (string, error) {
	system := []string{strings.TrimSpace(systemPrompt)}
	var messages []anthropic.MessageParam
	for _, t := range turns {
		text := strings.TrimSpace(t.Content)
		if text == "" {
			continue
		}
		switch t.Role {
		case "system":
			system = append(system, text)
		case "assistant":
			if len(messages) == 0 {
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
		}
	}
	if len(messages) == 0 {
		return "", errors.New("anthropic: Generate: no user message")
	}

	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: strings.TrimSpace(strings.Join(system, "\n\n"))}},
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: Generate: %w", err)
	}

	var sb strings.Builder
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			sb.WriteString(resp.Content[i].Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", errors.New("anthropic: Generate: empty response")
	}
	g.logger.Debug("anthropic: generated answer", "model", g.model, "chars", len(out))
	return out, nil
}
