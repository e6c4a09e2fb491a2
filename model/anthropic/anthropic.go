// Package anthropic adapts Anthropic's Claude API to the model
// completion contract.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 1024

// ChatModel implements model.ChatModel for Anthropic's Claude API.
type ChatModel struct {
	client    anthropic.Client
	modelName string
}

// NewChatModel creates an Anthropic-backed ChatModel. An empty
// modelName selects a default Claude model.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	return &ChatModel{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		modelName: modelName,
	}
}

// Complete implements model.ChatModel.
func (m *ChatModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", errors.New("anthropic: empty completion")
	}
	return out.String(), nil
}
