// Package google adapts Google's Gemini API to the model completion
// contract.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ChatModel implements model.ChatModel for Google's Gemini API.
// A client is created per request; Gemini clients are cheap and carry
// the request context.
type ChatModel struct {
	apiKey    string
	modelName string
}

// NewChatModel creates a Gemini-backed ChatModel. An empty modelName
// selects gemini-1.5-flash.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &ChatModel{apiKey: apiKey, modelName: modelName}
}

// Complete implements model.ChatModel.
func (m *ChatModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	if m.apiKey == "" {
		return "", errors.New("google API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(m.apiKey))
	if err != nil {
		return "", fmt.Errorf("create google client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(m.modelName)
	if system != "" {
		genModel.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	resp, err := genModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("google API error: %w", err)
	}

	var out strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.WriteString(string(text))
			}
		}
		break
	}
	if out.Len() == 0 {
		return "", errors.New("google: empty completion")
	}
	return out.String(), nil
}
