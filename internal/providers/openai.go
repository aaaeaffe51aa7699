package providers

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/crystaldolphin/confidant/internal/schema"
)

// ChatClient is the subset of the go-openai client used here.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGenerator talks to any OpenAI-compatible endpoint.
type OpenAIGenerator struct {
	client       ChatClient
	defaultModel string
	spec         ProviderSpec
}

// NewOpenAIGenerator constructs a generator from raw config values.
func NewOpenAIGenerator(apiKey, apiBase, defaultModel string, spec ProviderSpec) *OpenAIGenerator {
	cc := openai.DefaultConfig(apiKey)
	if apiBase != "" {
		cc.BaseURL = strings.TrimRight(apiBase, "/")
	}
	return NewOpenAIGeneratorWithClient(openai.NewClientWithConfig(cc), defaultModel, spec)
}

// NewOpenAIGeneratorWithClient wraps an existing client (used by tests).
func NewOpenAIGeneratorWithClient(client ChatClient, defaultModel string, spec ProviderSpec) *OpenAIGenerator {
	return &OpenAIGenerator{client: client, defaultModel: defaultModel, spec: spec}
}

func (g *OpenAIGenerator) DefaultModel() string { return g.defaultModel }

// Generate implements schema.Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req schema.GenerateRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	if req.SystemInstruction != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}
	for _, t := range req.Turns {
		msgs = append(msgs, toOpenAIMessage(t))
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.spec.ResolveModel(model),
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", schema.ErrProvider, g.spec.Name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", schema.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessage(t schema.Message) openai.ChatCompletionMessage {
	role := openai.ChatMessageRoleUser
	if t.Role == schema.RoleModel {
		role = openai.ChatMessageRoleAssistant
	}

	hasMedia := false
	for _, p := range t.Parts {
		if p.InlineData != nil {
			hasMedia = true
			break
		}
	}
	if !hasMedia {
		return openai.ChatCompletionMessage{Role: role, Content: t.Text()}
	}

	parts := make([]openai.ChatMessagePart, 0, len(t.Parts))
	for _, p := range t.Parts {
		if p.InlineData != nil {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:" + p.InlineData.MimeType + ";base64," + p.InlineData.Data,
				},
			})
			continue
		}
		if p.Text != "" {
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.Text})
		}
	}
	return openai.ChatCompletionMessage{Role: role, MultiContent: parts}
}
