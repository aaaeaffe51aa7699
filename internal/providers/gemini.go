package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/crystaldolphin/confidant/internal/schema"
)

// GeminiGenerator calls the Gemini API through the genai SDK.
type GeminiGenerator struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, apiKey, apiBase, defaultModel string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key", schema.ErrConfig)
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if apiBase != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: apiBase}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiGenerator{client: client, defaultModel: defaultModel}, nil
}

func (g *GeminiGenerator) DefaultModel() string { return g.defaultModel }

// Generate implements schema.Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req schema.GenerateRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}
	model = strings.TrimPrefix(model, "gemini/")

	contents, err := toGenaiContents(req.Turns)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", schema.ErrProvider, err)
	}
	return geminiText(resp)
}

func toGenaiContents(turns []schema.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		c := &genai.Content{Role: t.Role}
		for _, p := range t.Parts {
			switch {
			case p.InlineData != nil:
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("%w: inline data: %v", schema.ErrValidation, err)
				}
				c.Parts = append(c.Parts, &genai.Part{
					InlineData: &genai.Blob{MIMEType: p.InlineData.MimeType, Data: data},
				})
			case p.Text != "":
				c.Parts = append(c.Parts, &genai.Part{Text: p.Text})
			}
		}
		if len(c.Parts) == 0 {
			continue
		}
		contents = append(contents, c)
	}
	return contents, nil
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", schema.ErrEmptyResponse
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		slog.Warn("gemini: candidate without content", "finish", cand.FinishReason)
		return "", schema.ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", schema.ErrEmptyResponse
	}
	return sb.String(), nil
}
