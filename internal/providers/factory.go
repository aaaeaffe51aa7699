package providers

import (
	"context"
	"fmt"

	"github.com/crystaldolphin/confidant/internal/schema"
)

// Params are the raw values needed to construct any schema.Generator.
// Extracted from config.Config by the caller to avoid an import cycle.
type Params struct {
	APIKey       string
	APIBase      string
	DefaultModel string
	ProviderName string // registry name, e.g. "gemini", "openrouter"
}

// New creates the appropriate schema.Generator for the given params.
//
//   - native providers (gemini) → GeminiGenerator via the genai SDK
//   - otherwise                 → OpenAIGenerator (any OpenAI-compatible endpoint)
func New(ctx context.Context, p Params) (schema.Generator, error) {
	spec := FindByName(p.ProviderName)
	if spec == nil {
		spec = FindByModel(p.DefaultModel)
	}
	if spec == nil {
		return nil, fmt.Errorf("%w: no provider for model %q", schema.ErrConfig, p.DefaultModel)
	}

	if spec.Native {
		return NewGeminiGenerator(ctx, p.APIKey, p.APIBase, p.DefaultModel)
	}

	base := p.APIBase
	if base == "" {
		base = spec.DefaultAPIBase
	}
	return NewOpenAIGenerator(p.APIKey, base, p.DefaultModel, *spec), nil
}
