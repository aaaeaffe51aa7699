package config

import (
	"strings"

	"github.com/crystaldolphin/confidant/internal/config/provider"
	"github.com/crystaldolphin/confidant/internal/providers"
)

// MatchResult is the resolved provider config and registry name for a model.
type MatchResult struct {
	Provider *provider.ProviderConfig
	Name     string // e.g. "gemini", "openrouter"
}

// MatchProvider resolves which provider config and registry entry to use for model.
// If model is empty, the default model from agents.defaults.model is used.
//
// Priority order:
//  1. Explicit provider prefix in model string (e.g. "deepseek/deepseek-chat" → deepseek)
//  2. Keyword match in model name (registry order)
//  3. Fallback: first provider with a key, gateways first
func (c *Config) MatchProvider(model string) MatchResult {
	if model == "" {
		model = c.Agents.Defaults.Model
	}
	modelLower := strings.ToLower(model)
	modelPrefix, _, hasPrefix := strings.Cut(modelLower, "/")

	if hasPrefix {
		for _, spec := range providers.PROVIDERS {
			p := c.ProviderByName(spec.Name)
			if p != nil && modelPrefix == spec.Name && p.APIKey != "" {
				return MatchResult{Provider: p, Name: spec.Name}
			}
		}
	}

	if spec := providers.FindByModel(model); spec != nil {
		if p := c.ProviderByName(spec.Name); p != nil && p.APIKey != "" {
			return MatchResult{Provider: p, Name: spec.Name}
		}
	}

	for _, gatewaysOnly := range []bool{true, false} {
		for _, spec := range providers.PROVIDERS {
			if spec.IsGateway != gatewaysOnly {
				continue
			}
			p := c.ProviderByName(spec.Name)
			if p != nil && p.APIKey != "" {
				return MatchResult{Provider: p, Name: spec.Name}
			}
		}
	}

	return MatchResult{}
}

// GetAPIBase returns the configured or default API base for model.
func (c *Config) GetAPIBase(model string) string {
	result := c.MatchProvider(model)
	if result.Provider != nil && result.Provider.APIBase != "" {
		return result.Provider.APIBase
	}
	if spec := providers.FindByName(result.Name); spec != nil {
		return spec.DefaultAPIBase
	}
	return ""
}
