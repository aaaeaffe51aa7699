package providers

import "strings"

// ProviderSpec is the metadata record for one generation provider.
type ProviderSpec struct {
	Name        string   // config field name, e.g. "gemini"
	Keywords    []string // model-name keywords for matching (lowercase)
	EnvKey      string   // env var conventionally holding the API key
	DisplayName string   // shown in `confidant status`

	// Native providers are called through their own SDK; the rest go
	// through the OpenAI-compatible client.
	Native bool

	IsGateway        bool   // routes any model (OpenRouter)
	DefaultAPIBase   string // fallback base URL when none is configured
	StripModelPrefix bool   // strip "provider/" before using the model name
}

// Label returns the display name, defaulting to Title-cased Name.
func (s ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return strings.ToTitle(s.Name[:1]) + s.Name[1:]
}

// PROVIDERS is the registry. Order = match priority.
var PROVIDERS = []ProviderSpec{
	{
		Name:        "custom",
		DisplayName: "Custom",
	},
	{
		Name:           "openrouter",
		Keywords:       []string{"openrouter"},
		EnvKey:         "OPENROUTER_API_KEY",
		DisplayName:    "OpenRouter",
		IsGateway:      true,
		DefaultAPIBase: "https://openrouter.ai/api/v1",
	},
	{
		Name:             "gemini",
		Keywords:         []string{"gemini", "gemma"},
		EnvKey:           "GEMINI_API_KEY",
		DisplayName:      "Gemini",
		Native:           true,
		StripModelPrefix: true,
	},
	{
		Name:             "openai",
		Keywords:         []string{"openai", "gpt"},
		EnvKey:           "OPENAI_API_KEY",
		DisplayName:      "OpenAI",
		DefaultAPIBase:   "https://api.openai.com/v1",
		StripModelPrefix: true,
	},
	{
		Name:             "deepseek",
		Keywords:         []string{"deepseek"},
		EnvKey:           "DEEPSEEK_API_KEY",
		DisplayName:      "DeepSeek",
		DefaultAPIBase:   "https://api.deepseek.com/v1",
		StripModelPrefix: true,
	},
}

// FindByModel matches a standard provider by model-name keyword (case-insensitive).
// Gateways are skipped; they are only chosen explicitly or as a fallback.
func FindByModel(model string) *ProviderSpec {
	modelLower := strings.ToLower(model)
	modelPrefix, _, _ := strings.Cut(modelLower, "/")

	for i := range PROVIDERS {
		spec := &PROVIDERS[i]
		if !spec.IsGateway && strings.Contains(modelLower, "/") && modelPrefix == spec.Name {
			return spec
		}
	}

	for i := range PROVIDERS {
		spec := &PROVIDERS[i]
		if spec.IsGateway {
			continue
		}
		for _, kw := range spec.Keywords {
			if strings.Contains(modelLower, kw) {
				return spec
			}
		}
	}
	return nil
}

// FindByName returns the ProviderSpec whose Name equals name.
func FindByName(name string) *ProviderSpec {
	for i := range PROVIDERS {
		if PROVIDERS[i].Name == name {
			return &PROVIDERS[i]
		}
	}
	return nil
}

// ResolveModel returns the model id to send to the provider.
func (s ProviderSpec) ResolveModel(model string) string {
	if s.StripModelPrefix {
		if prefix, rest, ok := strings.Cut(model, "/"); ok && strings.EqualFold(prefix, s.Name) {
			return rest
		}
	}
	return model
}
