package core

import (
	"strings"
)

var providerDefaultModels = map[string]string{
	"anthropic": "claude-sonnet-4-5-20250929",
	"claude":    "claude-sonnet-4-5-20250929",
	"sonnet45":  "claude-sonnet-4-5",
	"sonnet4":   "claude-sonnet-4-20250514",
	"haiku45":   "claude-haiku-4-5",
	"opus41":    "claude-opus-4-1",
}

// DefaultModelForProvider returns the baked-in default model for a provider key.
func DefaultModelForProvider(provider string) string {
	key := strings.ToLower(strings.TrimSpace(provider))
	if key == "" {
		key = defaultKey
	}
	if val, ok := providerDefaultModels[key]; ok {
		return val
	}
	return ""
}

// ResolveModelName picks the configured model if provided, otherwise the provider's default.
func ResolveModelName(provider, configuredModel string) string {
	model := strings.TrimSpace(configuredModel)
	if model != "" {
		return model
	}
	if def := DefaultModelForProvider(provider); def != "" {
		return def
	}
	return "unknown"
}
