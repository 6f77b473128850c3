// Package catalog caches the provider's model list and answers search,
// lookup and validation queries against it. It also picks a free model
// when a chat call names none.
package catalog

import (
	"slices"
	"strings"

	"github.com/ironsheep/openrouter-mcp/internal/openrouter"
)

// Pricing holds per-token prices. A nil field means the price is unknown.
type Pricing struct {
	Prompt     *float64 `json:"prompt"`
	Completion *float64 `json:"completion"`
}

// Capabilities are the feature flags derived from a model listing.
type Capabilities struct {
	Functions bool `json:"functions"`
	Tools     bool `json:"tools"`
	Vision    bool `json:"vision"`
	JSONMode  bool `json:"json_mode"`
}

// Descriptor describes one model. Descriptors are read-only once built.
type Descriptor struct {
	ID            string       `json:"id"`
	Name          string       `json:"name,omitempty"`
	Description   string       `json:"description,omitempty"`
	ContextLength int          `json:"context_length"`
	Pricing       Pricing      `json:"pricing"`
	Capabilities  Capabilities `json:"capabilities"`
	Provider      string       `json:"provider"`
}

// ProviderOf returns the namespace segment of a model id ("openai" for
// "openai/gpt-4o"), or "" if the id has none.
func ProviderOf(id string) string {
	provider, _, ok := strings.Cut(id, "/")
	if !ok {
		return ""
	}
	return provider
}

// FromAPI converts a listing entry into a Descriptor.
func FromAPI(m openrouter.Model) Descriptor {
	params := m.SupportedParameters
	return Descriptor{
		ID:            m.ID,
		Name:          m.Name,
		Description:   m.Description,
		ContextLength: m.ContextLength,
		Pricing: Pricing{
			Prompt:     m.PromptPrice,
			Completion: m.CompletionPrice,
		},
		Capabilities: Capabilities{
			Functions: slices.Contains(params, "functions") || slices.Contains(params, "tools"),
			Tools:     slices.Contains(params, "tools") || slices.Contains(params, "tool_choice"),
			Vision:    slices.Contains(m.InputModalities, "image"),
			JSONMode:  slices.Contains(params, "response_format") || slices.Contains(params, "structured_outputs"),
		},
		Provider: ProviderOf(m.ID),
	}
}
