package catalog

import (
	"context"
	"strings"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
)

// Filters narrows a catalog search. Zero values disable a filter; the
// price bounds are pointers because 0 is a meaningful bound.
type Filters struct {
	Query              string   `json:"query,omitempty"`
	Provider           string   `json:"provider,omitempty"`
	MinContextLength   int      `json:"minContextLength,omitempty"`
	MaxContextLength   int      `json:"maxContextLength,omitempty"`
	MaxPromptPrice     *float64 `json:"maxPromptPrice,omitempty"`
	MaxCompletionPrice *float64 `json:"maxCompletionPrice,omitempty"`

	// Capabilities lists flags that must all be true.
	Capabilities Capabilities `json:"capabilities,omitempty"`

	// Limit caps the result count; 0 means DefaultSearchLimit, and anything
	// above MaxSearchLimit is clamped.
	Limit int `json:"limit,omitempty"`
}

// Search returns the catalog entries matching f, in catalog order.
func (c *Cache) Search(ctx context.Context, f Filters) ([]Descriptor, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(models, f), nil
}

// Filter applies f to models without touching the cache.
func Filter(models []Descriptor, f Filters) []Descriptor {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]Descriptor, 0, limit)
	for _, m := range models {
		if !f.matches(m, query) {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (f Filters) matches(m Descriptor, query string) bool {
	if query != "" &&
		!strings.Contains(strings.ToLower(m.ID), query) &&
		!strings.Contains(strings.ToLower(m.Description), query) &&
		!strings.Contains(strings.ToLower(m.Provider), query) {
		return false
	}
	if f.Provider != "" && m.Provider != f.Provider {
		return false
	}
	if f.MinContextLength > 0 && m.ContextLength < f.MinContextLength {
		return false
	}
	if f.MaxContextLength > 0 && m.ContextLength > f.MaxContextLength {
		return false
	}
	if !withinPrice(m.Pricing.Prompt, f.MaxPromptPrice) || !withinPrice(m.Pricing.Completion, f.MaxCompletionPrice) {
		return false
	}

	want, have := f.Capabilities, m.Capabilities
	if (want.Functions && !have.Functions) ||
		(want.Tools && !have.Tools) ||
		(want.Vision && !have.Vision) ||
		(want.JSONMode && !have.JSONMode) {
		return false
	}
	return true
}

// withinPrice excludes unknown prices whenever a bound is set.
func withinPrice(price, bound *float64) bool {
	if bound == nil {
		return true
	}
	return price != nil && *price <= *bound
}
