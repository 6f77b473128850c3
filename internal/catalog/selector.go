package catalog

import (
	"context"
	"slices"
	"strings"
)

const (
	// FreeMarker is the id suffix OpenRouter uses for zero-cost variants.
	FreeMarker = ":free"

	// FallbackFreeModel is returned when no free model can be chosen.
	FallbackFreeModel = "qwen/qwen2.5-vl-32b-instruct:free"
)

// Source is anything that can list the catalog. *Cache satisfies it.
type Source interface {
	Models(ctx context.Context) ([]Descriptor, error)
}

// SelectFreeModel returns the free model with the largest advertised
// context window. Ties go to the model listed first.
//
// This is a heuristic: the ":free" marker is trusted as-is, not checked
// against the listed pricing. Any failure to choose yields
// FallbackFreeModel rather than an error.
func SelectFreeModel(ctx context.Context, src Source) string {
	models, err := src.Models(ctx)
	if err != nil || len(models) == 0 {
		return FallbackFreeModel
	}

	var free []Descriptor
	for _, m := range models {
		if strings.Contains(m.ID, FreeMarker) {
			free = append(free, m)
		}
	}
	if len(free) == 0 {
		return FallbackFreeModel
	}

	slices.SortStableFunc(free, func(a, b Descriptor) int {
		return b.ContextLength - a.ContextLength
	})
	return free[0].ID
}
