package openrouter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Model is one entry of the /models listing, as the API reports it.
type Model struct {
	ID          string
	Name        string
	Description string

	// ContextLength is the advertised context window in tokens, 0 if unknown.
	ContextLength int

	// PromptPrice and CompletionPrice are per-token USD prices; nil when the
	// listing does not say.
	PromptPrice     *float64
	CompletionPrice *float64

	InputModalities     []string
	SupportedParameters []string
}

// ParseModels decodes a /models response body.
//
// Older responses name the context window "context_window" instead of
// "context_length", and some entries only report it under top_provider;
// all three are accepted. Prices may be strings or numbers.
func ParseModels(body []byte) ([]Model, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid models response: not JSON")
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, fmt.Errorf("invalid models response: missing data array")
	}

	var models []Model
	data.ForEach(func(_, m gjson.Result) bool {
		id := m.Get("id").String()
		if id == "" {
			return true
		}
		models = append(models, Model{
			ID:                  id,
			Name:                m.Get("name").String(),
			Description:         m.Get("description").String(),
			ContextLength:       ContextLength(m),
			PromptPrice:         price(m.Get("pricing.prompt")),
			CompletionPrice:     price(m.Get("pricing.completion")),
			InputModalities:     inputModalities(m),
			SupportedParameters: stringArray(m.Get("supported_parameters")),
		})
		return true
	})
	return models, nil
}

// ContextLength reads the advertised context window of a raw model entry.
func ContextLength(m gjson.Result) int {
	for _, path := range []string{"context_length", "context_window", "top_provider.context_length"} {
		if v := m.Get(path); v.Exists() && v.Int() > 0 {
			return int(v.Int())
		}
	}
	return 0
}

func price(v gjson.Result) *float64 {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	// OpenRouter uses -1 for "variable" pricing on router models.
	if f < 0 {
		return nil
	}
	return &f
}

func inputModalities(m gjson.Result) []string {
	if mods := stringArray(m.Get("architecture.input_modalities")); len(mods) > 0 {
		return mods
	}
	// Legacy entries carry a single "text+image->text" string.
	modality := m.Get("architecture.modality").String()
	if modality == "" {
		return nil
	}
	in, _, _ := strings.Cut(modality, "->")
	var out []string
	for _, mod := range strings.Split(in, "+") {
		if mod != "" {
			out = append(out, mod)
		}
	}
	return out
}

func stringArray(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	var out []string
	for _, item := range v.Array() {
		if s := item.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}
