package server

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ironsheep/openrouter-mcp/internal/catalog"
	"github.com/ironsheep/openrouter-mcp/internal/content"
	"github.com/ironsheep/openrouter-mcp/internal/conversation"
	"github.com/ironsheep/openrouter-mcp/internal/logging"
	"github.com/ironsheep/openrouter-mcp/internal/normalize"
	"github.com/ironsheep/openrouter-mcp/internal/openrouter"
)

const (
	// defaultContextLength is the truncation budget for models the catalog
	// does not know.
	defaultContextLength = 128000

	defaultImageQuestion = "What's in this image?"
)

// === Chat ===

type chatCompletionArgs struct {
	Messages    []conversation.Message `json:"messages"`
	Model       string                 `json:"model"`
	Temperature *float64               `json:"temperature"`
	MaxTokens   int                    `json:"max_tokens"`
}

func (r *Router) handleChatCompletion(ctx context.Context, raw json.RawMessage) (content.Result, error) {
	var args chatCompletionArgs
	if err := decodeArgs(raw, &args); err != nil {
		return content.Result{}, err
	}
	for i, m := range args.Messages {
		if err := m.Validate(); err != nil {
			return content.Result{}, invalidf("message %d: %v", i+1, err)
		}
	}

	messages, err := r.prepareLocalImages(ctx, args.Messages)
	if err != nil {
		return content.Result{}, err
	}

	model := r.resolveModel(ctx, args.Model)
	budget := r.contextLength(ctx, model)
	kept := conversation.Truncate(messages, budget)
	if len(kept) == 0 {
		return content.Result{}, invalidf("the conversation does not fit the %d-token context window of %s", budget, model)
	}
	if dropped := len(messages) - len(kept); dropped > 0 {
		r.log.Info("conversation truncated",
			logging.String("model", model),
			logging.Int("dropped", dropped),
			logging.Int("budget", budget),
			logging.Int("estimated_tokens", conversation.EstimateTotal(kept)),
		)
	}

	body, err := r.Client.ChatCompletion(ctx, openrouter.ChatRequest{
		Model:       model,
		Messages:    kept,
		Temperature: args.Temperature,
		MaxTokens:   args.MaxTokens,
	})
	if err != nil {
		return content.Result{}, err
	}
	return content.NewResult(normalize.Normalize(body)...), nil
}

// contextLength returns the catalog's context window for model, or
// defaultContextLength when the model or its window is unknown.
func (r *Router) contextLength(ctx context.Context, model string) int {
	d, ok, err := r.Catalog.GetByID(ctx, model)
	if err != nil {
		r.log.Debug("catalog unavailable for context length", logging.Error(err))
	}
	if !ok || d.ContextLength <= 0 {
		return defaultContextLength
	}
	return d.ContextLength
}

// prepareLocalImages replaces image_url parts that point at local files
// with prepared data URLs; the provider cannot read the caller's disk.
func (r *Router) prepareLocalImages(ctx context.Context, messages []conversation.Message) ([]conversation.Message, error) {
	out := make([]conversation.Message, len(messages))
	for i, m := range messages {
		out[i] = m
		if !m.IsMultimodal() {
			continue
		}
		parts := make([]conversation.Part, len(m.Parts))
		copy(parts, m.Parts)
		for j, p := range parts {
			if p.Type != conversation.PartImageURL || isRemote(p.ImageURL.URL) {
				continue
			}
			url, err := r.Images.Load(ctx, p.ImageURL.URL)
			if err != nil {
				return nil, invalidf("message %d: %v", i+1, err)
			}
			parts[j] = conversation.ImagePart(url)
		}
		out[i].Parts = parts
	}
	return out, nil
}

func isRemote(url string) bool {
	return normalize.IsDataURI(url) || strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// === Vision ===

type analyzeImageArgs struct {
	ImagePath string `json:"image_path"`
	Question  string `json:"question"`
	Model     string `json:"model"`
}

func (r *Router) handleAnalyzeImage(ctx context.Context, raw json.RawMessage) (content.Result, error) {
	var args analyzeImageArgs
	if err := decodeArgs(raw, &args); err != nil {
		return content.Result{}, err
	}
	question := strings.TrimSpace(args.Question)
	if question == "" {
		question = defaultImageQuestion
	}

	url, err := r.Images.Load(ctx, args.ImagePath)
	if err != nil {
		return content.Result{}, invalidf("%v", err)
	}

	msg := conversation.NewMultimodal(conversation.RoleUser,
		conversation.TextPart(question),
		conversation.ImagePart(url),
	)
	body, err := r.Client.ChatCompletion(ctx, openrouter.ChatRequest{
		Model:    r.resolveModel(ctx, args.Model),
		Messages: []conversation.Message{msg},
	})
	if err != nil {
		return content.Result{}, err
	}
	return content.NewResult(normalize.Normalize(body)...), nil
}

type imageRef struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type multiImageArgs struct {
	Images           []imageRef `json:"images"`
	Prompt           string     `json:"prompt"`
	MarkdownResponse *bool      `json:"markdown_response"`
	Model            string     `json:"model"`
}

func (r *Router) handleMultiImageAnalysis(ctx context.Context, raw json.RawMessage) (content.Result, error) {
	var args multiImageArgs
	if err := decodeArgs(raw, &args); err != nil {
		return content.Result{}, err
	}
	if strings.TrimSpace(args.Prompt) == "" {
		return content.Result{}, invalidf("prompt is required")
	}

	sources := make([]string, len(args.Images))
	for i, img := range args.Images {
		sources[i] = img.URL
	}
	urls, err := r.Images.LoadAll(ctx, sources)
	if err != nil {
		return content.Result{}, invalidf("%v", err)
	}

	parts := []conversation.Part{conversation.TextPart(args.Prompt)}
	for i, url := range urls {
		if alt := strings.TrimSpace(args.Images[i].Alt); alt != "" {
			parts = append(parts, conversation.TextPart(fmt.Sprintf("Image %d: %s", i+1, alt)))
		}
		parts = append(parts, conversation.ImagePart(url))
	}

	body, err := r.Client.ChatCompletion(ctx, openrouter.ChatRequest{
		Model:    r.resolveModel(ctx, args.Model),
		Messages: []conversation.Message{conversation.NewMultimodal(conversation.RoleUser, parts...)},
	})
	if err != nil {
		return content.Result{}, err
	}

	out := normalize.Normalize(body)
	if args.MarkdownResponse != nil && !*args.MarkdownResponse {
		out = stripMarkdownParts(out)
	}
	return content.NewResult(out...), nil
}

// === Catalog ===

func (r *Router) handleSearchModels(ctx context.Context, raw json.RawMessage) (content.Result, error) {
	var f catalog.Filters
	if err := decodeArgs(raw, &f); err != nil {
		return content.Result{}, err
	}
	if f.MinContextLength > 0 && f.MaxContextLength > 0 && f.MinContextLength > f.MaxContextLength {
		return content.Result{}, invalidf("minContextLength %d exceeds maxContextLength %d", f.MinContextLength, f.MaxContextLength)
	}

	models, err := r.Catalog.Search(ctx, f)
	if err != nil {
		return content.Result{}, err
	}
	return jsonResult(models)
}

type modelArgs struct {
	Model string `json:"model"`
}

func (r *Router) handleGetModelInfo(ctx context.Context, raw json.RawMessage) (content.Result, error) {
	var args modelArgs
	if err := decodeArgs(raw, &args); err != nil {
		return content.Result{}, err
	}

	d, ok, err := r.Catalog.GetByID(ctx, args.Model)
	if err != nil {
		return content.Result{}, err
	}
	if !ok {
		return content.Errorf("Model not found: %s", args.Model), nil
	}
	return jsonResult(d)
}

func (r *Router) handleValidateModel(ctx context.Context, raw json.RawMessage) (content.Result, error) {
	var args modelArgs
	if err := decodeArgs(raw, &args); err != nil {
		return content.Result{}, err
	}

	valid, err := r.Catalog.IsValid(ctx, args.Model)
	if err != nil {
		return content.Result{}, err
	}
	return jsonResult(struct {
		Model string `json:"model"`
		Valid bool   `json:"valid"`
	}{args.Model, valid})
}

// === Image generation ===

type generateImageArgs struct {
	Prompt   string `json:"prompt"`
	Model    string `json:"model"`
	SavePath string `json:"save_path"`
}

func (r *Router) handleGenerateImage(ctx context.Context, raw json.RawMessage) (content.Result, error) {
	var args generateImageArgs
	if err := decodeArgs(raw, &args); err != nil {
		return content.Result{}, err
	}
	if strings.TrimSpace(args.Prompt) == "" {
		return content.Result{}, invalidf("prompt is required")
	}
	if args.SavePath != "" && !filepath.IsAbs(args.SavePath) {
		return content.Result{}, invalidf("save_path must be absolute, got %q", args.SavePath)
	}

	model := args.Model
	if model == "" {
		model = r.ImageModel
	}
	if model == "" {
		model = r.resolveModel(ctx, "")
	}

	body, err := r.Client.GenerateImage(ctx, openrouter.ChatRequest{
		Model:    model,
		Messages: []conversation.Message{conversation.NewText(conversation.RoleUser, args.Prompt)},
	})
	if err != nil {
		return content.Result{}, err
	}

	parts := normalize.Normalize(body)
	if args.SavePath != "" {
		parts = normalize.SaveImages(parts, args.SavePath)
	}
	return content.NewResult(parts...), nil
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (content.Result, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return content.Result{}, fmt.Errorf("failed to encode result: %w", err)
	}
	return content.TextResult(string(b)), nil
}
